package capacity

import (
	"context"

	"github.com/ccc-cruise/service-promo/internal/domain/promo"
)

// Counter tracks committed headcount against the configured cap for one
// (cabin category, code type) key. Claimed covers reserved and consumed
// usages; released usages restore it.
type Counter struct {
	Category string
	CodeType promo.CodeType
	Cap      int
	Claimed  int
}

// Remaining returns the headcount still claimable under the cap.
func (c Counter) Remaining() int {
	if r := c.Cap - c.Claimed; r > 0 {
		return r
	}
	return 0
}

// Ledger is the capacity ledger contract. TryClaim and Release must run
// inside the caller's transaction so a usage insert and its claim commit
// or roll back together.
type Ledger interface {
	// TryClaim grants min(count, cap-claimed) and returns the granted
	// amount, possibly zero. A key with no counter row is uncapped and
	// grants the full request. Negative counts are a programming error.
	TryClaim(ctx context.Context, category string, codeType promo.CodeType, count int) (int, error)
	// Release decrements claimed by count, floored at zero.
	Release(ctx context.Context, category string, codeType promo.CodeType, count int) error
	// Seed upserts configured caps, preserving claimed counts.
	Seed(ctx context.Context, counters []Counter) error
	Snapshot(ctx context.Context) ([]Counter, error)
}
