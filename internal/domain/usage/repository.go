package usage

import (
	"context"

	"github.com/ccc-cruise/service-promo/internal/domain/promo"
	"github.com/google/uuid"
)

// Repository defines persistence operations for usage entries.
//
// MarkConsumed and MarkReleased are conditional updates guarded by the
// current status so concurrent transitions cannot double-fire.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	FindByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// FindActive returns the reserved or consumed entry for the exact
	// (promo code, traveler, booking) triple, or nil when none exists.
	FindActive(ctx context.Context, promoCodeID, travelerID uuid.UUID, bookingRef string) (*Entry, error)
	// FindActiveByTraveler returns the traveler's current reserved or
	// consumed entry within the booking, or nil.
	FindActiveByTraveler(ctx context.Context, travelerID uuid.UUID, bookingRef string) (*Entry, error)
	ListReservedByBooking(ctx context.Context, bookingRef string) ([]*Entry, error)
	// CountActiveByCode counts reserved plus consumed entries for a code,
	// used to enforce per-code usage limits.
	CountActiveByCode(ctx context.Context, promoCodeID uuid.UUID) (int64, error)
	CountConsumedByCode(ctx context.Context, promoCodeID uuid.UUID) (int64, error)
	ConsumedCountByType(ctx context.Context) (map[promo.CodeType]int64, error)
	ActiveCountsByCode(ctx context.Context) (map[uuid.UUID]int64, error)
	// MarkConsumed flips reserved -> consumed. Returns false when the entry
	// was not in the reserved state.
	MarkConsumed(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkReleased flips reserved -> released. Returns false when the entry
	// was not in the reserved state.
	MarkReleased(ctx context.Context, id uuid.UUID) (bool, error)
	// ConsumeAllReserved flips every reserved entry of the booking to
	// consumed in a single statement and returns the number transitioned.
	ConsumeAllReserved(ctx context.Context, bookingRef string) (int64, error)
}
