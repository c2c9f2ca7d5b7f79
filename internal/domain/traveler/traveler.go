package traveler

import (
	"context"

	"github.com/google/uuid"
)

// Traveler is the booking service's party member, mirrored here so the
// promo engine can hold and clear the per-traveler promo back-reference.
// At most one active promo per traveler at a time.
type Traveler struct {
	ID          uuid.UUID
	BookingRef  string
	Idx         int
	PromoCodeID *uuid.UUID
}

// Repository defines the engine's view of traveler rows.
type Repository interface {
	FindByBookingAndIdx(ctx context.Context, bookingRef string, idx int) (*Traveler, error)
	ListFromIdx(ctx context.Context, bookingRef string, fromIdx int) ([]*Traveler, error)
	SetPromoRef(ctx context.Context, id uuid.UUID, promoCodeID *uuid.UUID) error
	DeleteFromIdx(ctx context.Context, bookingRef string, fromIdx int) error
}
