package usage

import (
	"time"

	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/google/uuid"
)

// Status represents the state of a usage entry.
type Status string

const (
	StatusReserved Status = "reserved"
	StatusConsumed Status = "consumed"
	StatusReleased Status = "released"
)

// Entry is the aggregate root binding a promo code to a traveler within a
// booking. It is the source of truth for whether a code is in use.
//
// State machine: reserved -> consumed (terminal) on payment confirmation,
// reserved -> released (terminal) on removal or group shrink.
type Entry struct {
	id          uuid.UUID
	promoCodeID uuid.UUID
	bookingRef  string
	travelerID  uuid.UUID
	category    string
	status      Status
	reservedAt  time.Time
	consumedAt  *time.Time
	releasedAt  *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewEntry creates a usage entry in the reserved state.
func NewEntry(promoCodeID uuid.UUID, bookingRef string, travelerID uuid.UUID, category string) (*Entry, error) {
	if bookingRef == "" {
		return nil, domain.NewInvalidInputError("booking reference is required")
	}
	if category == "" {
		return nil, domain.NewInvalidInputError("cabin category is required")
	}

	now := time.Now().UTC()
	return &Entry{
		id:          uuid.New(),
		promoCodeID: promoCodeID,
		bookingRef:  bookingRef,
		travelerID:  travelerID,
		category:    category,
		status:      StatusReserved,
		reservedAt:  now,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds an Entry from persistence.
func Reconstruct(id, promoCodeID uuid.UUID, bookingRef string, travelerID uuid.UUID, category string, status Status, reservedAt time.Time, consumedAt, releasedAt *time.Time, createdAt, updatedAt time.Time) *Entry {
	return &Entry{
		id: id, promoCodeID: promoCodeID, bookingRef: bookingRef,
		travelerID: travelerID, category: category, status: status,
		reservedAt: reservedAt, consumedAt: consumedAt, releasedAt: releasedAt,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Consume transitions from reserved to consumed. Consuming an already
// consumed entry is an idempotent no-op; a released entry cannot be consumed.
func (e *Entry) Consume() error {
	if e.status == StatusConsumed {
		return nil
	}
	if e.status != StatusReserved {
		return domain.NewInvalidStateError(string(e.status), string(StatusConsumed))
	}
	now := time.Now().UTC()
	e.status = StatusConsumed
	e.consumedAt = &now
	e.updatedAt = now
	return nil
}

// Release transitions from reserved to released. Consumed and released
// entries are left untouched; the call reports success without effect.
func (e *Entry) Release() error {
	if e.status != StatusReserved {
		return nil
	}
	now := time.Now().UTC()
	e.status = StatusReleased
	e.releasedAt = &now
	e.updatedAt = now
	return nil
}

// Active reports whether the entry currently holds its slot
// (reserved or consumed).
func (e *Entry) Active() bool {
	return e.status == StatusReserved || e.status == StatusConsumed
}

// Getters.
func (e *Entry) ID() uuid.UUID          { return e.id }
func (e *Entry) PromoCodeID() uuid.UUID { return e.promoCodeID }
func (e *Entry) BookingRef() string     { return e.bookingRef }
func (e *Entry) TravelerID() uuid.UUID  { return e.travelerID }
func (e *Entry) Category() string       { return e.category }
func (e *Entry) Status() Status         { return e.status }
func (e *Entry) ReservedAt() time.Time  { return e.reservedAt }
func (e *Entry) ConsumedAt() *time.Time { return e.consumedAt }
func (e *Entry) ReleasedAt() *time.Time { return e.releasedAt }
func (e *Entry) CreatedAt() time.Time   { return e.createdAt }
func (e *Entry) UpdatedAt() time.Time   { return e.updatedAt }
