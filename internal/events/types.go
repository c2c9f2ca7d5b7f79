package events

import "time"

// Topics shared with the booking service.
const (
	TopicBookingEvents = "booking.events"
	TopicPromoEvents   = "promo.events"
)

// Event types on booking.events.
const (
	BookingPaymentConfirmed = "booking.payment.confirmed"
	BookingPartyResized     = "booking.party.resized"
	BookingCancelled        = "booking.cancelled"
)

// Event types on promo.events.
const (
	PromoConsumed = "promo.consumed"
	PromoReleased = "promo.released"
)

// PaymentConfirmedEvent signals that a booking's payment went through.
type PaymentConfirmedEvent struct {
	BookingRef string    `json:"booking_ref"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PartyResizedEvent signals that a booking's traveler count changed.
type PartyResizedEvent struct {
	BookingRef    string    `json:"booking_ref"`
	TravelerCount int       `json:"traveler_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingCancelledEvent signals that a booking was cancelled outright.
type BookingCancelledEvent struct {
	BookingRef string    `json:"booking_ref"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PromoConsumedEvent reports how many usages a payment finalized.
type PromoConsumedEvent struct {
	BookingRef string    `json:"booking_ref"`
	Count      int64     `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PromoReleasedEvent reports a reservation returned to the pool.
type PromoReleasedEvent struct {
	BookingRef string    `json:"booking_ref"`
	Code       string    `json:"code"`
	OccurredAt time.Time `json:"occurred_at"`
}
