package application

import (
	"context"
	"strings"

	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/ccc-cruise/service-promo/internal/domain/capacity"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	travelerDomain "github.com/ccc-cruise/service-promo/internal/domain/traveler"
	usageDomain "github.com/ccc-cruise/service-promo/internal/domain/usage"
	"go.uber.org/zap"
)

// TxRunner executes a function inside one storage transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher emits promo lifecycle events for downstream services.
// Implementations must tolerate being called after the transaction commits.
type EventPublisher interface {
	PromoConsumed(ctx context.Context, bookingRef string, count int64)
	PromoReleased(ctx context.Context, bookingRef, code string)
}

// ReservationService orchestrates promo code reservation, release, and
// consumption against the usage and capacity ledgers.
type ReservationService struct {
	tx        TxRunner
	promos    promoDomain.Repository
	usages    usageDomain.Repository
	ledger    capacity.Ledger
	travelers travelerDomain.Repository
	publisher EventPublisher
	logger    *zap.Logger
}

// NewReservationService creates a new ReservationService. publisher may be
// nil when no event transport is configured.
func NewReservationService(
	tx TxRunner,
	promos promoDomain.Repository,
	usages usageDomain.Repository,
	ledger capacity.Ledger,
	travelers travelerDomain.Repository,
	publisher EventPublisher,
	logger *zap.Logger,
) *ReservationService {
	return &ReservationService{
		tx:        tx,
		promos:    promos,
		usages:    usages,
		ledger:    ledger,
		travelers: travelers,
		publisher: publisher,
		logger:    logger,
	}
}

// Apply reserves a promo code for one traveler. The usage insert and the
// capacity claim commit or roll back together; a zero grant aborts the
// transaction with CapacityExhausted. Re-applying the code a traveler
// already holds is an idempotent success that claims no new capacity.
func (s *ReservationService) Apply(ctx context.Context, code, bookingRef string, travelerIdx int, category string) error {
	if bookingRef == "" {
		return domain.NewInvalidInputError("booking reference is required")
	}
	if strings.TrimSpace(code) == "" {
		return domain.NewInvalidInputError("promo code is required")
	}
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return domain.NewInvalidInputError("cabin category is required")
	}

	err := withRetry(ctx, s.logger, "apply", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			p, err := s.promos.FindByCode(txCtx, code)
			if err != nil {
				return err
			}
			if p.IsArchived() {
				return domain.NewConflictError("promo code %s is archived", p.Code())
			}

			trav, err := s.travelers.FindByBookingAndIdx(txCtx, bookingRef, travelerIdx)
			if err != nil {
				return err
			}

			existing, err := s.usages.FindActiveByTraveler(txCtx, trav.ID, bookingRef)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.PromoCodeID() == p.ID() {
					// Idempotent re-apply: the slot is already held.
					return nil
				}
				return domain.NewConflictError("traveler already has a promo code applied")
			}

			if p.MaxUses() > 0 {
				active, err := s.usages.CountActiveByCode(txCtx, p.ID())
				if err != nil {
					return err
				}
				if active >= int64(p.MaxUses()) {
					return domain.NewConflictError("promo code %s usage limit reached", p.Code())
				}
			}

			entry, err := usageDomain.NewEntry(p.ID(), bookingRef, trav.ID, category)
			if err != nil {
				return err
			}
			if err := s.usages.Insert(txCtx, entry); err != nil {
				return err
			}

			if p.Type().CapacityBounded() {
				granted, err := s.ledger.TryClaim(txCtx, category, p.Type(), 1)
				if err != nil {
					return err
				}
				if granted == 0 {
					return domain.NewCapacityExhaustedError(category, string(p.Type()))
				}
			}

			promoID := p.ID()
			return s.travelers.SetPromoRef(txCtx, trav.ID, &promoID)
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("promo code applied",
		zap.String("code", strings.ToUpper(strings.TrimSpace(code))),
		zap.String("booking_ref", bookingRef),
		zap.Int("traveler_idx", travelerIdx),
		zap.String("category", category),
	)
	return nil
}

// Remove releases the traveler's reserved usage and restores its capacity.
// A traveler with no usage is a no-op success. A consumed usage is left
// intact: paid promo claims stay permanently tied to the traveler.
func (s *ReservationService) Remove(ctx context.Context, bookingRef string, travelerIdx int) error {
	if bookingRef == "" {
		return domain.NewInvalidInputError("booking reference is required")
	}

	var releasedCode string
	err := withRetry(ctx, s.logger, "remove", func(ctx context.Context) error {
		releasedCode = ""
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			trav, err := s.travelers.FindByBookingAndIdx(txCtx, bookingRef, travelerIdx)
			if err != nil {
				return err
			}

			entry, err := s.usages.FindActiveByTraveler(txCtx, trav.ID, bookingRef)
			if err != nil {
				return err
			}
			if entry == nil {
				return nil
			}
			if entry.Status() == usageDomain.StatusConsumed {
				return nil
			}

			code, err := s.releaseEntry(txCtx, entry)
			if err != nil {
				return err
			}
			releasedCode = code

			return s.travelers.SetPromoRef(txCtx, trav.ID, nil)
		})
	})
	if err != nil {
		return err
	}

	if releasedCode != "" {
		if s.publisher != nil {
			s.publisher.PromoReleased(ctx, bookingRef, releasedCode)
		}
		s.logger.Info("promo code released",
			zap.String("code", releasedCode),
			zap.String("booking_ref", bookingRef),
			zap.Int("traveler_idx", travelerIdx),
		)
	}
	return nil
}

// OnGroupShrink releases reserved usages of travelers at index >=
// newTravelerCount and deletes their rows. Consumed usages do not block the
// shrink; their rows and capacity stay committed pending accounting review.
func (s *ReservationService) OnGroupShrink(ctx context.Context, bookingRef string, newTravelerCount int) error {
	if bookingRef == "" {
		return domain.NewInvalidInputError("booking reference is required")
	}
	if newTravelerCount < 0 {
		return domain.NewInvalidInputError("traveler count cannot be negative")
	}

	err := withRetry(ctx, s.logger, "group_shrink", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			trimmed, err := s.travelers.ListFromIdx(txCtx, bookingRef, newTravelerCount)
			if err != nil {
				return err
			}

			for _, trav := range trimmed {
				entry, err := s.usages.FindActiveByTraveler(txCtx, trav.ID, bookingRef)
				if err != nil {
					return err
				}
				if entry == nil || entry.Status() != usageDomain.StatusReserved {
					continue
				}
				if _, err := s.releaseEntry(txCtx, entry); err != nil {
					return err
				}
			}

			return s.travelers.DeleteFromIdx(txCtx, bookingRef, newTravelerCount)
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("booking party trimmed",
		zap.String("booking_ref", bookingRef),
		zap.Int("new_count", newTravelerCount),
	)
	return nil
}

// OnPaymentConfirmed flips every reserved usage under the booking to
// consumed in one transaction. Capacity stays committed.
func (s *ReservationService) OnPaymentConfirmed(ctx context.Context, bookingRef string) error {
	if bookingRef == "" {
		return domain.NewInvalidInputError("booking reference is required")
	}

	var consumed int64
	err := withRetry(ctx, s.logger, "payment_confirmed", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			consumed, err = s.usages.ConsumeAllReserved(txCtx, bookingRef)
			return err
		})
	})
	if err != nil {
		return err
	}

	if consumed > 0 {
		if s.publisher != nil {
			s.publisher.PromoConsumed(ctx, bookingRef, consumed)
		}
		s.logger.Info("promo usages consumed",
			zap.String("booking_ref", bookingRef),
			zap.Int64("count", consumed),
		)
	}
	return nil
}

// releaseEntry flips a reserved entry to released and restores its
// capacity claim. Returns the released code string, empty when the entry
// had already left the reserved state.
func (s *ReservationService) releaseEntry(ctx context.Context, entry *usageDomain.Entry) (string, error) {
	released, err := s.usages.MarkReleased(ctx, entry.ID())
	if err != nil {
		return "", err
	}
	if !released {
		return "", nil
	}

	p, err := s.promos.FindByID(ctx, entry.PromoCodeID())
	if err != nil {
		return "", err
	}
	if p.Type().CapacityBounded() {
		if err := s.ledger.Release(ctx, entry.Category(), p.Type(), 1); err != nil {
			return "", err
		}
	}
	return p.Code(), nil
}
