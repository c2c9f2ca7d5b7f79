package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ccc-cruise/service-promo/internal/domain"
	travelerDomain "github.com/ccc-cruise/service-promo/internal/domain/traveler"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TravelerModel is the GORM model for the travelers table.
type TravelerModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingRef  string     `gorm:"type:varchar(50);not null;uniqueIndex:uniq_booking_idx"`
	Idx         int        `gorm:"not null;uniqueIndex:uniq_booking_idx"`
	PromoCodeID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (TravelerModel) TableName() string { return "travelers" }

// GormTravelerRepository implements traveler.Repository using GORM.
type GormTravelerRepository struct {
	db *gorm.DB
}

// NewGormTravelerRepository creates a new GormTravelerRepository.
func NewGormTravelerRepository(db *gorm.DB) *GormTravelerRepository {
	return &GormTravelerRepository{db: db}
}

// FindByBookingAndIdx returns the traveler at idx within a booking.
func (r *GormTravelerRepository) FindByBookingAndIdx(ctx context.Context, bookingRef string, idx int) (*travelerDomain.Traveler, error) {
	var model TravelerModel
	err := conn(ctx, r.db).
		Where("booking_ref = ? AND idx = ?", bookingRef, idx).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("traveler", fmt.Sprintf("%s/%d", bookingRef, idx))
		}
		return nil, err
	}
	return toTravelerDomain(&model), nil
}

// ListFromIdx returns travelers of a booking with index >= fromIdx.
func (r *GormTravelerRepository) ListFromIdx(ctx context.Context, bookingRef string, fromIdx int) ([]*travelerDomain.Traveler, error) {
	var models []TravelerModel
	if err := conn(ctx, r.db).
		Where("booking_ref = ? AND idx >= ?", bookingRef, fromIdx).
		Order("idx").
		Find(&models).Error; err != nil {
		return nil, err
	}

	travelers := make([]*travelerDomain.Traveler, len(models))
	for i := range models {
		travelers[i] = toTravelerDomain(&models[i])
	}
	return travelers, nil
}

// SetPromoRef sets or clears the traveler's promo back-reference.
func (r *GormTravelerRepository) SetPromoRef(ctx context.Context, id uuid.UUID, promoCodeID *uuid.UUID) error {
	return conn(ctx, r.db).
		Model(&TravelerModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"promo_code_id": promoCodeID,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DeleteFromIdx removes travelers of a booking with index >= fromIdx.
func (r *GormTravelerRepository) DeleteFromIdx(ctx context.Context, bookingRef string, fromIdx int) error {
	return conn(ctx, r.db).
		Where("booking_ref = ? AND idx >= ?", bookingRef, fromIdx).
		Delete(&TravelerModel{}).Error
}

func toTravelerDomain(m *TravelerModel) *travelerDomain.Traveler {
	return &travelerDomain.Traveler{
		ID:          m.ID,
		BookingRef:  m.BookingRef,
		Idx:         m.Idx,
		PromoCodeID: m.PromoCodeID,
	}
}
