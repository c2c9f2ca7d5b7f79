package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ccc-cruise/service-promo/internal/domain"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	usageDomain "github.com/ccc-cruise/service-promo/internal/domain/usage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageEntryModel is the GORM model for the promo_usages table. A partial
// unique index over active rows is the backstop against double-reservation:
// at most one reserved or consumed entry per (code, traveler, booking).
type UsageEntryModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PromoCodeID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:uniq_active_usage,where:status <> 'released'"`
	BookingRef  string     `gorm:"type:varchar(50);not null;index;uniqueIndex:uniq_active_usage,where:status <> 'released'"`
	TravelerID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:uniq_active_usage,where:status <> 'released'"`
	Category    string     `gorm:"type:varchar(20);not null"`
	Status      string     `gorm:"type:varchar(20);not null;default:'reserved'"`
	ReservedAt  time.Time  `gorm:"type:timestamptz;not null"`
	ConsumedAt  *time.Time `gorm:"type:timestamptz"`
	ReleasedAt  *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (UsageEntryModel) TableName() string { return "promo_usages" }

// GormUsageRepository implements usage.Repository using GORM.
type GormUsageRepository struct {
	db *gorm.DB
}

// NewGormUsageRepository creates a new GormUsageRepository.
func NewGormUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

// Insert persists a new usage entry. The partial unique index turns a
// concurrent duplicate reservation into a Conflict.
func (r *GormUsageRepository) Insert(ctx context.Context, e *usageDomain.Entry) error {
	model := toUsageModel(e)
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("promo code already reserved for this traveler")
		}
		return err
	}
	return nil
}

// FindByID returns a usage entry by ID.
func (r *GormUsageRepository) FindByID(ctx context.Context, id uuid.UUID) (*usageDomain.Entry, error) {
	var model UsageEntryModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("usage entry", id.String())
		}
		return nil, err
	}
	return toUsageDomain(&model), nil
}

// FindActive returns the reserved or consumed entry for the exact
// (code, traveler, booking) triple, or nil when none exists.
func (r *GormUsageRepository) FindActive(ctx context.Context, promoCodeID, travelerID uuid.UUID, bookingRef string) (*usageDomain.Entry, error) {
	var model UsageEntryModel
	err := conn(ctx, r.db).
		Where("promo_code_id = ? AND traveler_id = ? AND booking_ref = ? AND status <> ?",
			promoCodeID, travelerID, bookingRef, string(usageDomain.StatusReleased)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUsageDomain(&model), nil
}

// FindActiveByTraveler returns the traveler's current active entry within
// the booking, or nil.
func (r *GormUsageRepository) FindActiveByTraveler(ctx context.Context, travelerID uuid.UUID, bookingRef string) (*usageDomain.Entry, error) {
	var model UsageEntryModel
	err := conn(ctx, r.db).
		Where("traveler_id = ? AND booking_ref = ? AND status <> ?",
			travelerID, bookingRef, string(usageDomain.StatusReleased)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUsageDomain(&model), nil
}

// ListReservedByBooking returns all reserved entries under a booking.
func (r *GormUsageRepository) ListReservedByBooking(ctx context.Context, bookingRef string) ([]*usageDomain.Entry, error) {
	var models []UsageEntryModel
	if err := conn(ctx, r.db).
		Where("booking_ref = ? AND status = ?", bookingRef, string(usageDomain.StatusReserved)).
		Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]*usageDomain.Entry, len(models))
	for i := range models {
		entries[i] = toUsageDomain(&models[i])
	}
	return entries, nil
}

// CountActiveByCode counts reserved plus consumed entries for a code.
func (r *GormUsageRepository) CountActiveByCode(ctx context.Context, promoCodeID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Where("promo_code_id = ? AND status <> ?", promoCodeID, string(usageDomain.StatusReleased)).
		Count(&count).Error
	return count, err
}

// CountConsumedByCode counts consumed entries for a code.
func (r *GormUsageRepository) CountConsumedByCode(ctx context.Context, promoCodeID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Where("promo_code_id = ? AND status = ?", promoCodeID, string(usageDomain.StatusConsumed)).
		Count(&count).Error
	return count, err
}

// ConsumedCountByType aggregates consumed usages per code type for the
// admin report.
func (r *GormUsageRepository) ConsumedCountByType(ctx context.Context) (map[promoDomain.CodeType]int64, error) {
	var rows []struct {
		CodeType string
		Total    int64
	}
	if err := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Select("promo_codes.code_type, COUNT(*) AS total").
		Joins("JOIN promo_codes ON promo_codes.id = promo_usages.promo_code_id").
		Where("promo_usages.status = ?", string(usageDomain.StatusConsumed)).
		Group("promo_codes.code_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[promoDomain.CodeType]int64, len(rows))
	for _, row := range rows {
		counts[promoDomain.CodeType(row.CodeType)] = row.Total
	}
	return counts, nil
}

// ActiveCountsByCode returns active usage counts keyed by promo code ID,
// used by the admin code listing.
func (r *GormUsageRepository) ActiveCountsByCode(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		PromoCodeID uuid.UUID
		Total       int64
	}
	if err := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Select("promo_code_id, COUNT(*) AS total").
		Where("status <> ?", string(usageDomain.StatusReleased)).
		Group("promo_code_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.PromoCodeID] = row.Total
	}
	return counts, nil
}

// MarkConsumed flips reserved -> consumed with a conditional update.
func (r *GormUsageRepository) MarkConsumed(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Where("id = ? AND status = ?", id, string(usageDomain.StatusReserved)).
		Updates(map[string]any{
			"status":      string(usageDomain.StatusConsumed),
			"consumed_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkReleased flips reserved -> released with a conditional update.
func (r *GormUsageRepository) MarkReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Where("id = ? AND status = ?", id, string(usageDomain.StatusReserved)).
		Updates(map[string]any{
			"status":      string(usageDomain.StatusReleased),
			"released_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ConsumeAllReserved flips every reserved entry of a booking to consumed.
// A single UPDATE keeps the transition all-or-nothing per booking.
func (r *GormUsageRepository) ConsumeAllReserved(ctx context.Context, bookingRef string) (int64, error) {
	now := time.Now().UTC()
	result := conn(ctx, r.db).
		Model(&UsageEntryModel{}).
		Where("booking_ref = ? AND status = ?", bookingRef, string(usageDomain.StatusReserved)).
		Updates(map[string]any{
			"status":      string(usageDomain.StatusConsumed),
			"consumed_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func toUsageModel(e *usageDomain.Entry) UsageEntryModel {
	return UsageEntryModel{
		ID:          e.ID(),
		PromoCodeID: e.PromoCodeID(),
		BookingRef:  e.BookingRef(),
		TravelerID:  e.TravelerID(),
		Category:    e.Category(),
		Status:      string(e.Status()),
		ReservedAt:  e.ReservedAt(),
		ConsumedAt:  e.ConsumedAt(),
		ReleasedAt:  e.ReleasedAt(),
		CreatedAt:   e.CreatedAt(),
		UpdatedAt:   e.UpdatedAt(),
	}
}

func toUsageDomain(m *UsageEntryModel) *usageDomain.Entry {
	return usageDomain.Reconstruct(
		m.ID, m.PromoCodeID, m.BookingRef, m.TravelerID, m.Category,
		usageDomain.Status(m.Status),
		m.ReservedAt, m.ConsumedAt, m.ReleasedAt,
		m.CreatedAt, m.UpdatedAt,
	)
}
