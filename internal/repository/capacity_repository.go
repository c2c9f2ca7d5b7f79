package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ccc-cruise/service-promo/internal/domain"
	capacityDomain "github.com/ccc-cruise/service-promo/internal/domain/capacity"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CapacityCounterModel is the GORM model for the capacity_counters table.
// One row per (category, code type); claim and release mutate the claimed
// column under a row lock.
type CapacityCounterModel struct {
	Category  string    `gorm:"type:varchar(20);primaryKey"`
	CodeType  string    `gorm:"type:varchar(20);primaryKey"`
	Cap       int       `gorm:"column:cap;not null"`
	Claimed   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CapacityCounterModel) TableName() string { return "capacity_counters" }

// GormCapacityLedger implements capacity.Ledger using GORM.
type GormCapacityLedger struct {
	db *gorm.DB
}

// NewGormCapacityLedger creates a new GormCapacityLedger.
func NewGormCapacityLedger(db *gorm.DB) *GormCapacityLedger {
	return &GormCapacityLedger{db: db}
}

// TryClaim grants min(count, remaining) under a FOR UPDATE row lock.
// A missing counter row means the key is uncapped and the full request is
// granted without touching storage.
func (l *GormCapacityLedger) TryClaim(ctx context.Context, category string, codeType promoDomain.CodeType, count int) (int, error) {
	if count < 0 {
		return 0, domain.NewInvalidInputError("claim count cannot be negative")
	}
	if count == 0 {
		return 0, nil
	}

	db := conn(ctx, l.db)

	var model CapacityCounterModel
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("category = ? AND code_type = ?", category, string(codeType)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return count, nil
		}
		return 0, err
	}

	remaining := model.Cap - model.Claimed
	if remaining <= 0 {
		return 0, nil
	}

	granted := count
	if granted > remaining {
		granted = remaining
	}

	result := db.
		Model(&CapacityCounterModel{}).
		Where("category = ? AND code_type = ?", category, string(codeType)).
		Updates(map[string]any{
			"claimed":    gorm.Expr("claimed + ?", granted),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return granted, nil
}

// Release decrements claimed by count, floored at zero.
func (l *GormCapacityLedger) Release(ctx context.Context, category string, codeType promoDomain.CodeType, count int) error {
	if count < 0 {
		return domain.NewInvalidInputError("release count cannot be negative")
	}
	if count == 0 {
		return nil
	}

	return conn(ctx, l.db).
		Model(&CapacityCounterModel{}).
		Where("category = ? AND code_type = ?", category, string(codeType)).
		Updates(map[string]any{
			"claimed":    gorm.Expr("GREATEST(claimed - ?, 0)", count),
			"updated_at": time.Now().UTC(),
		}).Error
}

// Seed upserts the configured caps, leaving claimed counts intact so a
// restart never forgets committed capacity.
func (l *GormCapacityLedger) Seed(ctx context.Context, counters []capacityDomain.Counter) error {
	if len(counters) == 0 {
		return nil
	}

	models := make([]CapacityCounterModel, len(counters))
	now := time.Now().UTC()
	for i, c := range counters {
		models[i] = CapacityCounterModel{
			Category:  c.Category,
			CodeType:  string(c.CodeType),
			Cap:       c.Cap,
			Claimed:   c.Claimed,
			UpdatedAt: now,
		}
	}

	return conn(ctx, l.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "code_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"cap", "updated_at"}),
		}).
		Create(&models).Error
}

// Snapshot returns all counters.
func (l *GormCapacityLedger) Snapshot(ctx context.Context) ([]capacityDomain.Counter, error) {
	var models []CapacityCounterModel
	if err := conn(ctx, l.db).Order("category, code_type").Find(&models).Error; err != nil {
		return nil, err
	}

	counters := make([]capacityDomain.Counter, len(models))
	for i, m := range models {
		counters[i] = capacityDomain.Counter{
			Category: m.Category,
			CodeType: promoDomain.CodeType(m.CodeType),
			Cap:      m.Cap,
			Claimed:  m.Claimed,
		}
	}
	return counters, nil
}
