package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ccc-cruise/service-promo/internal/domain"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromoCodeModel is the GORM model for the promo_codes table.
// Codes are stored upper-cased, so the unique index doubles as the
// case-insensitive uniqueness guarantee.
type PromoCodeModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code           string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	CodeType       string    `gorm:"type:varchar(20);not null;index"`
	Status         string    `gorm:"type:varchar(20);not null;default:'active'"`
	MaxUses        int       `gorm:"not null;default:0"`
	AssignedName   string    `gorm:"type:varchar(255)"`
	AssignedEmail  string    `gorm:"type:varchar(255)"`
	AssignedPhone  string    `gorm:"type:varchar(50)"`
	AssignedNote   string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromoCodeModel) TableName() string { return "promo_codes" }

// GormPromoRepository implements promo.Repository using GORM.
type GormPromoRepository struct {
	db *gorm.DB
}

// NewGormPromoRepository creates a new GormPromoRepository.
func NewGormPromoRepository(db *gorm.DB) *GormPromoRepository {
	return &GormPromoRepository{db: db}
}

// Save persists a new promo code. A unique-index violation surfaces as a
// Conflict so callers can retry code generation.
func (r *GormPromoRepository) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	model := toPromoModel(p)
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("promo code %s already exists", p.Code())
		}
		return err
	}
	return nil
}

// SaveBatch persists a batch of promo codes in one insert.
func (r *GormPromoRepository) SaveBatch(ctx context.Context, codes []*promoDomain.PromoCode) error {
	models := make([]PromoCodeModel, len(codes))
	for i, p := range codes {
		models[i] = toPromoModel(p)
	}
	if err := conn(ctx, r.db).Create(&models).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("promo code batch contains an existing code")
		}
		return err
	}
	return nil
}

// Update updates a promo code.
func (r *GormPromoRepository) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	model := toPromoModel(p)
	return conn(ctx, r.db).Save(&model).Error
}

// FindByCode returns a promo code by its code string, case-insensitively.
func (r *GormPromoRepository) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	var model PromoCodeModel
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := conn(ctx, r.db).Where("code = ?", normalized).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("promo code", code)
		}
		return nil, err
	}
	return toPromoDomain(&model), nil
}

// FindByID returns a promo code by ID.
func (r *GormPromoRepository) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	var model PromoCodeModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("promo code", id.String())
		}
		return nil, err
	}
	return toPromoDomain(&model), nil
}

// List returns promo codes newest-first with pagination.
func (r *GormPromoRepository) List(ctx context.Context, page, limit int) ([]*promoDomain.PromoCode, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&PromoCodeModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PromoCodeModel
	offset := (page - 1) * limit
	if err := conn(ctx, r.db).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	codes := make([]*promoDomain.PromoCode, len(models))
	for i := range models {
		codes[i] = toPromoDomain(&models[i])
	}
	return codes, total, nil
}

// CountByType returns the number of created codes per type.
func (r *GormPromoRepository) CountByType(ctx context.Context) (map[promoDomain.CodeType]int64, error) {
	var rows []struct {
		CodeType string
		Total    int64
	}
	if err := conn(ctx, r.db).
		Model(&PromoCodeModel{}).
		Select("code_type, COUNT(*) AS total").
		Group("code_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[promoDomain.CodeType]int64, len(rows))
	for _, row := range rows {
		counts[promoDomain.CodeType(row.CodeType)] = row.Total
	}
	return counts, nil
}

func toPromoModel(p *promoDomain.PromoCode) PromoCodeModel {
	assigned := p.AssignedTo()
	return PromoCodeModel{
		ID:            p.ID(),
		Code:          p.Code(),
		CodeType:      string(p.Type()),
		Status:        string(p.Status()),
		MaxUses:       p.MaxUses(),
		AssignedName:  assigned.Name,
		AssignedEmail: assigned.Email,
		AssignedPhone: assigned.Phone,
		AssignedNote:  assigned.Note,
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}

func toPromoDomain(m *PromoCodeModel) *promoDomain.PromoCode {
	return promoDomain.Reconstruct(
		m.ID, m.Code, promoDomain.CodeType(m.CodeType), promoDomain.Status(m.Status),
		m.MaxUses,
		promoDomain.Assignment{
			Name:  m.AssignedName,
			Email: m.AssignedEmail,
			Phone: m.AssignedPhone,
			Note:  m.AssignedNote,
		},
		m.CreatedAt, m.UpdatedAt,
	)
}
