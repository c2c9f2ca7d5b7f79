package promo

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for promo codes.
type Repository interface {
	Save(ctx context.Context, p *PromoCode) error
	SaveBatch(ctx context.Context, codes []*PromoCode) error
	Update(ctx context.Context, p *PromoCode) error
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	List(ctx context.Context, page, limit int) ([]*PromoCode, int64, error)
	CountByType(ctx context.Context) (map[CodeType]int64, error)
}
