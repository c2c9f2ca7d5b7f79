package application

import (
	"context"
	"time"

	"github.com/ccc-cruise/service-promo/internal/cache"
	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/ccc-cruise/service-promo/internal/domain/capacity"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	usageDomain "github.com/ccc-cruise/service-promo/internal/domain/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxGenerateQuantity = 500
	codeGenAttempts     = 5
	statsCacheKey       = "promo:stats"
	statsCacheTTL       = 30 * time.Second
)

// GenerateRequest holds data for a bulk code generation.
type GenerateRequest struct {
	Type     string `json:"type" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Note     string `json:"note"`
	MaxUses  int    `json:"max_uses"`
}

// PromoCodeDTO is the admin representation of a promo code.
type PromoCodeDTO struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	MaxUses    int       `json:"max_uses"`
	ActiveUses int64     `json:"active_uses"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CounterDTO is one capacity counter row in the stats report.
type CounterDTO struct {
	Category  string `json:"category"`
	Type      string `json:"type"`
	Cap       int    `json:"cap"`
	Claimed   int    `json:"claimed"`
	Remaining int    `json:"remaining"`
}

// StatsDTO is the admin dashboard report. Remaining figures come from the
// capacity ledger, not a usage scan.
type StatsDTO struct {
	Created         map[string]int64 `json:"created"`
	Consumed        map[string]int64 `json:"consumed"`
	Caps            []CounterDTO     `json:"caps"`
	RemainingByType map[string]int64 `json:"remaining_by_type"`
}

// AdminService handles the administrative surface: bulk generation, status
// toggles, listing, and aggregate reporting.
type AdminService struct {
	tx     TxRunner
	promos promoDomain.Repository
	usages usageDomain.Repository
	ledger capacity.Ledger
	cache  *cache.Cache
	logger *zap.Logger
}

// NewAdminService creates a new AdminService. cache may be nil; stats are
// then always computed from storage.
func NewAdminService(
	tx TxRunner,
	promos promoDomain.Repository,
	usages usageDomain.Repository,
	ledger capacity.Ledger,
	statsCache *cache.Cache,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		tx:     tx,
		promos: promos,
		usages: usages,
		ledger: ledger,
		cache:  statsCache,
		logger: logger,
	}
}

// Generate creates quantity new unique codes of the requested type, all in
// one transaction: either every code is persisted or none is. Collisions
// with existing codes are retried a bounded number of times per code.
func (s *AdminService) Generate(ctx context.Context, req GenerateRequest) ([]PromoCodeDTO, error) {
	codeType := promoDomain.CodeType(req.Type)
	if !codeType.Valid() {
		return nil, domain.NewInvalidInputError("invalid code type: %s", req.Type)
	}
	if req.Quantity < 1 || req.Quantity > maxGenerateQuantity {
		return nil, domain.NewInvalidInputError("quantity must be between 1 and %d", maxGenerateQuantity)
	}

	assignment := promoDomain.Assignment{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Note:  req.Note,
	}

	var created []*promoDomain.PromoCode
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		created = created[:0]
		batch := make(map[string]bool, req.Quantity)

		for i := 0; i < req.Quantity; i++ {
			code, err := s.uniqueCode(txCtx, codeType, batch)
			if err != nil {
				return err
			}
			batch[code] = true

			p, err := promoDomain.NewPromoCode(code, codeType, req.MaxUses, assignment)
			if err != nil {
				return err
			}
			created = append(created, p)
		}

		return s.promos.SaveBatch(txCtx, created)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.Info("promo codes generated",
		zap.String("type", string(codeType)),
		zap.Int("quantity", req.Quantity),
	)

	dtos := make([]PromoCodeDTO, len(created))
	for i, p := range created {
		dtos[i] = toPromoCodeDTO(p, 0)
	}
	return dtos, nil
}

// uniqueCode draws random codes until one is free of both in-batch and
// stored collisions.
func (s *AdminService) uniqueCode(ctx context.Context, codeType promoDomain.CodeType, batch map[string]bool) (string, error) {
	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		code, err := promoDomain.GenerateCode(codeType)
		if err != nil {
			return "", err
		}
		if batch[code] {
			continue
		}
		if _, err := s.promos.FindByCode(ctx, code); err != nil {
			if domain.IsNotFound(err) {
				return code, nil
			}
			return "", err
		}
	}
	return "", domain.NewConflictError("could not generate a unique code after %d attempts", codeGenAttempts)
}

// SetStatus archives or reactivates a code. Archiving a code backed by a
// consumed usage is rejected; consumed codes must stay visible for audit.
// Archiving over reserved-only usages succeeds and does not release them.
func (s *AdminService) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	target := promoDomain.Status(status)
	if target != promoDomain.StatusActive && target != promoDomain.StatusArchived {
		return domain.NewInvalidInputError("invalid status: %s", status)
	}

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		p, err := s.promos.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		if target == promoDomain.StatusArchived {
			consumed, err := s.usages.CountConsumedByCode(txCtx, p.ID())
			if err != nil {
				return err
			}
			if consumed > 0 {
				return domain.NewConflictError("cannot archive a code with a consumed usage")
			}
			p.Archive()
		} else {
			p.Reactivate()
		}

		return s.promos.Update(txCtx, p)
	})
	if err != nil {
		return err
	}

	s.logger.Info("promo code status changed",
		zap.String("id", id.String()),
		zap.String("status", status),
	)
	return nil
}

// List returns promo codes with their active usage counts.
func (s *AdminService) List(ctx context.Context, page, limit int) ([]PromoCodeDTO, int64, error) {
	codes, total, err := s.promos.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	activeCounts, err := s.usages.ActiveCountsByCode(ctx)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]PromoCodeDTO, len(codes))
	for i, p := range codes {
		dtos[i] = toPromoCodeDTO(p, activeCounts[p.ID()])
	}
	return dtos, total, nil
}

// Stats builds the created/consumed/caps/remaining report. Dashboards
// tolerate staleness, so results are cached briefly when Redis is wired.
func (s *AdminService) Stats(ctx context.Context) (*StatsDTO, error) {
	if s.cache != nil {
		var cached StatsDTO
		if ok, err := s.cache.GetJSON(ctx, statsCacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	created, err := s.promos.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	consumed, err := s.usages.ConsumedCountByType(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stats := &StatsDTO{
		Created:         make(map[string]int64),
		Consumed:        make(map[string]int64),
		Caps:            make([]CounterDTO, 0, len(counters)),
		RemainingByType: make(map[string]int64),
	}
	for _, t := range []promoDomain.CodeType{promoDomain.TypeEarlyBird, promoDomain.TypeArtist, promoDomain.TypeStaff} {
		stats.Created[string(t)] = created[t]
		stats.Consumed[string(t)] = consumed[t]
	}
	for _, c := range counters {
		stats.Caps = append(stats.Caps, CounterDTO{
			Category:  c.Category,
			Type:      string(c.CodeType),
			Cap:       c.Cap,
			Claimed:   c.Claimed,
			Remaining: c.Remaining(),
		})
		stats.RemainingByType[string(c.CodeType)] += int64(c.Remaining())
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, statsCacheKey, stats, statsCacheTTL); err != nil {
			s.logger.Warn("failed to cache stats snapshot", zap.Error(err))
		}
	}
	return stats, nil
}

// invalidateStats drops the cached stats snapshot after a write.
func (s *AdminService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

func toPromoCodeDTO(p *promoDomain.PromoCode, activeUses int64) PromoCodeDTO {
	assigned := p.AssignedTo()
	return PromoCodeDTO{
		ID:         p.ID(),
		Code:       p.Code(),
		Type:       string(p.Type()),
		Status:     string(p.Status()),
		MaxUses:    p.MaxUses(),
		ActiveUses: activeUses,
		Name:       assigned.Name,
		Email:      assigned.Email,
		Phone:      assigned.Phone,
		Note:       assigned.Note,
		CreatedAt:  p.CreatedAt(),
	}
}
