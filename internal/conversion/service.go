package conversion

import (
	"context"
	"fmt"
	"time"

	"creditslot/internal/clock"
	"creditslot/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Service interface {
	// ActiveRate reads the store. Money paths (debits, payouts) use it.
	ActiveRate(ctx context.Context) (*Conversion, error)
	// CachedRate serves the read API from the candidate cache.
	CachedRate(ctx context.Context) (*Conversion, error)
	ResolveForSlot(ctx context.Context, slotID int64) (*Conversion, error)
	Create(ctx context.Context, req CreateRequest) (*Conversion, error)
}

type CreateRequest struct {
	CreditsPerCurrencyUnit decimal.Decimal `json:"credits_per_currency_unit" example:"100"`
	PaidToFreeRatio        int64           `json:"paid_to_free_ratio" validate:"required,gte=1"`
	EffectiveFrom          time.Time       `json:"effective_from" validate:"required"`
	ValidUntil             *time.Time      `json:"valid_until,omitempty"`
}

type service struct {
	repo     Repository
	db       sqlx.QueryerContext
	clock    clock.Clock
	cache    Cache
	cacheTTL time.Duration
}

// NewService builds the resolver. cache may be nil.
func NewService(repo Repository, db sqlx.QueryerContext, clk clock.Clock, cache Cache, cacheTTL time.Duration) Service {
	return &service{
		repo:     repo,
		db:       db,
		clock:    clk,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// ActiveRate returns the most recently effective active conversion. There
// is no default rate: callers must fail when this returns an error.
func (s *service) ActiveRate(ctx context.Context) (*Conversion, error) {
	return s.repo.GetActive(ctx, s.db, s.clock.Now())
}

func (s *service) CachedRate(ctx context.Context) (*Conversion, error) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return s.ActiveRate(ctx)
	}
	now := s.clock.Now()

	candidates, ok, err := s.cache.Get(ctx)
	if err != nil {
		logger.Warn("conversion cache read failed", "error", err)
	}
	if err != nil || !ok {
		candidates, err = s.repo.ListCandidates(ctx, s.db, now)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, candidates, s.cacheTTL); err != nil {
			logger.Warn("conversion cache write failed", "error", err)
		}
	}

	conv := pick(candidates, now)
	if conv == nil {
		return nil, ErrNoActiveConversion
	}
	return conv, nil
}

// ResolveForSlot prefers a conversion pinned on the slot's price rows so
// payouts stay stable after the global rate changes.
func (s *service) ResolveForSlot(ctx context.Context, slotID int64) (*Conversion, error) {
	conv, err := s.repo.GetPinnedForSlot(ctx, s.db, slotID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv, err = s.ActiveRate(ctx)
		if err != nil {
			return nil, err
		}
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return conv, nil
}

// Create stores a new active conversion and drops the cached candidates.
func (s *service) Create(ctx context.Context, req CreateRequest) (*Conversion, error) {
	conv := &Conversion{
		CreditsPerCurrencyUnit: req.CreditsPerCurrencyUnit,
		PaidToFreeRatio:        req.PaidToFreeRatio,
		EffectiveFrom:          req.EffectiveFrom,
		ValidUntil:             req.ValidUntil,
		Status:                 StatusActive,
	}
	if conv.Validate() != nil || conv.PaidToFreeRatio < 1 ||
		(conv.ValidUntil != nil && !conv.ValidUntil.After(conv.EffectiveFrom)) {
		return nil, ErrInvalidRate
	}

	if err := s.repo.Insert(ctx, s.db, conv); err != nil {
		return nil, fmt.Errorf("insert conversion: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn("conversion cache invalidate failed", "id", conv.ID, "error", err)
		}
	}
	logger.Info("conversion created", "id", conv.ID, "ratio", conv.PaidToFreeRatio, "effective_from", conv.EffectiveFrom)
	return conv, nil
}
