package event

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Service interface {
	GetSlot(ctx context.Context, id int64) (*Slot, error)
	GetPrices(ctx context.Context, slotID int64) ([]Price, error)
	Availability(ctx context.Context, slotID int64) (*Availability, error)
}

type service struct {
	repo  Repository
	db    sqlx.QueryerContext
	guard *CapacityGuard
}

func NewService(repo Repository, db sqlx.QueryerContext) Service {
	return &service{
		repo:  repo,
		db:    db,
		guard: NewCapacityGuard(repo),
	}
}

func (s *service) GetSlot(ctx context.Context, id int64) (*Slot, error) {
	return s.repo.GetSlot(ctx, s.db, id)
}

func (s *service) GetPrices(ctx context.Context, slotID int64) ([]Price, error) {
	if _, err := s.repo.GetSlot(ctx, s.db, slotID); err != nil {
		return nil, err
	}
	return s.repo.GetPrices(ctx, s.db, slotID)
}

// Availability is an unlocked snapshot; it may be stale by the time a
// reservation runs.
func (s *service) Availability(ctx context.Context, slotID int64) (*Availability, error) {
	slot, err := s.repo.GetSlot(ctx, s.db, slotID)
	if err != nil {
		return nil, err
	}
	return s.guard.Availability(ctx, s.db, slot)
}
