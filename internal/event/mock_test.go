package event

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*Slot, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Slot), args.Error(1)
}

func (m *MockRepository) LockSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*Slot, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Slot), args.Error(1)
}

func (m *MockRepository) GetPrices(ctx context.Context, q sqlx.QueryerContext, slotID int64) ([]Price, error) {
	args := m.Called(ctx, q, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Price), args.Error(1)
}

func (m *MockRepository) SumActiveQuantity(ctx context.Context, q sqlx.QueryerContext, slotID int64) (int, error) {
	args := m.Called(ctx, q, slotID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListPayoutCandidates(ctx context.Context, q sqlx.QueryerContext) ([]Slot, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Slot), args.Error(1)
}
