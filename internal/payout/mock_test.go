package payout

import (
	"context"
	"sort"
	"sync"
	"time"

	"creditslot/internal/booking"
	"creditslot/internal/conversion"
	"creditslot/internal/event"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

// MockSlots implements the slot reads the payout service uses. Other
// methods panic through the nil embedded interface.
type MockSlots struct {
	event.Repository
	mock.Mock
}

func (m *MockSlots) GetSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*event.Slot, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Slot), args.Error(1)
}

func (m *MockSlots) ListPayoutCandidates(ctx context.Context, q sqlx.QueryerContext) ([]event.Slot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.Slot), args.Error(1)
}

type MockBookings struct {
	booking.Repository
	mock.Mock
}

func (m *MockBookings) ListBySlot(ctx context.Context, q sqlx.QueryerContext, slotID int64, status booking.Status) ([]booking.Booking, error) {
	args := m.Called(slotID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Booking), args.Error(1)
}

func (m *MockBookings) GetItemsForBookings(ctx context.Context, q sqlx.QueryerContext, bookingIDs []int64) ([]booking.Item, error) {
	args := m.Called(bookingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Item), args.Error(1)
}

type stubResolver struct {
	conv *conversion.Conversion
	errs map[int64]error
}

func (r stubResolver) ResolveForSlot(_ context.Context, slotID int64) (*conversion.Conversion, error) {
	if err := r.errs[slotID]; err != nil {
		return nil, err
	}
	return r.conv, nil
}

// memRepository keeps payouts in memory with the unique-per-slot rule.
type memRepository struct {
	mu      sync.Mutex
	payouts map[int64]*Payout
	nextID  int64
}

func newMemRepository() *memRepository {
	return &memRepository{payouts: map[int64]*Payout{}}
}

func (m *memRepository) Insert(_ context.Context, _ sqlx.QueryerContext, p *Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payouts {
		if existing.SlotID == p.SlotID {
			return ErrPayoutExists
		}
	}
	m.nextID++
	p.ID = m.nextID
	copied := *p
	m.payouts[p.ID] = &copied
	return nil
}

func (m *memRepository) GetByID(_ context.Context, _ sqlx.QueryerContext, id int64) (*Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, ErrPayoutNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memRepository) GetBySlot(_ context.Context, _ sqlx.QueryerContext, slotID int64) (*Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payouts {
		if p.SlotID == slotID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrPayoutNotFound
}

func (m *memRepository) LockByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Payout, error) {
	return m.GetByID(ctx, q, id)
}

func (m *memRepository) ReleaseDue(_ context.Context, _ sqlx.QueryerContext, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, p := range m.payouts {
		if p.Status == StatusLocked && !p.AvailableAt.After(now) {
			p.Status = StatusPending
			ids = append(ids, p.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memRepository) MarkPaid(_ context.Context, _ sqlx.ExecerContext, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != StatusPending {
		return ErrInvalidPayoutTransition
	}
	p.Status = StatusPaid
	p.PaidAt = &at
	return nil
}

func (m *memRepository) List(_ context.Context, _ sqlx.QueryerContext, f Filter) ([]Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payout
	for _, p := range m.payouts {
		if (f.MerchantID == 0 || p.MerchantID == f.MerchantID) && (f.Status == "" || p.Status == f.Status) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type directRunner struct{}

func (directRunner) WithTx(_ context.Context, fn func(tx sqlx.ExtContext) error) error {
	return fn(nil)
}
