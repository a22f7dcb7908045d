package wallet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"creditslot/internal/conversion"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// memRepository is an in-memory Repository for ledger behaviour tests.
// Row locks are not modelled; tests drive one operation at a time.
type memRepository struct {
	mu      sync.Mutex
	wallets map[int64]*Wallet
	txs     []Transaction
	grants  []Grant
	nextID  int64

	failInsert error
}

func newMemRepository() *memRepository {
	return &memRepository{wallets: map[int64]*Wallet{}}
}

func (m *memRepository) seed(customerID, free, paid int64) *Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	w := &Wallet{ID: m.nextID, CustomerID: customerID, FreeCredits: free, PaidCredits: paid}
	m.wallets[w.ID] = w
	if free != 0 || paid != 0 {
		m.nextID++
		m.txs = append(m.txs, Transaction{ID: m.nextID, WalletID: w.ID, Type: TypeBonus, DeltaFree: free, DeltaPaid: paid})
	}
	copied := *w
	return &copied
}

func (m *memRepository) byCustomer(customerID int64) *Wallet {
	for _, w := range m.wallets {
		if w.CustomerID == customerID {
			return w
		}
	}
	return nil
}

func (m *memRepository) GetByCustomer(_ context.Context, _ sqlx.QueryerContext, customerID int64) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.byCustomer(customerID); w != nil {
		copied := *w
		return &copied, nil
	}
	return nil, ErrWalletNotFound
}

func (m *memRepository) GetOrCreate(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error) {
	if w, err := m.GetByCustomer(ctx, q, customerID); err == nil {
		return w, nil
	}
	return m.seed(customerID, 0, 0), nil
}

func (m *memRepository) LockByID(_ context.Context, _ sqlx.QueryerContext, walletID int64) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	copied := *w
	return &copied, nil
}

func (m *memRepository) LockByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error) {
	return m.GetByCustomer(ctx, q, customerID)
}

func (m *memRepository) UpdateBalances(_ context.Context, _ sqlx.ExecerContext, walletID, free, paid int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return ErrWalletNotFound
	}
	w.FreeCredits, w.PaidCredits = free, paid
	return nil
}

func (m *memRepository) InsertTransaction(_ context.Context, _ sqlx.QueryerContext, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	m.txs = append(m.txs, *t)
	return nil
}

func (m *memRepository) InsertGrant(_ context.Context, _ sqlx.QueryerContext, g *Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	g.ID = m.nextID
	m.grants = append(m.grants, *g)
	return nil
}

func (m *memRepository) LockGrants(_ context.Context, _ sqlx.QueryerContext, walletID int64) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Grant
	for _, g := range m.grants {
		if g.WalletID == walletID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memRepository) UpdateGrantRemaining(_ context.Context, _ sqlx.ExecerContext, grantID, free, paid int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.grants {
		if m.grants[i].ID == grantID {
			m.grants[i].RemainingFree, m.grants[i].RemainingPaid = free, paid
		}
	}
	return nil
}

// remaining sums what the wallet's grants have left.
func (m *memRepository) remaining(walletID int64) (free, paid int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.WalletID == walletID {
			free += g.RemainingFree
			paid += g.RemainingPaid
		}
	}
	return free, paid
}

func (m *memRepository) GetBookingTransaction(_ context.Context, _ sqlx.QueryerContext, bookingID int64) (*Transaction, error) {
	return m.transactionFor(bookingID, TypeBooking), nil
}

func (m *memRepository) GetRefundTransaction(_ context.Context, _ sqlx.QueryerContext, bookingID int64) (*Transaction, error) {
	return m.transactionFor(bookingID, TypeRefund), nil
}

func (m *memRepository) transactionFor(bookingID int64, typ TransactionType) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.Type == typ && t.BookingID != nil && *t.BookingID == bookingID {
			copied := t
			return &copied
		}
	}
	return nil
}

func (m *memRepository) ListTransactions(_ context.Context, _ sqlx.QueryerContext, walletID int64, limit, offset int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].WalletID == walletID {
			out = append(out, m.txs[i])
		}
	}
	if offset >= len(out) {
		return []Transaction{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepository) SumDeltas(_ context.Context, _ sqlx.QueryerContext, walletID int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var free, paid int64
	for _, t := range m.txs {
		if t.WalletID == walletID {
			free += t.DeltaFree
			paid += t.DeltaPaid
		}
	}
	return free, paid, nil
}

// snapshotRunner restores the store when fn fails, standing in for a
// transaction rollback.
type snapshotRunner struct {
	repo *memRepository
}

func (r snapshotRunner) WithTx(_ context.Context, fn func(tx sqlx.ExtContext) error) error {
	r.repo.mu.Lock()
	wallets := make(map[int64]Wallet, len(r.repo.wallets))
	for id, w := range r.repo.wallets {
		wallets[id] = *w
	}
	txs := append([]Transaction(nil), r.repo.txs...)
	grants := append([]Grant(nil), r.repo.grants...)
	r.repo.mu.Unlock()

	err := fn(nil)
	if err != nil {
		r.repo.mu.Lock()
		r.repo.wallets = map[int64]*Wallet{}
		for id, w := range wallets {
			w := w
			r.repo.wallets[id] = &w
		}
		r.repo.txs = txs
		r.repo.grants = grants
		r.repo.mu.Unlock()
	}
	return err
}

type stubRates struct {
	ratio int64
	err   error
}

func (s stubRates) ActiveRate(context.Context) (*conversion.Conversion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &conversion.Conversion{
		ID:                     1,
		CreditsPerCurrencyUnit: decimal.NewFromInt(10),
		PaidToFreeRatio:        s.ratio,
		Status:                 conversion.StatusActive,
	}, nil
}

var errBoom = errors.New("boom")
