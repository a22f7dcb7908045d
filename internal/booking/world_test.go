package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"creditslot/internal/conversion"
	"creditslot/internal/event"
	"creditslot/internal/notify"
	"creditslot/internal/wallet"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// world is an in-memory store shared by the slot, booking and wallet fakes.
// Lock* calls take a per-row mutex held until the fake transaction ends and
// every write registers an undo step run on rollback.
type world struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	nextID int64

	slots    map[int64]*event.Slot
	prices   map[int64][]event.Price
	bookings map[int64]*Booking
	items    map[int64][]Item
	wallets  map[int64]*wallet.Wallet
	txs      []wallet.Transaction
	grants   []wallet.Grant
}

func newWorld() *world {
	return &world{
		locks:    map[string]*sync.Mutex{},
		slots:    map[int64]*event.Slot{},
		prices:   map[int64][]event.Price{},
		bookings: map[int64]*Booking{},
		items:    map[int64][]Item{},
		wallets:  map[int64]*wallet.Wallet{},
	}
}

type fakeTx struct {
	sqlx.ExtContext
	held    map[string]bool
	release []func()
	undo    []func()
}

type worldRunner struct {
	w *world
}

func (r worldRunner) WithTx(_ context.Context, fn func(tx sqlx.ExtContext) error) error {
	tx := &fakeTx{held: map[string]bool{}}
	err := fn(tx)
	if err != nil {
		r.w.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		r.w.mu.Unlock()
	}
	for _, unlock := range tx.release {
		unlock()
	}
	return err
}

func (w *world) id() int64 {
	w.nextID++
	return w.nextID
}

func (w *world) lock(q interface{}, key string) {
	tx, ok := q.(*fakeTx)
	if !ok || tx.held[key] {
		return
	}
	w.mu.Lock()
	m, ok := w.locks[key]
	if !ok {
		m = &sync.Mutex{}
		w.locks[key] = m
	}
	w.mu.Unlock()

	m.Lock()
	tx.held[key] = true
	tx.release = append(tx.release, m.Unlock)
}

// onRollback must be called with w.mu held.
func (w *world) onRollback(q interface{}, fn func()) {
	if tx, ok := q.(*fakeTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

func (w *world) addSlot(s event.Slot, prices ...event.Price) *event.Slot {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s.ID == 0 {
		s.ID = w.id()
	}
	w.slots[s.ID] = &s
	for _, p := range prices {
		p.ID = w.id()
		p.SlotID = s.ID
		w.prices[s.ID] = append(w.prices[s.ID], p)
	}
	return &s
}

func (w *world) addWallet(customerID, free, paid int64) *wallet.Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	wl := &wallet.Wallet{ID: w.id(), CustomerID: customerID, FreeCredits: free, PaidCredits: paid}
	w.wallets[wl.ID] = wl
	if free != 0 || paid != 0 {
		txID := w.id()
		w.txs = append(w.txs, wallet.Transaction{ID: txID, WalletID: wl.ID, Type: wallet.TypeBonus, DeltaFree: free, DeltaPaid: paid})
		w.grants = append(w.grants, wallet.Grant{
			ID:            w.id(),
			WalletID:      wl.ID,
			TransactionID: txID,
			Source:        "seed",
			FreeAmount:    free,
			PaidAmount:    paid,
			RemainingFree: free,
			RemainingPaid: paid,
			ExpiresAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	copied := *wl
	return &copied
}

// grantsLeft sums what the wallet's grants still hold.
func (w *world) grantsLeft(walletID int64) (free, paid int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, g := range w.grants {
		if g.WalletID == walletID {
			free += g.RemainingFree
			paid += g.RemainingPaid
		}
	}
	return free, paid
}

func (w *world) wallet(customerID int64) wallet.Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wl := range w.wallets {
		if wl.CustomerID == customerID {
			return *wl
		}
	}
	return wallet.Wallet{}
}

func (w *world) booking(id int64) Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.bookings[id]
}

func (w *world) transactions(bookingID int64) []wallet.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []wallet.Transaction
	for _, t := range w.txs {
		if t.BookingID != nil && *t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	return out
}

// activeSeats counts seats of bookings that still hold capacity.
func (w *world) activeSeats(slotID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.bookings {
		if b.SlotID == slotID && b.Status != StatusCancelled && b.Status != StatusRefunded {
			n += b.Quantity
		}
	}
	return n
}

type slotStore struct{ *world }

func (s slotStore) GetSlot(_ context.Context, _ sqlx.QueryerContext, id int64) (*event.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, event.ErrSlotNotFound
	}
	copied := *slot
	return &copied, nil
}

func (s slotStore) LockSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*event.Slot, error) {
	s.lock(q, fmt.Sprintf("slot:%d", id))
	return s.GetSlot(ctx, q, id)
}

func (s slotStore) GetPrices(_ context.Context, _ sqlx.QueryerContext, slotID int64) ([]event.Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Price(nil), s.prices[slotID]...), nil
}

func (s slotStore) SumActiveQuantity(_ context.Context, _ sqlx.QueryerContext, slotID int64) (int, error) {
	return s.activeSeats(slotID), nil
}

func (s slotStore) ListPayoutCandidates(context.Context, sqlx.QueryerContext) ([]event.Slot, error) {
	return nil, nil
}

type bookingStore struct{ *world }

func (s bookingStore) Create(_ context.Context, q sqlx.QueryerContext, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookings {
		if b.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.CustomerID == b.CustomerID && *existing.IdempotencyKey == *b.IdempotencyKey {
			return errDuplicateKey
		}
	}
	b.ID = s.id()
	b.CreatedAt = time.Now()
	copied := *b
	s.bookings[b.ID] = &copied
	id := b.ID
	s.onRollback(q, func() { delete(s.bookings, id) })
	return nil
}

func (s bookingStore) InsertItem(_ context.Context, q sqlx.QueryerContext, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	s.items[item.BookingID] = append(s.items[item.BookingID], *item)
	bookingID := item.BookingID
	s.onRollback(q, func() { delete(s.items, bookingID) })
	return nil
}

func (s bookingStore) GetByID(_ context.Context, _ sqlx.QueryerContext, id int64) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (s bookingStore) LockByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Booking, error) {
	s.lock(q, fmt.Sprintf("booking:%d", id))
	return s.GetByID(ctx, q, id)
}

func (s bookingStore) GetByIdempotencyKey(_ context.Context, _ sqlx.QueryerContext, customerID int64, key string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.CustomerID == customerID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (s bookingStore) GetItems(_ context.Context, _ sqlx.QueryerContext, bookingID int64) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items[bookingID]...), nil
}

func (s bookingStore) GetItemsForBookings(ctx context.Context, q sqlx.QueryerContext, bookingIDs []int64) ([]Item, error) {
	var out []Item
	for _, id := range bookingIDs {
		items, _ := s.GetItems(ctx, q, id)
		out = append(out, items...)
	}
	return out, nil
}

func (s bookingStore) MarkCancelled(_ context.Context, q sqlx.ExecerContext, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	prev := *b
	b.Status = StatusCancelled
	b.CancelledAt = &at
	s.onRollback(q, func() { *s.bookings[id] = prev })
	return nil
}

func (s bookingStore) ListByCustomer(_ context.Context, _ sqlx.QueryerContext, customerID int64, _, _ int) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.CustomerID == customerID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s bookingStore) ListBySlot(_ context.Context, _ sqlx.QueryerContext, slotID int64, status Status) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.SlotID == slotID && (status == "" || b.Status == status) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type walletStore struct{ *world }

func (s walletStore) GetByCustomer(_ context.Context, _ sqlx.QueryerContext, customerID int64) (*wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wl := range s.wallets {
		if wl.CustomerID == customerID {
			copied := *wl
			return &copied, nil
		}
	}
	return nil, wallet.ErrWalletNotFound
}

func (s walletStore) GetOrCreate(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*wallet.Wallet, error) {
	if wl, err := s.GetByCustomer(ctx, q, customerID); err == nil {
		return wl, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wl := &wallet.Wallet{ID: s.id(), CustomerID: customerID}
	s.wallets[wl.ID] = wl
	id := wl.ID
	s.onRollback(q, func() { delete(s.wallets, id) })
	copied := *wl
	return &copied, nil
}

func (s walletStore) LockByID(_ context.Context, q sqlx.QueryerContext, walletID int64) (*wallet.Wallet, error) {
	s.lock(q, fmt.Sprintf("wallet:%d", walletID))
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.wallets[walletID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	copied := *wl
	return &copied, nil
}

func (s walletStore) LockByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*wallet.Wallet, error) {
	wl, err := s.GetByCustomer(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	return s.LockByID(ctx, q, wl.ID)
}

func (s walletStore) UpdateBalances(_ context.Context, q sqlx.ExecerContext, walletID, free, paid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.wallets[walletID]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	prevFree, prevPaid := wl.FreeCredits, wl.PaidCredits
	wl.FreeCredits, wl.PaidCredits = free, paid
	s.onRollback(q, func() { wl.FreeCredits, wl.PaidCredits = prevFree, prevPaid })
	return nil
}

func (s walletStore) InsertTransaction(_ context.Context, q sqlx.QueryerContext, t *wallet.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = time.Now()
	s.txs = append(s.txs, *t)
	id := t.ID
	s.onRollback(q, func() {
		for i := range s.txs {
			if s.txs[i].ID == id {
				s.txs = append(s.txs[:i], s.txs[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (s walletStore) InsertGrant(_ context.Context, q sqlx.QueryerContext, g *wallet.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	s.grants = append(s.grants, *g)
	id := g.ID
	s.onRollback(q, func() {
		for i := range s.grants {
			if s.grants[i].ID == id {
				s.grants = append(s.grants[:i], s.grants[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (s walletStore) LockGrants(_ context.Context, q sqlx.QueryerContext, walletID int64) ([]wallet.Grant, error) {
	s.lock(q, fmt.Sprintf("grants:%d", walletID))
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wallet.Grant
	for _, g := range s.grants {
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

func (s walletStore) UpdateGrantRemaining(_ context.Context, q sqlx.ExecerContext, grantID, free, paid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.grants {
		if s.grants[i].ID != grantID {
			continue
		}
		g := &s.grants[i]
		prevFree, prevPaid := g.RemainingFree, g.RemainingPaid
		g.RemainingFree, g.RemainingPaid = free, paid
		s.onRollback(q, func() {
			for j := range s.grants {
				if s.grants[j].ID == grantID {
					s.grants[j].RemainingFree, s.grants[j].RemainingPaid = prevFree, prevPaid
				}
			}
		})
	}
	return nil
}

func (s walletStore) GetBookingTransaction(_ context.Context, _ sqlx.QueryerContext, bookingID int64) (*wallet.Transaction, error) {
	return s.transactionFor(bookingID, wallet.TypeBooking), nil
}

func (s walletStore) GetRefundTransaction(_ context.Context, _ sqlx.QueryerContext, bookingID int64) (*wallet.Transaction, error) {
	return s.transactionFor(bookingID, wallet.TypeRefund), nil
}

func (s walletStore) transactionFor(bookingID int64, typ wallet.TransactionType) *wallet.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.Type == typ && t.BookingID != nil && *t.BookingID == bookingID {
			copied := t
			return &copied
		}
	}
	return nil
}

func (s walletStore) ListTransactions(_ context.Context, _ sqlx.QueryerContext, walletID int64, _, _ int) ([]wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wallet.Transaction
	for _, t := range s.txs {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s walletStore) SumDeltas(_ context.Context, _ sqlx.QueryerContext, walletID int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var free, paid int64
	for _, t := range s.txs {
		if t.WalletID == walletID {
			free += t.DeltaFree
			paid += t.DeltaPaid
		}
	}
	return free, paid, nil
}

// fixedRate serves one conversion as both the active rate and every
// slot's pinned rate.
type fixedRate struct {
	conv *conversion.Conversion
	err  error
}

func (r fixedRate) ActiveRate(context.Context) (*conversion.Conversion, error) {
	return r.conv, r.err
}

func (r fixedRate) ResolveForSlot(context.Context, int64) (*conversion.Conversion, error) {
	return r.conv, r.err
}

func rate(ratio int64) fixedRate {
	return fixedRate{conv: &conversion.Conversion{
		ID:                     7,
		CreditsPerCurrencyUnit: decimal.NewFromInt(10),
		PaidToFreeRatio:        ratio,
		Status:                 conversion.StatusActive,
	}}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (n *recordingNotifier) Enqueue(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}
