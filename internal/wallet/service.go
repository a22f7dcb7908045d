package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditslot/internal/clock"
	"creditslot/internal/conversion"
	"creditslot/internal/db"
	"creditslot/internal/logger"
	"creditslot/internal/metrics"

	"github.com/jmoiron/sqlx"
)

// RateSource supplies the active conversion used to price free-credit
// shortfalls in paid credits.
type RateSource interface {
	ActiveRate(ctx context.Context) (*conversion.Conversion, error)
}

// Ledger is the only writer of wallet balances. Debit and Refund run inside
// the caller's transaction; Grant opens its own.
type Ledger interface {
	PaidToFreeRatio(ctx context.Context) (int64, error)
	WalletForUpdate(ctx context.Context, tx sqlx.ExtContext, customerID int64) (*Wallet, error)
	CanBookWithCredits(w *Wallet, totalFree, totalPaid, ratio int64, allowFallback bool) error
	Debit(ctx context.Context, tx sqlx.ExtContext, req DebitRequest) (*DebitResult, error)
	Refund(ctx context.Context, tx sqlx.ExtContext, original *Transaction, walletID int64) (*Transaction, error)
	BookingTransaction(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*Transaction, error)
	RefundTransaction(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*Transaction, error)
	Grant(ctx context.Context, req GrantRequest) (*Grant, error)
	Balance(ctx context.Context, customerID int64) (*Wallet, error)
	History(ctx context.Context, customerID int64, limit, offset int) ([]Transaction, error)
	Audit(ctx context.Context, walletID int64) (*AuditReport, error)
}

type ledger struct {
	repo   Repository
	db     sqlx.ExtContext
	runner db.Runner
	rates  RateSource
	clock  clock.Clock
}

func NewLedger(repo Repository, dbx sqlx.ExtContext, runner db.Runner, rates RateSource, clk clock.Clock) Ledger {
	return &ledger{
		repo:   repo,
		db:     dbx,
		runner: runner,
		rates:  rates,
		clock:  clk,
	}
}

// PaidToFreeRatio fails when no conversion is active; there is no default.
func (l *ledger) PaidToFreeRatio(ctx context.Context) (int64, error) {
	conv, err := l.rates.ActiveRate(ctx)
	if err != nil {
		return 0, err
	}
	return conv.Ratio(), nil
}

// WalletForUpdate returns the customer's wallet, creating an empty one on
// first use, and locks its row.
func (l *ledger) WalletForUpdate(ctx context.Context, tx sqlx.ExtContext, customerID int64) (*Wallet, error) {
	if _, err := l.repo.GetOrCreate(ctx, tx, customerID); err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return l.repo.LockByCustomer(ctx, tx, customerID)
}

// CanBookWithCredits succeeds when free credits alone cover the free part
// and the paid balance covers the paid part. Otherwise the free shortfall
// must be covered by paid credits at ratio, which requires allowFallback.
func (l *ledger) CanBookWithCredits(w *Wallet, totalFree, totalPaid, ratio int64, allowFallback bool) error {
	if ratio < 1 {
		ratio = 1
	}
	if w.FreeCredits >= totalFree && w.PaidCredits >= totalPaid {
		return nil
	}

	shortfall := totalFree - w.FreeCredits
	if shortfall < 0 {
		shortfall = 0
	}
	required := totalPaid + shortfall*ratio

	if !allowFallback || w.PaidCredits < required {
		return &InsufficientCreditsError{
			ShortfallFree:   shortfall,
			PaidToFreeRatio: ratio,
			RequiredPaid:    required,
			AvailablePaid:   w.PaidCredits,
		}
	}
	return nil
}

func (l *ledger) Debit(ctx context.Context, tx sqlx.ExtContext, req DebitRequest) (*DebitResult, error) {
	if req.Quantity < 1 || req.FreePerUnit < 0 || req.PaidPerUnit < 0 {
		return nil, ErrInvalidAmount
	}

	ratio := req.PaidToFreeRatio
	if ratio <= 0 {
		var err error
		if ratio, err = l.PaidToFreeRatio(ctx); err != nil {
			return nil, err
		}
	}

	w, err := l.repo.LockByID(ctx, tx, req.WalletID)
	if err != nil {
		return nil, err
	}

	totalFreeNeeded := req.FreePerUnit * req.Quantity
	deductFree := min(totalFreeNeeded, w.FreeCredits)
	shortfall := totalFreeNeeded - deductFree
	totalPaid := req.PaidPerUnit*req.Quantity + shortfall*ratio

	clamped := false
	if totalPaid > w.PaidCredits {
		if !req.AllowFallback {
			return nil, &InsufficientCreditsError{
				ShortfallFree:   shortfall,
				PaidToFreeRatio: ratio,
				RequiredPaid:    totalPaid,
				AvailablePaid:   w.PaidCredits,
			}
		}
		totalPaid = w.PaidCredits
		clamped = true
	}

	entry := &Transaction{
		WalletID:    w.ID,
		Type:        TypeBooking,
		BeforeFree:  w.FreeCredits,
		BeforePaid:  w.PaidCredits,
		DeltaFree:   -deductFree,
		DeltaPaid:   -totalPaid,
		Description: req.Description,
	}
	if req.BookingID > 0 {
		entry.BookingID = &req.BookingID
	}
	if err := l.apply(ctx, tx, w, entry); err != nil {
		return nil, err
	}

	if clamped {
		logger.Warn("debit clamped to available paid credits",
			"wallet_id", w.ID, "booking_id", req.BookingID, "paid", totalPaid, "shortfall_free", shortfall)
	}

	return &DebitResult{
		TransactionID:   entry.ID,
		DeductedFree:    deductFree,
		DeductedPaid:    totalPaid,
		ShortfallFree:   shortfall,
		PaidToFreeRatio: ratio,
		Clamped:         clamped,
	}, nil
}

// Refund mirrors the recorded deltas of original, never a recomputation.
func (l *ledger) Refund(ctx context.Context, tx sqlx.ExtContext, original *Transaction, walletID int64) (*Transaction, error) {
	w, err := l.repo.LockByID(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}

	entry := &Transaction{
		WalletID:    w.ID,
		Type:        TypeRefund,
		BeforeFree:  w.FreeCredits,
		BeforePaid:  w.PaidCredits,
		DeltaFree:   abs(original.DeltaFree),
		DeltaPaid:   abs(original.DeltaPaid),
		Description: fmt.Sprintf("Refund of transaction #%d", original.ID),
		BookingID:   original.BookingID,
	}
	if original.BookingID != nil {
		entry.Description = fmt.Sprintf("Refund for booking #%d", *original.BookingID)
	}
	if err := l.apply(ctx, tx, w, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *ledger) BookingTransaction(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*Transaction, error) {
	return l.repo.GetBookingTransaction(ctx, tx, bookingID)
}

func (l *ledger) RefundTransaction(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*Transaction, error) {
	return l.repo.GetRefundTransaction(ctx, tx, bookingID)
}

func (l *ledger) Grant(ctx context.Context, req GrantRequest) (*Grant, error) {
	if (req.Type != TypeBonus && req.Type != TypePurchase) ||
		req.FreeAmount < 0 || req.PaidAmount < 0 ||
		req.FreeAmount+req.PaidAmount == 0 || req.ValidityDays <= 0 {
		return nil, ErrInvalidGrant
	}

	now := l.clock.Now()
	var grant *Grant
	err := l.runner.WithTx(ctx, func(tx sqlx.ExtContext) error {
		w, err := l.WalletForUpdate(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		entry := &Transaction{
			WalletID:    w.ID,
			Type:        req.Type,
			BeforeFree:  w.FreeCredits,
			BeforePaid:  w.PaidCredits,
			DeltaFree:   req.FreeAmount,
			DeltaPaid:   req.PaidAmount,
			Description: fmt.Sprintf("%s credits: %s", req.Type, req.Source),
		}
		if err := l.apply(ctx, tx, w, entry); err != nil {
			return err
		}

		grant = &Grant{
			WalletID:      w.ID,
			TransactionID: entry.ID,
			Source:        req.Source,
			FreeAmount:    req.FreeAmount,
			PaidAmount:    req.PaidAmount,
			RemainingFree: req.FreeAmount,
			RemainingPaid: req.PaidAmount,
			ExpiresAt:     now.Add(time.Duration(req.ValidityDays) * 24 * time.Hour),
		}
		if err := l.repo.InsertGrant(ctx, tx, grant); err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("credits granted",
		"customer_id", req.CustomerID, "type", req.Type, "free", req.FreeAmount, "paid", req.PaidAmount)
	return grant, nil
}

func (l *ledger) Balance(ctx context.Context, customerID int64) (*Wallet, error) {
	return l.repo.GetOrCreate(ctx, l.db, customerID)
}

func (l *ledger) History(ctx context.Context, customerID int64, limit, offset int) ([]Transaction, error) {
	w, err := l.repo.GetByCustomer(ctx, l.db, customerID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return []Transaction{}, nil
		}
		return nil, err
	}
	return l.repo.ListTransactions(ctx, l.db, w.ID, limit, offset)
}

// Audit recomputes balances from history under the wallet lock and
// reports any drift from the cached values.
func (l *ledger) Audit(ctx context.Context, walletID int64) (*AuditReport, error) {
	var report *AuditReport
	err := l.runner.WithTx(ctx, func(tx sqlx.ExtContext) error {
		w, err := l.repo.LockByID(ctx, tx, walletID)
		if err != nil {
			return err
		}
		free, paid, err := l.repo.SumDeltas(ctx, tx, walletID)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}
		report = &AuditReport{
			WalletID:   walletID,
			CachedFree: w.FreeCredits,
			CachedPaid: w.PaidCredits,
			LedgerFree: free,
			LedgerPaid: paid,
			DriftFree:  w.FreeCredits - free,
			DriftPaid:  w.PaidCredits - paid,
		}
		report.Consistent = report.DriftFree == 0 && report.DriftPaid == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		logger.Error("wallet ledger drift detected",
			"wallet_id", walletID, "drift_free", report.DriftFree, "drift_paid", report.DriftPaid)
	}
	return report, nil
}

// apply appends entry and moves the cached balances of the locked wallet w
// by its deltas in the same transaction.
func (l *ledger) apply(ctx context.Context, tx sqlx.ExtContext, w *Wallet, entry *Transaction) error {
	free := w.FreeCredits + entry.DeltaFree
	paid := w.PaidCredits + entry.DeltaPaid
	if free < 0 || paid < 0 {
		return ErrInsufficientCredits
	}

	if err := l.repo.UpdateBalances(ctx, tx, w.ID, free, paid); err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if err := l.repo.InsertTransaction(ctx, tx, entry); err != nil {
		return fmt.Errorf("append credit transaction: %w", err)
	}
	if err := l.settleGrants(ctx, tx, w.ID, entry); err != nil {
		return fmt.Errorf("settle grants: %w", err)
	}

	w.FreeCredits, w.PaidCredits = free, paid
	metrics.RecordLedgerEntry(string(entry.Type), entry.DeltaFree, entry.DeltaPaid)
	return nil
}

// settleGrants keeps the remaining amounts on the wallet's grants in step
// with a debit or refund. Grant entries are recorded by Grant itself.
func (l *ledger) settleGrants(ctx context.Context, tx sqlx.ExtContext, walletID int64, entry *Transaction) error {
	if entry.Type != TypeBooking && entry.Type != TypeRefund {
		return nil
	}
	if entry.DeltaFree == 0 && entry.DeltaPaid == 0 {
		return nil
	}

	grants, err := l.repo.LockGrants(ctx, tx, walletID)
	if err != nil {
		return err
	}

	var changed []Grant
	if entry.Type == TypeBooking {
		changed = drawGrants(grants, -entry.DeltaFree, -entry.DeltaPaid)
	} else {
		changed = restoreGrants(grants, entry.DeltaFree, entry.DeltaPaid)
	}
	for _, g := range changed {
		if err := l.repo.UpdateGrantRemaining(ctx, tx, g.ID, g.RemainingFree, g.RemainingPaid); err != nil {
			return err
		}
	}
	return nil
}

// drawGrants takes free and paid from grants in the order given, soonest
// expiry first, and returns the grants it changed. Amounts the grants do not
// cover are left alone.
func drawGrants(grants []Grant, free, paid int64) []Grant {
	var changed []Grant
	for _, g := range grants {
		takeFree := min(free, g.RemainingFree)
		takePaid := min(paid, g.RemainingPaid)
		if takeFree == 0 && takePaid == 0 {
			continue
		}
		g.RemainingFree -= takeFree
		g.RemainingPaid -= takePaid
		free -= takeFree
		paid -= takePaid
		changed = append(changed, g)
		if free == 0 && paid == 0 {
			break
		}
	}
	return changed
}

// restoreGrants walks grants latest expiry first, undoing the most recent
// draws, and never lifts a grant above its original amount.
func restoreGrants(grants []Grant, free, paid int64) []Grant {
	var changed []Grant
	for i := len(grants) - 1; i >= 0; i-- {
		g := grants[i]
		putFree := min(free, g.FreeAmount-g.RemainingFree)
		putPaid := min(paid, g.PaidAmount-g.RemainingPaid)
		if putFree <= 0 && putPaid <= 0 {
			continue
		}
		putFree, putPaid = max(putFree, 0), max(putPaid, 0)
		g.RemainingFree += putFree
		g.RemainingPaid += putPaid
		free -= putFree
		paid -= putPaid
		changed = append(changed, g)
		if free == 0 && paid == 0 {
			break
		}
	}
	return changed
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
