package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const walletColumns = `id, customer_id, free_credits, paid_credits, created_at, updated_at`

func (r *repository) GetByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error) {
	return r.get(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE customer_id = $1`, customerID)
}

// GetOrCreate tolerates a concurrent insert for the same customer.
func (r *repository) GetOrCreate(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error) {
	w, err := r.GetByCustomer(ctx, q, customerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	w = &Wallet{}
	err = sqlx.GetContext(ctx, q, w,
		`INSERT INTO wallets (customer_id)
		 VALUES ($1)
		 ON CONFLICT (customer_id) DO NOTHING
		 RETURNING `+walletColumns,
		customerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetByCustomer(ctx, q, customerID)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repository) LockByID(ctx context.Context, q sqlx.QueryerContext, walletID int64) (*Wallet, error) {
	return r.get(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
}

func (r *repository) LockByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error) {
	return r.get(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE customer_id = $1 FOR UPDATE`, customerID)
}

func (r *repository) get(ctx context.Context, q sqlx.QueryerContext, query string, arg int64) (*Wallet, error) {
	var w Wallet
	if err := sqlx.GetContext(ctx, q, &w, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *repository) UpdateBalances(ctx context.Context, q sqlx.ExecerContext, walletID, free, paid int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE wallets
		 SET free_credits = $1, paid_credits = $2, updated_at = NOW()
		 WHERE id = $3`,
		free, paid, walletID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *repository) InsertTransaction(ctx context.Context, q sqlx.QueryerContext, t *Transaction) error {
	return q.QueryRowxContext(ctx,
		`INSERT INTO credit_transactions
			(wallet_id, type, before_free, before_paid, delta_free, delta_paid, description, booking_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		t.WalletID, t.Type, t.BeforeFree, t.BeforePaid, t.DeltaFree, t.DeltaPaid, t.Description, t.BookingID,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *repository) InsertGrant(ctx context.Context, q sqlx.QueryerContext, g *Grant) error {
	return q.QueryRowxContext(ctx,
		`INSERT INTO credit_grants
			(wallet_id, transaction_id, source, free_amount, paid_amount, remaining_free, remaining_paid, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		g.WalletID, g.TransactionID, g.Source, g.FreeAmount, g.PaidAmount, g.RemainingFree, g.RemainingPaid, g.ExpiresAt,
	).Scan(&g.ID, &g.CreatedAt)
}

const transactionColumns = `id, wallet_id, type, before_free, before_paid, delta_free, delta_paid, description, booking_id, created_at`

const grantColumns = `id, wallet_id, transaction_id, source, free_amount, paid_amount, remaining_free, remaining_paid, expires_at, created_at`

// LockGrants returns the wallet's grants soonest expiry first and locks them.
func (r *repository) LockGrants(ctx context.Context, q sqlx.QueryerContext, walletID int64) ([]Grant, error) {
	var grants []Grant
	err := sqlx.SelectContext(ctx, q, &grants,
		`SELECT `+grantColumns+`
		 FROM credit_grants
		 WHERE wallet_id = $1
		 ORDER BY expires_at, id
		 FOR UPDATE`,
		walletID,
	)
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *repository) UpdateGrantRemaining(ctx context.Context, q sqlx.ExecerContext, grantID, free, paid int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE credit_grants SET remaining_free = $1, remaining_paid = $2 WHERE id = $3`,
		free, paid, grantID,
	)
	return err
}

// GetBookingTransaction returns nil when the booking has no debit entry.
func (r *repository) GetBookingTransaction(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (*Transaction, error) {
	return r.transactionFor(ctx, q, bookingID, TypeBooking)
}

// GetRefundTransaction returns nil when the booking was never refunded.
func (r *repository) GetRefundTransaction(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (*Transaction, error) {
	return r.transactionFor(ctx, q, bookingID, TypeRefund)
}

func (r *repository) transactionFor(ctx context.Context, q sqlx.QueryerContext, bookingID int64, typ TransactionType) (*Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q, &t,
		`SELECT `+transactionColumns+`
		 FROM credit_transactions
		 WHERE booking_id = $1 AND type = $2
		 ORDER BY id
		 LIMIT 1`,
		bookingID, typ,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListTransactions(ctx context.Context, q sqlx.QueryerContext, walletID int64, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var txs []Transaction
	err := sqlx.SelectContext(ctx, q, &txs,
		`SELECT `+transactionColumns+`
		 FROM credit_transactions
		 WHERE wallet_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repository) SumDeltas(ctx context.Context, q sqlx.QueryerContext, walletID int64) (int64, int64, error) {
	var sums struct {
		Free int64 `db:"free"`
		Paid int64 `db:"paid"`
	}
	err := sqlx.GetContext(ctx, q, &sums,
		`SELECT COALESCE(SUM(delta_free), 0) AS free, COALESCE(SUM(delta_paid), 0) AS paid
		 FROM credit_transactions
		 WHERE wallet_id = $1`,
		walletID,
	)
	if err != nil {
		return 0, 0, err
	}
	return sums.Free, sums.Paid, nil
}
