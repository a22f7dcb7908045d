package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repository methods take the query handle explicitly so they can run
// inside the caller's transaction. Lock* methods hold a row lock until that
// transaction ends.
type Repository interface {
	GetByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error)
	GetOrCreate(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error)
	LockByID(ctx context.Context, q sqlx.QueryerContext, walletID int64) (*Wallet, error)
	LockByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64) (*Wallet, error)
	UpdateBalances(ctx context.Context, q sqlx.ExecerContext, walletID, free, paid int64) error
	InsertTransaction(ctx context.Context, q sqlx.QueryerContext, t *Transaction) error
	InsertGrant(ctx context.Context, q sqlx.QueryerContext, g *Grant) error
	LockGrants(ctx context.Context, q sqlx.QueryerContext, walletID int64) ([]Grant, error)
	UpdateGrantRemaining(ctx context.Context, q sqlx.ExecerContext, grantID, free, paid int64) error
	GetBookingTransaction(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (*Transaction, error)
	GetRefundTransaction(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (*Transaction, error)
	ListTransactions(ctx context.Context, q sqlx.QueryerContext, walletID int64, limit, offset int) ([]Transaction, error)
	SumDeltas(ctx context.Context, q sqlx.QueryerContext, walletID int64) (free, paid int64, err error)
}
