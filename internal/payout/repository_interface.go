package payout

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Insert(ctx context.Context, q sqlx.QueryerContext, p *Payout) error
	GetByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Payout, error)
	GetBySlot(ctx context.Context, q sqlx.QueryerContext, slotID int64) (*Payout, error)
	LockByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Payout, error)
	ReleaseDue(ctx context.Context, q sqlx.QueryerContext, now time.Time) ([]int64, error)
	MarkPaid(ctx context.Context, q sqlx.ExecerContext, id int64, at time.Time) error
	List(ctx context.Context, q sqlx.QueryerContext, f Filter) ([]Payout, error)
}
