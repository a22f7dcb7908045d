package event

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*Slot, error)
	LockSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*Slot, error)
	GetPrices(ctx context.Context, q sqlx.QueryerContext, slotID int64) ([]Price, error)
	SumActiveQuantity(ctx context.Context, q sqlx.QueryerContext, slotID int64) (int, error)
	ListPayoutCandidates(ctx context.Context, q sqlx.QueryerContext) ([]Slot, error)
}
