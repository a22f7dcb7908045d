package conversion

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetActive(ctx context.Context, q sqlx.QueryerContext, now time.Time) (*Conversion, error)
	ListCandidates(ctx context.Context, q sqlx.QueryerContext, now time.Time) ([]Conversion, error)
	GetPinnedForSlot(ctx context.Context, q sqlx.QueryerContext, slotID int64) (*Conversion, error)
	Insert(ctx context.Context, q sqlx.QueryerContext, c *Conversion) error
}
