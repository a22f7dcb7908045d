package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, q sqlx.QueryerContext, b *Booking) error
	InsertItem(ctx context.Context, q sqlx.QueryerContext, item *Item) error
	GetByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Booking, error)
	LockByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Booking, error)
	GetByIdempotencyKey(ctx context.Context, q sqlx.QueryerContext, customerID int64, key string) (*Booking, error)
	GetItems(ctx context.Context, q sqlx.QueryerContext, bookingID int64) ([]Item, error)
	GetItemsForBookings(ctx context.Context, q sqlx.QueryerContext, bookingIDs []int64) ([]Item, error)
	MarkCancelled(ctx context.Context, q sqlx.ExecerContext, id int64, at time.Time) error
	ListByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64, limit, offset int) ([]Booking, error)
	ListBySlot(ctx context.Context, q sqlx.QueryerContext, slotID int64, status Status) ([]Booking, error)
}
