package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"creditslot/internal/db"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const idempotencyConstraint = "bookings_customer_idempotency_key"

// errDuplicateKey marks an insert that lost the race on the idempotency key.
var errDuplicateKey = errors.New("duplicate idempotency key")

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const bookingColumns = `id, reference, customer_id, wallet_id, slot_id, conversion_id, status, quantity, idempotency_key, created_at, cancelled_at`

func (r *repository) Create(ctx context.Context, q sqlx.QueryerContext, b *Booking) error {
	err := q.QueryRowxContext(ctx,
		`INSERT INTO bookings (reference, customer_id, wallet_id, slot_id, conversion_id, status, quantity, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		b.Reference, b.CustomerID, b.WalletID, b.SlotID, b.ConversionID, b.Status, b.Quantity, b.IdempotencyKey,
	).Scan(&b.ID, &b.CreatedAt)
	if db.IsUniqueViolation(err, idempotencyConstraint) {
		return errDuplicateKey
	}
	return err
}

func (r *repository) InsertItem(ctx context.Context, q sqlx.QueryerContext, item *Item) error {
	return q.QueryRowxContext(ctx,
		`INSERT INTO booking_items (booking_id, age_group, quantity, paid_credits, free_credits)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		item.BookingID, item.AgeGroup, item.Quantity, item.PaidCredits, item.FreeCredits,
	).Scan(&item.ID)
}

func (r *repository) GetByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Booking, error) {
	return r.get(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *repository) LockByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Booking, error) {
	return r.get(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

// GetByIdempotencyKey returns nil when no booking used the key.
func (r *repository) GetByIdempotencyKey(ctx context.Context, q sqlx.QueryerContext, customerID int64, key string) (*Booking, error) {
	b, err := r.get(ctx, q,
		`SELECT `+bookingColumns+` FROM bookings WHERE customer_id = $1 AND idempotency_key = $2`,
		customerID, key)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, nil
	}
	return b, err
}

func (r *repository) get(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Booking, error) {
	var b Booking
	if err := sqlx.GetContext(ctx, q, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

const itemColumns = `id, booking_id, age_group, quantity, paid_credits, free_credits`

func (r *repository) GetItems(ctx context.Context, q sqlx.QueryerContext, bookingID int64) ([]Item, error) {
	var items []Item
	err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+itemColumns+` FROM booking_items WHERE booking_id = $1 ORDER BY id`,
		bookingID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetItemsForBookings(ctx context.Context, q sqlx.QueryerContext, bookingIDs []int64) ([]Item, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	var items []Item
	err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+itemColumns+` FROM booking_items WHERE booking_id = ANY($1) ORDER BY booking_id, id`,
		pq.Array(bookingIDs))
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) MarkCancelled(ctx context.Context, q sqlx.ExecerContext, id int64, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', cancelled_at = $1 WHERE id = $2`,
		at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *repository) ListByCustomer(ctx context.Context, q sqlx.QueryerContext, customerID int64, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	var bookings []Booking
	err := sqlx.SelectContext(ctx, q, &bookings,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE customer_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListBySlot returns every booking on the slot when status is empty.
func (r *repository) ListBySlot(ctx context.Context, q sqlx.QueryerContext, slotID int64, status Status) ([]Booking, error) {
	var bookings []Booking
	err := sqlx.SelectContext(ctx, q, &bookings,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE slot_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY id`,
		slotID, string(status))
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
