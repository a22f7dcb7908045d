package payout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const payoutColumns = `id, slot_id, merchant_id, conversion_id, total_paid_credits, total_free_credits,
	gross_amount, platform_fee, net_amount, total_bookings, booking_ids, merchant_breakdown,
	admin_breakdown, calculated_at, available_at, status, paid_at`

// Insert fails with ErrPayoutExists when the slot already has a payout.
func (r *repository) Insert(ctx context.Context, q sqlx.QueryerContext, p *Payout) error {
	query := `
		INSERT INTO merchant_slot_payouts (
			slot_id, merchant_id, conversion_id, total_paid_credits, total_free_credits,
			gross_amount, platform_fee, net_amount, total_bookings, booking_ids,
			merchant_breakdown, admin_breakdown, calculated_at, available_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (slot_id) DO NOTHING
		RETURNING id
	`

	err := q.QueryRowxContext(ctx, query,
		p.SlotID, p.MerchantID, p.ConversionID, p.TotalPaidCredits, p.TotalFreeCredits,
		p.GrossAmount, p.PlatformFee, p.NetAmount, p.TotalBookings, p.BookingIDs,
		p.MerchantBreakdown, p.AdminBreakdown, p.CalculatedAt, p.AvailableAt, p.Status,
	).Scan(&p.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPayoutExists
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Payout, error) {
	return r.get(ctx, q, `SELECT `+payoutColumns+` FROM merchant_slot_payouts WHERE id = $1`, id)
}

func (r *repository) GetBySlot(ctx context.Context, q sqlx.QueryerContext, slotID int64) (*Payout, error) {
	return r.get(ctx, q, `SELECT `+payoutColumns+` FROM merchant_slot_payouts WHERE slot_id = $1`, slotID)
}

func (r *repository) LockByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*Payout, error) {
	return r.get(ctx, q, `SELECT `+payoutColumns+` FROM merchant_slot_payouts WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, q sqlx.QueryerContext, query string, arg int64) (*Payout, error) {
	var p Payout
	if err := sqlx.GetContext(ctx, q, &p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ReleaseDue moves every locked payout whose release time has passed to
// pending and returns their ids.
func (r *repository) ReleaseDue(ctx context.Context, q sqlx.QueryerContext, now time.Time) ([]int64, error) {
	query := `
		UPDATE merchant_slot_payouts
		SET status = 'pending'
		WHERE status = 'locked' AND available_at <= $1
		RETURNING id
	`

	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, query, now); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MarkPaid(ctx context.Context, q sqlx.ExecerContext, id int64, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE merchant_slot_payouts SET status = 'paid', paid_at = $1 WHERE id = $2 AND status = 'pending'`,
		at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidPayoutTransition
	}
	return nil
}

func (r *repository) List(ctx context.Context, q sqlx.QueryerContext, f Filter) ([]Payout, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := `
		SELECT ` + payoutColumns + `
		FROM merchant_slot_payouts
		WHERE ($1 = 0 OR merchant_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY available_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	var payouts []Payout
	if err := sqlx.SelectContext(ctx, q, &payouts, query, f.MerchantID, string(f.Status), f.Limit, f.Offset); err != nil {
		return nil, err
	}
	return payouts, nil
}
