package event

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

const slotProjection = `
		SELECT
			s.id,
			s.event_id,
			e.merchant_id,
			e.name AS event_name,
			s.date,
			s.start_time,
			s.end_time,
			s.capacity,
			s.is_unlimited,
			fd.date AS event_first_date,
			fd.start_time AS event_first_start,
			fd.end_time AS event_first_end
		FROM event_slots s
		JOIN events e ON e.id = s.event_id
		LEFT JOIN LATERAL (
			SELECT d.date, d.start_time, d.end_time
			FROM event_dates d
			WHERE d.event_id = s.event_id
			ORDER BY d.date, d.start_time
			LIMIT 1
		) fd ON TRUE`

func (r *repository) GetSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*Slot, error) {
	return r.getSlot(ctx, q, slotProjection+`
		WHERE s.id = $1`, id)
}

// LockSlot reads the slot and holds its row lock until the surrounding
// transaction ends, serializing reservations against the same slot.
func (r *repository) LockSlot(ctx context.Context, q sqlx.QueryerContext, id int64) (*Slot, error) {
	return r.getSlot(ctx, q, slotProjection+`
		WHERE s.id = $1
		FOR UPDATE OF s`, id)
}

func (r *repository) getSlot(ctx context.Context, q sqlx.QueryerContext, query string, id int64) (*Slot, error) {
	var slot Slot
	if err := sqlx.GetContext(ctx, q, &slot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &slot, nil
}

func (r *repository) GetPrices(ctx context.Context, q sqlx.QueryerContext, slotID int64) ([]Price, error) {
	query := `
		SELECT id, slot_id, age_group, free_credits, paid_credits, conversion_id
		FROM slot_prices
		WHERE slot_id = $1
		ORDER BY id
	`

	var prices []Price
	if err := sqlx.SelectContext(ctx, q, &prices, query, slotID); err != nil {
		return nil, err
	}
	return prices, nil
}

func (r *repository) SumActiveQuantity(ctx context.Context, q sqlx.QueryerContext, slotID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM bookings
		WHERE slot_id = $1 AND status NOT IN ('cancelled', 'refunded')
	`

	var total int
	if err := sqlx.GetContext(ctx, q, &total, query, slotID); err != nil {
		return 0, err
	}
	return total, nil
}

// ListPayoutCandidates returns slots with at least one confirmed booking
// and no payout yet. Whether a slot has ended is decided by the caller.
func (r *repository) ListPayoutCandidates(ctx context.Context, q sqlx.QueryerContext) ([]Slot, error) {
	query := slotProjection + `
		WHERE EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.slot_id = s.id AND b.status = 'confirmed'
		)
		AND NOT EXISTS (
			SELECT 1 FROM merchant_slot_payouts p
			WHERE p.slot_id = s.id
		)
		ORDER BY s.id`

	var slots []Slot
	if err := sqlx.SelectContext(ctx, q, &slots, query); err != nil {
		return nil, err
	}
	return slots, nil
}
