package conversion

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

const conversionColumns = `c.id, c.credits_per_currency_unit, c.paid_to_free_ratio, c.effective_from, c.valid_until, c.status, c.created_at`

func (r *repository) GetActive(ctx context.Context, q sqlx.QueryerContext, now time.Time) (*Conversion, error) {
	query := `
		SELECT ` + conversionColumns + `
		FROM conversions c
		WHERE c.status = 'active'
		  AND c.effective_from <= $1
		  AND (c.valid_until IS NULL OR c.valid_until >= $1)
		ORDER BY c.effective_from DESC, c.id DESC
		LIMIT 1
	`

	var c Conversion
	if err := sqlx.GetContext(ctx, q, &c, query, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveConversion
		}
		return nil, err
	}
	return &c, nil
}

// ListCandidates returns every active row that has not expired by now,
// including rows that only take effect later, newest effective_from first.
func (r *repository) ListCandidates(ctx context.Context, q sqlx.QueryerContext, now time.Time) ([]Conversion, error) {
	query := `
		SELECT ` + conversionColumns + `
		FROM conversions c
		WHERE c.status = 'active'
		  AND (c.valid_until IS NULL OR c.valid_until >= $1)
		ORDER BY c.effective_from DESC, c.id DESC
	`

	var out []Conversion
	if err := sqlx.SelectContext(ctx, q, &out, query, now); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) Insert(ctx context.Context, q sqlx.QueryerContext, c *Conversion) error {
	query := `
		INSERT INTO conversions (credits_per_currency_unit, paid_to_free_ratio, effective_from, valid_until, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return sqlx.GetContext(ctx, q, c, query,
		c.CreditsPerCurrencyUnit, c.PaidToFreeRatio, c.EffectiveFrom, c.ValidUntil, c.Status)
}

// GetPinnedForSlot returns the conversion pinned on the slot's first price
// row that carries one, or nil when the slot uses the global rate.
func (r *repository) GetPinnedForSlot(ctx context.Context, q sqlx.QueryerContext, slotID int64) (*Conversion, error) {
	query := `
		SELECT ` + conversionColumns + `
		FROM slot_prices sp
		JOIN conversions c ON c.id = sp.conversion_id
		WHERE sp.slot_id = $1 AND sp.conversion_id IS NOT NULL
		ORDER BY sp.id
		LIMIT 1
	`

	var c Conversion
	if err := sqlx.GetContext(ctx, q, &c, query, slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
