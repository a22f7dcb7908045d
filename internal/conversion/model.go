package conversion

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Conversion prices credits in currency and fixes how many paid credits
// stand in for one missing free credit. Rows are immutable; a new row with
// a later EffectiveFrom supersedes an older one.
type Conversion struct {
	ID                     int64           `db:"id" json:"id"`
	CreditsPerCurrencyUnit decimal.Decimal `db:"credits_per_currency_unit" json:"credits_per_currency_unit"`
	PaidToFreeRatio        int64           `db:"paid_to_free_ratio" json:"paid_to_free_ratio"`
	EffectiveFrom          time.Time       `db:"effective_from" json:"effective_from"`
	ValidUntil             *time.Time      `db:"valid_until" json:"valid_until,omitempty"`
	Status                 Status          `db:"status" json:"status"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
}

// Ratio returns the paid-to-free ratio, never less than 1.
func (c *Conversion) Ratio() int64 {
	if c.PaidToFreeRatio < 1 {
		return 1
	}
	return c.PaidToFreeRatio
}

func (c *Conversion) ActiveAt(t time.Time) bool {
	if c.Status != StatusActive || c.EffectiveFrom.After(t) {
		return false
	}
	return c.ValidUntil == nil || !c.ValidUntil.Before(t)
}

func (c *Conversion) Validate() error {
	if !c.CreditsPerCurrencyUnit.IsPositive() {
		return ErrInvalidConversion
	}
	return nil
}

// CurrencyValue converts a credit amount into currency at this rate.
func (c *Conversion) CurrencyValue(credits decimal.Decimal) decimal.Decimal {
	if !c.CreditsPerCurrencyUnit.IsPositive() {
		return decimal.Zero
	}
	return credits.DivRound(c.CreditsPerCurrencyUnit, 8)
}
