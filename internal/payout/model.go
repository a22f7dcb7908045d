package payout

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusLocked  Status = "locked"
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Payout is the one-off settlement of a slot's confirmed bookings. Only the
// status and paid_at change after it is written.
type Payout struct {
	ID                int64           `db:"id" json:"id"`
	SlotID            int64           `db:"slot_id" json:"slot_id"`
	MerchantID        int64           `db:"merchant_id" json:"merchant_id"`
	ConversionID      int64           `db:"conversion_id" json:"conversion_id"`
	TotalPaidCredits  int64           `db:"total_paid_credits" json:"total_paid_credits"`
	TotalFreeCredits  int64           `db:"total_free_credits" json:"total_free_credits"`
	GrossAmount       decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	PlatformFee       decimal.Decimal `db:"platform_fee" json:"platform_fee"`
	NetAmount         decimal.Decimal `db:"net_amount" json:"net_amount"`
	TotalBookings     int             `db:"total_bookings" json:"total_bookings"`
	BookingIDs        pq.Int64Array   `db:"booking_ids" json:"booking_ids"`
	MerchantBreakdown types.JSONText  `db:"merchant_breakdown" json:"merchant_breakdown"`
	AdminBreakdown    types.JSONText  `db:"admin_breakdown" json:"admin_breakdown,omitempty"`
	CalculatedAt      time.Time       `db:"calculated_at" json:"calculated_at"`
	AvailableAt       time.Time       `db:"available_at" json:"available_at"`
	Status            Status          `db:"status" json:"status"`
	PaidAt            *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// MerchantView drops the admin-only breakdown.
func (p *Payout) MerchantView() *Payout {
	copied := *p
	copied.AdminBreakdown = nil
	return &copied
}

// MerchantLine is what a merchant sees per booking: tickets and money.
type MerchantLine struct {
	BookingID int64           `json:"booking_id"`
	Reference string          `json:"reference"`
	Tickets   int             `json:"tickets"`
	Amount    decimal.Decimal `json:"amount"`
}

// AdminLine adds the credit split and the rate used.
type AdminLine struct {
	BookingID   int64           `json:"booking_id"`
	Reference   string          `json:"reference"`
	CustomerID  int64           `json:"customer_id"`
	Tickets     int             `json:"tickets"`
	PaidCredits int64           `json:"paid_credits"`
	FreeCredits int64           `json:"free_credits"`
	Amount      decimal.Decimal `json:"amount"`
	Items       []AdminItem     `json:"items"`
}

type AdminItem struct {
	AgeGroup    string          `json:"age_group,omitempty"`
	Quantity    int             `json:"quantity"`
	PaidCredits int64           `json:"paid_credits"`
	FreeCredits int64           `json:"free_credits"`
	Amount      decimal.Decimal `json:"amount"`
}

type AdminBreakdown struct {
	ConversionID           int64           `json:"conversion_id"`
	CreditsPerCurrencyUnit decimal.Decimal `json:"credits_per_currency_unit"`
	PaidToFreeRatio        int64           `json:"paid_to_free_ratio"`
	PlatformFeePercent     decimal.Decimal `json:"platform_fee_percent"`
	Bookings               []AdminLine     `json:"bookings"`
}

type Filter struct {
	MerchantID int64
	Status     Status
	Limit      int
	Offset     int
}

type Calculated struct {
	SlotID   int64 `json:"slot_id"`
	PayoutID int64 `json:"payout_id"`
}

type Failure struct {
	SlotID int64  `json:"slot_id"`
	Error  string `json:"error"`
}

type ScanReport struct {
	Calculated []Calculated `json:"calculated"`
	Failed     []Failure    `json:"failed"`
	// NotEnded counts candidates whose slot is still running.
	NotEnded int `json:"not_ended"`
}
