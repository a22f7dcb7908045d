package booking

import (
	"time"

	"creditslot/internal/conversion"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

type Booking struct {
	ID             int64      `db:"id" json:"id"`
	Reference      uuid.UUID  `db:"reference" json:"reference"`
	CustomerID     int64      `db:"customer_id" json:"customer_id"`
	WalletID       int64      `db:"wallet_id" json:"wallet_id"`
	SlotID         int64      `db:"slot_id" json:"slot_id"`
	ConversionID   *int64     `db:"conversion_id" json:"conversion_id,omitempty"`
	Status         Status     `db:"status" json:"status"`
	Quantity       int        `db:"quantity" json:"quantity"`
	IdempotencyKey *string    `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	CancelledAt    *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Item is one age-group line of a booking. Credits are per unit.
type Item struct {
	ID          int64   `db:"id" json:"id"`
	BookingID   int64   `db:"booking_id" json:"booking_id"`
	AgeGroup    *string `db:"age_group" json:"age_group,omitempty"`
	Quantity    int     `db:"quantity" json:"quantity"`
	PaidCredits int64   `db:"paid_credits" json:"paid_credits"`
	FreeCredits int64   `db:"free_credits" json:"free_credits"`
}

func SeatCount(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

type ReserveRequest struct {
	CustomerID int64 `json:"-"`
	SlotID     int64 `json:"-"`
	// Quantities maps age group to ticket count; "" is the general price.
	Quantities     map[string]int `json:"quantities" validate:"required,min=1,dive,gte=0,lte=1000"`
	AllowFallback  bool           `json:"allow_fallback"`
	IdempotencyKey string         `json:"idempotency_key" validate:"omitempty,max=128"`
	// Conversion overrides the slot's resolved conversion when set.
	Conversion *conversion.Conversion `json:"-"`
}

type Result struct {
	Booking *Booking `json:"booking"`
	Items   []Item   `json:"items"`

	RequiredFree int64 `json:"required_free"`
	RequiredPaid int64 `json:"required_paid"`
	DeductedFree int64 `json:"deducted_free"`
	DeductedPaid int64 `json:"deducted_paid"`

	ShortfallFree        int64 `json:"shortfall_free"`
	PaidToFreeRatio      int64 `json:"paid_to_free_ratio"`
	PaidUsedForShortfall int64 `json:"paid_used_for_shortfall"`

	// Replayed is set when the idempotency key matched an earlier booking.
	Replayed bool `json:"replayed"`
}

type CancelRequest struct {
	BookingID int64
	// CustomerID restricts the cancellation to the booking's owner; zero
	// means a system or admin cancellation.
	CustomerID int64
	Force      bool
}

type CancelResult struct {
	BookingID     int64  `json:"booking_id"`
	Refunded      bool   `json:"refunded"`
	RestoredSeats int    `json:"restored_seats"`
	Message       string `json:"message"`
}
