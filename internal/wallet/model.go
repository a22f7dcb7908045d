package wallet

import "time"

type TransactionType string

const (
	TypePurchase TransactionType = "purchase"
	TypeBonus    TransactionType = "bonus"
	TypeBooking  TransactionType = "booking"
	TypeRefund   TransactionType = "refund"
)

// Wallet holds the cached balances of one customer. The cache always equals
// the sum of the deltas in the wallet's transaction history.
type Wallet struct {
	ID          int64     `db:"id" json:"id"`
	CustomerID  int64     `db:"customer_id" json:"customer_id"`
	FreeCredits int64     `db:"free_credits" json:"free_credits"`
	PaidCredits int64     `db:"paid_credits" json:"paid_credits"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID          int64           `db:"id" json:"id"`
	WalletID    int64           `db:"wallet_id" json:"wallet_id"`
	Type        TransactionType `db:"type" json:"type"`
	BeforeFree  int64           `db:"before_free" json:"before_free"`
	BeforePaid  int64           `db:"before_paid" json:"before_paid"`
	DeltaFree   int64           `db:"delta_free" json:"delta_free"`
	DeltaPaid   int64           `db:"delta_paid" json:"delta_paid"`
	Description string          `db:"description" json:"description"`
	BookingID   *int64          `db:"booking_id" json:"booking_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

func (t *Transaction) AfterFree() int64 { return t.BeforeFree + t.DeltaFree }
func (t *Transaction) AfterPaid() int64 { return t.BeforePaid + t.DeltaPaid }

type Grant struct {
	ID            int64     `db:"id" json:"id"`
	WalletID      int64     `db:"wallet_id" json:"wallet_id"`
	TransactionID int64     `db:"transaction_id" json:"transaction_id"`
	Source        string    `db:"source" json:"source"`
	FreeAmount    int64     `db:"free_amount" json:"free_amount"`
	PaidAmount    int64     `db:"paid_amount" json:"paid_amount"`
	RemainingFree int64     `db:"remaining_free" json:"remaining_free"`
	RemainingPaid int64     `db:"remaining_paid" json:"remaining_paid"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type DebitRequest struct {
	WalletID    int64
	FreePerUnit int64
	PaidPerUnit int64
	Quantity    int64
	Description string
	BookingID   int64
	// PaidToFreeRatio overrides the active rate lookup when positive, so a
	// caller that pre-validated affordability debits with the same ratio.
	PaidToFreeRatio int64
	AllowFallback   bool
}

type DebitResult struct {
	TransactionID   int64 `json:"transaction_id"`
	DeductedFree    int64 `json:"deducted_free"`
	DeductedPaid    int64 `json:"deducted_paid"`
	ShortfallFree   int64 `json:"shortfall_free"`
	PaidToFreeRatio int64 `json:"paid_to_free_ratio"`
	// Clamped is set when fallback accepted less paid credit than required.
	Clamped bool `json:"clamped"`
}

type GrantRequest struct {
	CustomerID   int64           `json:"customer_id" validate:"required,gt=0"`
	Type         TransactionType `json:"type" validate:"required,oneof=bonus purchase"`
	Source       string          `json:"source" validate:"required,max=64"`
	FreeAmount   int64           `json:"free_amount" validate:"gte=0"`
	PaidAmount   int64           `json:"paid_amount" validate:"gte=0"`
	ValidityDays int             `json:"validity_days" validate:"required,gt=0"`
}

type AuditReport struct {
	WalletID   int64 `json:"wallet_id"`
	CachedFree int64 `json:"cached_free"`
	CachedPaid int64 `json:"cached_paid"`
	LedgerFree int64 `json:"ledger_free"`
	LedgerPaid int64 `json:"ledger_paid"`
	DriftFree  int64 `json:"drift_free"`
	DriftPaid  int64 `json:"drift_paid"`
	Consistent bool  `json:"consistent"`
}
