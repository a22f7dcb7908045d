package notify

import "time"

type Kind string

const (
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCancelled Kind = "booking_cancelled"
	KindMerchantBooking  Kind = "merchant_new_booking"
	KindPayoutCalculated Kind = "payout_calculated"
)

// Notification is a queued message for one recipient. The worker resolves
// the recipient's address at delivery time.
type Notification struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	RecipientID int64             `json:"recipient_id"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Tries       int               `json:"tries"`
	Created     time.Time         `json:"created"`
}
