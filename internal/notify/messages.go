package notify

import (
	"fmt"
	"strconv"
	"time"
)

const whenLayout = "Jan 2, 2006 at 3:04 PM"

func BookingConfirmed(customerID int64, reference, eventName string, start time.Time, quantity int, free, paid int64) Notification {
	return Notification{
		Kind:        KindBookingConfirmed,
		RecipientID: customerID,
		Subject:     "Booking Confirmed - " + eventName,
		Body: fmt.Sprintf(`Your booking is confirmed!

Event: %s
Time: %s
Tickets: %d
Credits used: %d free, %d paid
Reference: %s

- CreditSlot`, eventName, start.Format(whenLayout), quantity, free, paid, reference),
		Data: map[string]string{"reference": reference},
	}
}

func MerchantNewBooking(merchantID, slotID int64, eventName string, start time.Time, quantity int) Notification {
	return Notification{
		Kind:        KindMerchantBooking,
		RecipientID: merchantID,
		Subject:     "New booking - " + eventName,
		Body: fmt.Sprintf(`%d new ticket(s) were booked for %s on %s.

- CreditSlot`, quantity, eventName, start.Format(whenLayout)),
		Data: map[string]string{"slot_id": strconv.FormatInt(slotID, 10)},
	}
}

func BookingCancelled(customerID int64, reference, eventName, summary string) Notification {
	return Notification{
		Kind:        KindBookingCancelled,
		RecipientID: customerID,
		Subject:     "Booking Cancelled - " + eventName,
		Body: fmt.Sprintf(`Your booking has been cancelled.

Event: %s
Reference: %s
%s

- CreditSlot`, eventName, reference, summary),
		Data: map[string]string{"reference": reference},
	}
}

func PayoutCalculated(merchantID, slotID int64, eventName, netAmount string, availableAt time.Time) Notification {
	return Notification{
		Kind:        KindPayoutCalculated,
		RecipientID: merchantID,
		Subject:     "Payout ready - " + eventName,
		Body: fmt.Sprintf(`Your payout for %s has been calculated.

Net amount: %s
Available from: %s

- CreditSlot`, eventName, netAmount, availableAt.Format(whenLayout)),
		Data: map[string]string{"slot_id": strconv.FormatInt(slotID, 10)},
	}
}
