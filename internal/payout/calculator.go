package payout

import (
	"encoding/json"
	"fmt"
	"time"

	"creditslot/internal/booking"
	"creditslot/internal/config"
	"creditslot/internal/conversion"
	"creditslot/internal/event"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculator reduces a slot's confirmed bookings to a payout. It does no
// I/O; the service loads the inputs and stores the result.
type Calculator struct {
	feePercent    decimal.Decimal
	releaseOffset time.Duration
}

func NewCalculator(cfg config.PayoutConfig) *Calculator {
	return &Calculator{
		feePercent:    decimal.NewFromFloat(cfg.PlatformFeePercent),
		releaseOffset: cfg.ReleaseOffset,
	}
}

// Calculate values every item at the slot's conversion. An item is worth
// quantity × (paid + free × ratio) credits, converted and rounded to cents.
// The net amount is rounded up to the next 0.1.
func (c *Calculator) Calculate(slot *event.Slot, conv *conversion.Conversion, bookings []booking.Booking, items []booking.Item, now time.Time) (*Payout, error) {
	if len(bookings) == 0 {
		return nil, ErrNoConfirmedBookings
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	end, err := slot.EndsAt(now.Location())
	if err != nil {
		return nil, err
	}

	byBooking := make(map[int64][]booking.Item, len(bookings))
	for _, it := range items {
		byBooking[it.BookingID] = append(byBooking[it.BookingID], it)
	}

	ratio := conv.Ratio()
	p := &Payout{
		SlotID:       slot.ID,
		MerchantID:   slot.MerchantID,
		ConversionID: conv.ID,
		GrossAmount:  decimal.Zero,
		BookingIDs:   make([]int64, 0, len(bookings)),
		CalculatedAt: now,
		AvailableAt:  end.Add(c.releaseOffset),
	}
	merchant := make([]MerchantLine, 0, len(bookings))
	admin := AdminBreakdown{
		ConversionID:           conv.ID,
		CreditsPerCurrencyUnit: conv.CreditsPerCurrencyUnit,
		PaidToFreeRatio:        ratio,
		PlatformFeePercent:     c.feePercent,
		Bookings:               make([]AdminLine, 0, len(bookings)),
	}

	for _, b := range bookings {
		line := AdminLine{
			BookingID:  b.ID,
			Reference:  b.Reference.String(),
			CustomerID: b.CustomerID,
			Amount:     decimal.Zero,
		}
		for _, it := range byBooking[b.ID] {
			qty := int64(it.Quantity)
			paid := qty * it.PaidCredits
			free := qty * it.FreeCredits
			amount := conv.CurrencyValue(decimal.NewFromInt(paid + free*ratio)).Round(2)

			ai := AdminItem{
				Quantity:    it.Quantity,
				PaidCredits: paid,
				FreeCredits: free,
				Amount:      amount,
			}
			if it.AgeGroup != nil {
				ai.AgeGroup = *it.AgeGroup
			}
			line.Items = append(line.Items, ai)
			line.Tickets += it.Quantity
			line.PaidCredits += paid
			line.FreeCredits += free
			line.Amount = line.Amount.Add(amount)
		}

		p.BookingIDs = append(p.BookingIDs, b.ID)
		p.TotalBookings += line.Tickets
		p.TotalPaidCredits += line.PaidCredits
		p.TotalFreeCredits += line.FreeCredits
		p.GrossAmount = p.GrossAmount.Add(line.Amount)

		admin.Bookings = append(admin.Bookings, line)
		merchant = append(merchant, MerchantLine{
			BookingID: b.ID,
			Reference: line.Reference,
			Tickets:   line.Tickets,
			Amount:    line.Amount,
		})
	}

	p.PlatformFee = p.GrossAmount.Mul(c.feePercent).Div(hundred).Round(2)
	p.NetAmount = p.GrossAmount.Sub(p.PlatformFee).RoundCeil(1)

	p.Status = StatusPending
	if p.AvailableAt.After(now) {
		p.Status = StatusLocked
	}

	if p.MerchantBreakdown, err = json.Marshal(merchant); err != nil {
		return nil, fmt.Errorf("encode merchant breakdown: %w", err)
	}
	if p.AdminBreakdown, err = json.Marshal(admin); err != nil {
		return nil, fmt.Errorf("encode admin breakdown: %w", err)
	}
	return p, nil
}
