package event

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// CapacityGuard decides whether a slot has room for more seats. When used
// during a reservation, q must be the transaction holding the slot lock.
type CapacityGuard struct {
	repo Repository
}

func NewCapacityGuard(repo Repository) *CapacityGuard {
	return &CapacityGuard{repo: repo}
}

func (g *CapacityGuard) IsAvailable(ctx context.Context, q sqlx.QueryerContext, slot *Slot, requested int) (bool, error) {
	if slot.IsUnlimited {
		return true, nil
	}
	a, err := g.Availability(ctx, q, slot)
	if err != nil {
		return false, err
	}
	return a.Available >= requested, nil
}

func (g *CapacityGuard) Availability(ctx context.Context, q sqlx.QueryerContext, slot *Slot) (*Availability, error) {
	booked, err := g.repo.SumActiveQuantity(ctx, q, slot.ID)
	if err != nil {
		return nil, err
	}

	a := &Availability{
		SlotID:      slot.ID,
		Capacity:    slot.Capacity,
		IsUnlimited: slot.IsUnlimited,
		Booked:      booked,
	}
	if slot.IsUnlimited {
		a.Available = -1
		return a, nil
	}
	a.Available = slot.Capacity - booked
	if a.Available < 0 {
		a.Available = 0
	}
	a.IsFull = a.Available == 0
	return a, nil
}

// ResolvePrice picks the price row for an age group, falling back to the
// general price when the group has none. An empty group asks for the
// general price directly.
func ResolvePrice(prices []Price, ageGroup string) (*Price, error) {
	var general *Price
	for i := range prices {
		p := &prices[i]
		if p.IsGeneral() {
			if general == nil {
				general = p
			}
			continue
		}
		if ageGroup != "" && *p.AgeGroup == ageGroup {
			return p, nil
		}
	}
	if general != nil {
		return general, nil
	}
	return nil, ErrPriceNotFound
}
