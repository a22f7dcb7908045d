package event

import (
	"strings"
	"time"
)

type Event struct {
	ID         int64     `db:"id" json:"id"`
	MerchantID int64     `db:"merchant_id" json:"merchant_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Slot is a read-only projection of a bookable slot together with the
// owning event's merchant and first scheduled date. Dates and times are
// wall-clock values in the platform timezone.
type Slot struct {
	ID              int64      `db:"id" json:"id"`
	EventID         int64      `db:"event_id" json:"event_id"`
	MerchantID      int64      `db:"merchant_id" json:"merchant_id"`
	EventName       string     `db:"event_name" json:"event_name"`
	Date            *time.Time `db:"date" json:"date,omitempty"`
	StartTime       *string    `db:"start_time" json:"start_time,omitempty"`
	EndTime         *string    `db:"end_time" json:"end_time,omitempty"`
	Capacity        int        `db:"capacity" json:"capacity"`
	IsUnlimited     bool       `db:"is_unlimited" json:"is_unlimited"`
	EventFirstDate  *time.Time `db:"event_first_date" json:"-"`
	EventFirstStart *string    `db:"event_first_start" json:"-"`
	EventFirstEnd   *string    `db:"event_first_end" json:"-"`
}

type Price struct {
	ID           int64   `db:"id" json:"id"`
	SlotID       int64   `db:"slot_id" json:"slot_id"`
	AgeGroup     *string `db:"age_group" json:"age_group,omitempty"`
	FreeCredits  int64   `db:"free_credits" json:"free_credits"`
	PaidCredits  int64   `db:"paid_credits" json:"paid_credits"`
	ConversionID *int64  `db:"conversion_id" json:"conversion_id,omitempty"`
}

func (p *Price) IsGeneral() bool {
	return p.AgeGroup == nil || strings.TrimSpace(*p.AgeGroup) == ""
}

type Availability struct {
	SlotID      int64 `json:"slot_id"`
	Capacity    int   `json:"capacity"`
	IsUnlimited bool  `json:"is_unlimited"`
	Booked      int   `json:"booked"`
	Available   int   `json:"available"`
	IsFull      bool  `json:"is_full"`
}

// StartsAt resolves the slot start from its own date and start time,
// falling back to the event's first date.
func (s *Slot) StartsAt(loc *time.Location) (time.Time, error) {
	date, clock := s.Date, s.StartTime
	if date == nil {
		date = s.EventFirstDate
	}
	if clock == nil {
		clock = s.EventFirstStart
	}
	if date == nil || clock == nil {
		return time.Time{}, ErrCannotDetermineStart
	}
	t, err := combine(*date, *clock, loc)
	if err != nil {
		return time.Time{}, ErrCannotDetermineStart
	}
	return t, nil
}

// EndsAt resolves the slot end from its own end time or, absent one, the
// event's first date's end. An end before the start rolls to the next day.
func (s *Slot) EndsAt(loc *time.Location) (time.Time, error) {
	date, clock := s.Date, s.EndTime
	if date == nil {
		date = s.EventFirstDate
	}
	if clock == nil {
		clock = s.EventFirstEnd
	}
	if date == nil || clock == nil {
		return time.Time{}, ErrCannotDetermineSlotEnd
	}
	end, err := combine(*date, *clock, loc)
	if err != nil {
		return time.Time{}, ErrCannotDetermineSlotEnd
	}
	if start, err := s.StartsAt(loc); err == nil && end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end, nil
}

// HasEnded is derived, never stored.
func (s *Slot) HasEnded(now time.Time) (bool, error) {
	end, err := s.EndsAt(now.Location())
	if err != nil {
		return false, err
	}
	return end.Before(now), nil
}

var timeLayouts = []string{"15:04:05", "15:04", "15:04:05.999999"}

func combine(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock = strings.TrimSpace(clock)
	// lib/pq may hand TIME columns back as full timestamps.
	if i := strings.IndexByte(clock, 'T'); i >= 0 {
		clock = clock[i+1:]
	}
	if i := strings.IndexAny(clock, "Z+"); i >= 0 {
		clock = clock[:i]
	}

	var (
		parsed time.Time
		err    error
	)
	for _, layout := range timeLayouts {
		parsed, err = time.Parse(layout, clock)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}

	y, m, d := date.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc), nil
}
