package payout

import (
	"context"
	"errors"
	"time"

	"creditslot/internal/booking"
	"creditslot/internal/clock"
	"creditslot/internal/conversion"
	"creditslot/internal/db"
	"creditslot/internal/event"
	"creditslot/internal/logger"
	"creditslot/internal/metrics"
	"creditslot/internal/notify"

	"github.com/jmoiron/sqlx"
)

type ConversionResolver interface {
	ResolveForSlot(ctx context.Context, slotID int64) (*conversion.Conversion, error)
}

type Notifier interface {
	Enqueue(ctx context.Context, n notify.Notification) error
}

type Service interface {
	CalculateForSlot(ctx context.Context, slotID int64) (*Payout, error)
	ScanAndCalculate(ctx context.Context) (*ScanReport, error)
	ReleaseDue(ctx context.Context) (int, error)
	MarkPaid(ctx context.Context, payoutID int64) (*Payout, error)
	GetForSlot(ctx context.Context, slotID int64) (*Payout, error)
	List(ctx context.Context, f Filter) ([]Payout, error)
}

type service struct {
	repo        Repository
	slots       event.Repository
	bookings    booking.Repository
	conversions ConversionResolver
	calc        *Calculator
	runner      db.Runner
	db          sqlx.ExtContext
	notifier    Notifier
	clock       clock.Clock
}

// NewService builds the payout calculator and scanner. notifier may be nil.
func NewService(
	repo Repository,
	slots event.Repository,
	bookings booking.Repository,
	conversions ConversionResolver,
	calc *Calculator,
	runner db.Runner,
	dbx sqlx.ExtContext,
	notifier Notifier,
	clk clock.Clock,
) Service {
	return &service{
		repo:        repo,
		slots:       slots,
		bookings:    bookings,
		conversions: conversions,
		calc:        calc,
		runner:      runner,
		db:          dbx,
		notifier:    notifier,
		clock:       clk,
	}
}

// CalculateForSlot computes and stores the payout of an ended slot in one
// transaction. A slot that already has a payout fails with ErrPayoutExists.
func (s *service) CalculateForSlot(ctx context.Context, slotID int64) (*Payout, error) {
	now := s.clock.Now()

	var (
		p    *Payout
		slot *event.Slot
	)
	err := s.runner.WithTx(ctx, func(tx sqlx.ExtContext) error {
		var err error
		slot, err = s.slots.GetSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		ended, err := slot.HasEnded(now)
		if err != nil {
			return err
		}
		if !ended {
			return ErrSlotNotEnded
		}

		confirmed, err := s.bookings.ListBySlot(ctx, tx, slotID, booking.StatusConfirmed)
		if err != nil {
			return err
		}
		if len(confirmed) == 0 {
			return ErrNoConfirmedBookings
		}
		ids := make([]int64, len(confirmed))
		for i, b := range confirmed {
			ids[i] = b.ID
		}
		items, err := s.bookings.GetItemsForBookings(ctx, tx, ids)
		if err != nil {
			return err
		}

		conv, err := s.conversions.ResolveForSlot(ctx, slotID)
		if err != nil {
			return err
		}

		p, err = s.calc.Calculate(slot, conv, confirmed, items, now)
		if err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPayout(string(p.Status))
	logger.Info("payout calculated",
		"payout_id", p.ID, "slot_id", slotID, "merchant_id", p.MerchantID,
		"gross", p.GrossAmount.StringFixed(2), "net", p.NetAmount.StringFixed(2),
		"status", p.Status, "available_at", p.AvailableAt)

	if s.notifier != nil {
		n := notify.PayoutCalculated(p.MerchantID, slotID, slot.EventName, p.NetAmount.StringFixed(2), p.AvailableAt)
		if err := s.notifier.Enqueue(context.WithoutCancel(ctx), n); err != nil {
			logger.Warn("failed to queue payout notification", "payout_id", p.ID, "error", err)
		}
	}
	return p, nil
}

// ScanAndCalculate settles every ended slot that has confirmed bookings and
// no payout. Each slot runs in its own transaction; a failing slot is
// logged and skipped.
func (s *service) ScanAndCalculate(ctx context.Context) (*ScanReport, error) {
	started := time.Now()
	report := &ScanReport{}

	candidates, err := s.slots.ListPayoutCandidates(ctx, s.db)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			logger.Warn("payout scan interrupted", "remaining", len(candidates)-i, "error", err)
			break
		}
		slot := &candidates[i]

		ended, err := slot.HasEnded(now)
		if err != nil {
			s.recordFailure(report, slot.ID, err)
			continue
		}
		if !ended {
			report.NotEnded++
			continue
		}

		p, err := s.CalculateForSlot(ctx, slot.ID)
		if errors.Is(err, ErrPayoutExists) {
			continue
		}
		if err != nil {
			s.recordFailure(report, slot.ID, err)
			continue
		}
		report.Calculated = append(report.Calculated, Calculated{SlotID: slot.ID, PayoutID: p.ID})
	}

	metrics.RecordPayoutScan(len(report.Failed), time.Since(started).Seconds())
	logger.Info("payout scan finished",
		"candidates", len(candidates), "calculated", len(report.Calculated),
		"failed", len(report.Failed), "not_ended", report.NotEnded)
	return report, nil
}

func (s *service) recordFailure(report *ScanReport, slotID int64, err error) {
	logger.Error("payout calculation failed", "slot_id", slotID, "error", err)
	report.Failed = append(report.Failed, Failure{SlotID: slotID, Error: err.Error()})
}

func (s *service) ReleaseDue(ctx context.Context) (int, error) {
	ids, err := s.repo.ReleaseDue(ctx, s.db, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		metrics.RecordPayoutsReleased(len(ids))
		logger.Info("payouts released", "count", len(ids), "payout_ids", ids)
	}
	return len(ids), nil
}

func (s *service) MarkPaid(ctx context.Context, payoutID int64) (*Payout, error) {
	var p *Payout
	err := s.runner.WithTx(ctx, func(tx sqlx.ExtContext) error {
		var err error
		p, err = s.repo.LockByID(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return ErrInvalidPayoutTransition
		}
		now := s.clock.Now()
		if err := s.repo.MarkPaid(ctx, tx, payoutID, now); err != nil {
			return err
		}
		p.Status = StatusPaid
		p.PaidAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPayout(string(StatusPaid))
	logger.Info("payout marked paid", "payout_id", payoutID, "net", p.NetAmount.StringFixed(2))
	return p, nil
}

func (s *service) GetForSlot(ctx context.Context, slotID int64) (*Payout, error) {
	return s.repo.GetBySlot(ctx, s.db, slotID)
}

func (s *service) List(ctx context.Context, f Filter) ([]Payout, error) {
	return s.repo.List(ctx, s.db, f)
}
