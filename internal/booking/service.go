package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"creditslot/internal/clock"
	"creditslot/internal/config"
	"creditslot/internal/conversion"
	"creditslot/internal/db"
	"creditslot/internal/event"
	"creditslot/internal/logger"
	"creditslot/internal/metrics"
	"creditslot/internal/notify"
	"creditslot/internal/wallet"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ConversionResolver picks the conversion a slot's bookings are priced at.
type ConversionResolver interface {
	ResolveForSlot(ctx context.Context, slotID int64) (*conversion.Conversion, error)
}

// Notifier receives post-commit notifications. Delivery is best-effort.
type Notifier interface {
	Enqueue(ctx context.Context, n notify.Notification) error
}

type Service interface {
	Reserve(ctx context.Context, req ReserveRequest) (*Result, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
	Get(ctx context.Context, customerID, bookingID int64) (*Booking, []Item, error)
	ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Booking, error)
	ListForSlot(ctx context.Context, slotID int64, status Status) ([]Booking, error)
}

type service struct {
	repo        Repository
	slots       event.Repository
	guard       *event.CapacityGuard
	ledger      wallet.Ledger
	conversions ConversionResolver
	runner      db.Runner
	db          sqlx.ExtContext
	notifier    Notifier
	clock       clock.Clock
	cfg         config.BookingConfig
}

// NewService builds the booking engine. notifier may be nil.
func NewService(
	repo Repository,
	slots event.Repository,
	ledger wallet.Ledger,
	conversions ConversionResolver,
	runner db.Runner,
	dbx sqlx.ExtContext,
	notifier Notifier,
	clk clock.Clock,
	cfg config.BookingConfig,
) Service {
	return &service{
		repo:        repo,
		slots:       slots,
		guard:       event.NewCapacityGuard(slots),
		ledger:      ledger,
		conversions: conversions,
		runner:      runner,
		db:          dbx,
		notifier:    notifier,
		clock:       clk,
		cfg:         cfg,
	}
}

type line struct {
	ageGroup string
	quantity int
}

func (s *service) Reserve(ctx context.Context, req ReserveRequest) (*Result, error) {
	lines, total, err := splitQuantities(req.Quantities)
	if err != nil {
		metrics.RecordReservation("rejected")
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, s.db, req.CustomerID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(ctx, existing, req.SlotID)
		}
	}

	conv := req.Conversion
	if conv == nil {
		if conv, err = s.conversions.ResolveForSlot(ctx, req.SlotID); err != nil {
			metrics.RecordReservation("rejected")
			return nil, err
		}
	}
	ratio, err := s.ledger.PaidToFreeRatio(ctx)
	if err != nil {
		metrics.RecordReservation("rejected")
		return nil, err
	}
	allowFallback := req.AllowFallback && s.cfg.AllowCreditFallback

	var (
		result *Result
		slot   *event.Slot
		start  time.Time
	)
	err = s.runner.WithTx(ctx, func(tx sqlx.ExtContext) error {
		var err error
		result = nil

		slot, err = s.slots.LockSlot(ctx, tx, req.SlotID)
		if err != nil {
			return err
		}
		start, err = slot.StartsAt(s.clock.Location())
		if err != nil {
			return err
		}
		if !s.clock.Now().Before(start) {
			return ErrSlotStarted
		}

		ok, err := s.guard.IsAvailable(ctx, tx, slot, total)
		if err != nil {
			return err
		}
		if !ok {
			return event.ErrSlotFull
		}

		prices, err := s.slots.GetPrices(ctx, tx, slot.ID)
		if err != nil {
			return err
		}
		items := make([]Item, 0, len(lines))
		var totalFree, totalPaid int64
		for _, l := range lines {
			p, err := event.ResolvePrice(prices, l.ageGroup)
			if err != nil {
				return err
			}
			item := Item{
				Quantity:    l.quantity,
				PaidCredits: p.PaidCredits,
				FreeCredits: p.FreeCredits,
			}
			if l.ageGroup != "" {
				group := l.ageGroup
				item.AgeGroup = &group
			}
			items = append(items, item)
			totalFree += int64(l.quantity) * p.FreeCredits
			totalPaid += int64(l.quantity) * p.PaidCredits
		}

		w, err := s.ledger.WalletForUpdate(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if err := s.ledger.CanBookWithCredits(w, totalFree, totalPaid, ratio, allowFallback); err != nil {
			return err
		}

		b := &Booking{
			Reference:  uuid.New(),
			CustomerID: req.CustomerID,
			WalletID:   w.ID,
			SlotID:     slot.ID,
			Status:     StatusConfirmed,
			Quantity:   total,
		}
		if conv != nil && conv.ID > 0 {
			id := conv.ID
			b.ConversionID = &id
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			b.IdempotencyKey = &key
		}
		if err := s.repo.Create(ctx, tx, b); err != nil {
			return err
		}
		for i := range items {
			items[i].BookingID = b.ID
			if err := s.repo.InsertItem(ctx, tx, &items[i]); err != nil {
				return fmt.Errorf("insert booking item: %w", err)
			}
		}

		debit, err := s.ledger.Debit(ctx, tx, wallet.DebitRequest{
			WalletID:        w.ID,
			FreePerUnit:     totalFree,
			PaidPerUnit:     totalPaid,
			Quantity:        1,
			Description:     fmt.Sprintf("Booking #%d", b.ID),
			BookingID:       b.ID,
			PaidToFreeRatio: ratio,
			AllowFallback:   allowFallback,
		})
		if err != nil {
			return err
		}

		result = &Result{
			Booking:              b,
			Items:                items,
			RequiredFree:         totalFree,
			RequiredPaid:         totalPaid,
			DeductedFree:         debit.DeductedFree,
			DeductedPaid:         debit.DeductedPaid,
			ShortfallFree:        debit.ShortfallFree,
			PaidToFreeRatio:      debit.PaidToFreeRatio,
			PaidUsedForShortfall: max(0, debit.DeductedPaid-totalPaid),
		}
		return nil
	})
	if errors.Is(err, errDuplicateKey) {
		existing, lookupErr := s.repo.GetByIdempotencyKey(ctx, s.db, req.CustomerID, req.IdempotencyKey)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, err
		}
		return s.replay(ctx, existing, req.SlotID)
	}
	if err != nil {
		metrics.RecordReservation(reservationOutcome(err))
		return nil, err
	}

	metrics.RecordReservation("confirmed")
	logger.Info("booking confirmed",
		"booking_id", result.Booking.ID, "slot_id", slot.ID, "customer_id", req.CustomerID,
		"quantity", total, "free", result.DeductedFree, "paid", result.DeductedPaid)

	ref := result.Booking.Reference.String()
	s.send(ctx, notify.BookingConfirmed(req.CustomerID, ref, slot.EventName, start, total, result.DeductedFree, result.DeductedPaid))
	s.send(ctx, notify.MerchantNewBooking(slot.MerchantID, slot.ID, slot.EventName, start, total))

	return result, nil
}

// replay rebuilds the result of an earlier reservation made with the same
// idempotency key. No ledger effect is repeated.
func (s *service) replay(ctx context.Context, b *Booking, slotID int64) (*Result, error) {
	if b.SlotID != slotID {
		return nil, ErrIdempotencyKeyReused
	}
	items, err := s.repo.GetItems(ctx, s.db, b.ID)
	if err != nil {
		return nil, err
	}
	res := &Result{Booking: b, Items: items, Replayed: true}
	for _, it := range items {
		res.RequiredFree += int64(it.Quantity) * it.FreeCredits
		res.RequiredPaid += int64(it.Quantity) * it.PaidCredits
	}
	txn, err := s.ledger.BookingTransaction(ctx, s.db, b.ID)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		res.DeductedFree = -txn.DeltaFree
		res.DeductedPaid = -txn.DeltaPaid
		res.ShortfallFree = res.RequiredFree - res.DeductedFree
		res.PaidUsedForShortfall = max(0, res.DeductedPaid-res.RequiredPaid)
	}
	metrics.RecordReservation("replayed")
	return res, nil
}

func (s *service) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	var (
		result *CancelResult
		b      *Booking
		slot   *event.Slot
	)
	err := s.runner.WithTx(ctx, func(tx sqlx.ExtContext) error {
		var err error
		b, err = s.repo.LockByID(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}
		if req.CustomerID != 0 && b.CustomerID != req.CustomerID {
			return ErrForbidden
		}

		result = &CancelResult{BookingID: b.ID}
		if b.Status == StatusCancelled {
			result.Message = "Booking was already cancelled"
			return nil
		}
		if b.Status != StatusConfirmed && !req.Force {
			return ErrNotCancellable
		}

		slot, err = s.slots.GetSlot(ctx, tx, b.SlotID)
		if err != nil {
			return err
		}
		start, err := slot.StartsAt(s.clock.Location())
		if err != nil {
			return err
		}
		now := s.clock.Now()
		eligible := now.Before(start.Add(-s.cfg.CancellationPolicy)) || req.Force

		txn, err := s.ledger.BookingTransaction(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if txn == nil && !req.Force {
			return ErrNoTransactionFound
		}

		var prior *wallet.Transaction
		if txn != nil && eligible {
			if prior, err = s.ledger.RefundTransaction(ctx, tx, b.ID); err != nil {
				return err
			}
		}

		if txn != nil && eligible && prior == nil {
			refund, err := s.ledger.Refund(ctx, tx, txn, b.WalletID)
			if err != nil {
				return fmt.Errorf("refund booking %d: %w", b.ID, err)
			}
			result.Refunded = true
			result.Message = fmt.Sprintf("Booking cancelled. Refunded %d free and %d paid credits", refund.DeltaFree, refund.DeltaPaid)
		}

		if err := s.repo.MarkCancelled(ctx, tx, b.ID, now); err != nil {
			return err
		}

		items, err := s.repo.GetItems(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		result.RestoredSeats = SeatCount(items)

		switch {
		case result.Refunded:
		case prior != nil:
			result.Message = fmt.Sprintf("Booking cancelled. Credits were already refunded by transaction #%d", prior.ID)
		case txn == nil:
			result.Message = "Booking cancelled. No credit transaction existed, so nothing was refunded"
		default:
			result.Message = fmt.Sprintf("Booking cancelled without refund: cancellations within %s of the start are not refunded", policyText(s.cfg.CancellationPolicy))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return result, nil
	}

	metrics.RecordCancellation(result.Refunded)
	logger.Info("booking cancelled",
		"booking_id", b.ID, "slot_id", b.SlotID, "refunded", result.Refunded,
		"restored_seats", result.RestoredSeats, "force", req.Force)

	s.send(ctx, notify.BookingCancelled(b.CustomerID, b.Reference.String(), slot.EventName, result.Message))
	return result, nil
}

func (s *service) Get(ctx context.Context, customerID, bookingID int64) (*Booking, []Item, error) {
	b, err := s.repo.GetByID(ctx, s.db, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if customerID != 0 && b.CustomerID != customerID {
		return nil, nil, ErrBookingNotFound
	}
	items, err := s.repo.GetItems(ctx, s.db, b.ID)
	if err != nil {
		return nil, nil, err
	}
	return b, items, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Booking, error) {
	return s.repo.ListByCustomer(ctx, s.db, customerID, limit, offset)
}

func (s *service) ListForSlot(ctx context.Context, slotID int64, status Status) ([]Booking, error) {
	return s.repo.ListBySlot(ctx, s.db, slotID, status)
}

func (s *service) send(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(context.WithoutCancel(ctx), n); err != nil {
		logger.Warn("failed to queue notification", "kind", n.Kind, "recipient_id", n.RecipientID, "error", err)
	}
}

// splitQuantities drops zero lines and orders the rest by age group.
func splitQuantities(quantities map[string]int) ([]line, int, error) {
	lines := make([]line, 0, len(quantities))
	total := 0
	for group, q := range quantities {
		if q < 0 || q > MaxLineQuantity {
			return nil, 0, ErrInvalidQuantity
		}
		if q == 0 {
			continue
		}
		lines = append(lines, line{ageGroup: group, quantity: q})
		total += q
	}
	if total < 1 {
		return nil, 0, ErrInvalidQuantity
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ageGroup < lines[j].ageGroup })
	return lines, total, nil
}

func reservationOutcome(err error) string {
	switch {
	case errors.Is(err, event.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, wallet.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrSlotStarted):
		return "slot_started"
	default:
		return "failed"
	}
}

func policyText(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
