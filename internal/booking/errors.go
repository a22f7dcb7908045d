package booking

import "creditslot/internal/apperr"

// MaxLineQuantity caps the tickets on one age-group line of a reservation.
const MaxLineQuantity = 1000

var (
	ErrInvalidQuantity      = apperr.New(apperr.KindValidation, "invalid_quantity", "each line must hold 0 to 1000 tickets and the total must be at least 1")
	ErrBookingNotFound      = apperr.New(apperr.KindNotFound, "booking_not_found", "booking not found")
	ErrSlotStarted          = apperr.New(apperr.KindState, "slot_started", "slot has already started")
	ErrNotCancellable       = apperr.New(apperr.KindState, "not_cancellable", "booking is not in a cancellable state")
	ErrNoTransactionFound   = apperr.New(apperr.KindState, "no_transaction_found", "no credit transaction found for booking")
	ErrForbidden            = apperr.New(apperr.KindForbidden, "forbidden", "booking belongs to another customer")
	ErrIdempotencyKeyReused = apperr.New(apperr.KindConflict, "idempotency_key_reused", "idempotency key was already used for a different slot")
)
