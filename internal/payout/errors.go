package payout

import "creditslot/internal/apperr"

var (
	ErrPayoutNotFound          = apperr.New(apperr.KindNotFound, "payout_not_found", "payout not found")
	ErrPayoutExists            = apperr.New(apperr.KindConflict, "payout_exists", "slot already has a payout")
	ErrInvalidPayoutTransition = apperr.New(apperr.KindState, "invalid_payout_transition", "payout cannot move to the requested status")
	ErrNoConfirmedBookings     = apperr.New(apperr.KindState, "no_confirmed_bookings", "slot has no confirmed bookings")
	ErrSlotNotEnded            = apperr.New(apperr.KindState, "slot_not_ended", "slot has not ended yet")
)
