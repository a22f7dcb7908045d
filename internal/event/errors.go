package event

import "creditslot/internal/apperr"

var (
	ErrSlotNotFound           = apperr.New(apperr.KindNotFound, "slot_not_found", "slot not found")
	ErrSlotFull               = apperr.New(apperr.KindCapacity, "slot_full", "slot does not have enough remaining capacity")
	ErrPriceNotFound          = apperr.New(apperr.KindValidation, "price_not_found", "no price configured for age group")
	ErrCannotDetermineStart   = apperr.New(apperr.KindState, "cannot_determine_start", "slot start time cannot be determined")
	ErrCannotDetermineSlotEnd = apperr.New(apperr.KindState, "cannot_determine_slot_end", "slot end time cannot be determined")
)
