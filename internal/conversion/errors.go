package conversion

import "creditslot/internal/apperr"

var (
	ErrNoActiveConversion = apperr.New(apperr.KindCredit, "no_active_conversion", "no active conversion rate")
	ErrInvalidConversion  = apperr.New(apperr.KindCredit, "invalid_conversion", "conversion rate must be positive")
	ErrInvalidRate        = apperr.New(apperr.KindValidation, "invalid_rate", "conversion rate or validity window is invalid")
)
