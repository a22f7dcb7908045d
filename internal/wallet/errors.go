package wallet

import (
	"fmt"

	"creditslot/internal/apperr"
)

var (
	ErrWalletNotFound      = apperr.New(apperr.KindNotFound, "wallet_not_found", "wallet not found")
	ErrInsufficientCredits = apperr.New(apperr.KindCredit, "insufficient_credits", "insufficient credits")
	ErrInvalidAmount       = apperr.New(apperr.KindValidation, "invalid_amount", "credit amounts must be non-negative and quantity at least 1")
	ErrInvalidGrant        = apperr.New(apperr.KindValidation, "invalid_grant", "grant must be bonus or purchase with a positive amount and validity")
)

// InsufficientCreditsError carries what the caller needs to offer paid
// credits for the free shortfall in the same request.
type InsufficientCreditsError struct {
	ShortfallFree   int64
	PaidToFreeRatio int64
	RequiredPaid    int64
	AvailablePaid   int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: free shortfall %d, needs %d paid credits (ratio %d), %d available",
		e.ShortfallFree, e.RequiredPaid, e.PaidToFreeRatio, e.AvailablePaid)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

func (e *InsufficientCreditsError) ErrorKind() apperr.Kind { return apperr.KindCredit }

func (e *InsufficientCreditsError) ErrorCode() string { return ErrInsufficientCredits.Code }

func (e *InsufficientCreditsError) Details() map[string]any {
	return map[string]any{
		"shortfall_free":     e.ShortfallFree,
		"paid_to_free_ratio": e.PaidToFreeRatio,
		"required_paid":      e.RequiredPaid,
		"available_paid":     e.AvailablePaid,
	}
}
