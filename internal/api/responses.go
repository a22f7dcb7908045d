package api

import (
	"net/http"

	"creditslot/internal/apperr"
	"creditslot/internal/logger"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string         `json:"error" example:"something went wrong"`
	Code    string         `json:"code,omitempty" example:"slot_full"`
	Details map[string]any `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindCapacity, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindCredit:
		return http.StatusPaymentRequired
	case apperr.KindState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

// RespondError writes err as JSON. Infrastructure failures are logged and
// hidden behind a generic message; the caller may retry them.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusServiceUnavailable {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, ErrorResponse{Error: "temporarily unavailable, please retry", Code: apperr.CodeOf(err)})
		return
	}
	c.JSON(status, ErrorResponse{
		Error:   err.Error(),
		Code:    apperr.CodeOf(err),
		Details: apperr.DetailsOf(err),
	})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "invalid_request"})
}
