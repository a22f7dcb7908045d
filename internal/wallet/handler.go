package wallet

import (
	"net/http"
	"strconv"

	"creditslot/internal/api"
	"creditslot/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// @Summary      Wallet balance
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} wallet.Wallet
// @Router       /wallet [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	w, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// @Summary      Wallet transaction history
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Page size" default(50)
// @Param        offset query int false "Offset" default(0)
// @Success      200 {array} wallet.Transaction
// @Router       /wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := h.ledger.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// @Summary      Grant credits
// @Description  Admin-only: record a bonus or purchase grant with an expiry
// @Tags         admin,wallet
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body wallet.GrantRequest true "Grant payload"
// @Success      201 {object} wallet.Grant
// @Router       /admin/wallets/grants [post]
func (h *Handler) Grant(c *gin.Context) {
	var req GrantRequest
	if !api.BindJSON(c, &req) {
		return
	}

	g, err := h.ledger.Grant(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// @Summary      Audit a wallet
// @Description  Admin-only: recompute balances from the ledger and report drift
// @Tags         admin,wallet
// @Produce      json
// @Security     BearerAuth
// @Param        walletID path int true "Wallet ID"
// @Success      200 {object} wallet.AuditReport
// @Router       /admin/wallets/{walletID}/audit [get]
func (h *Handler) Audit(c *gin.Context) {
	walletID, err := strconv.ParseInt(c.Param("walletID"), 10, 64)
	if err != nil || walletID <= 0 {
		api.BadRequest(c, "invalid wallet ID")
		return
	}

	report, err := h.ledger.Audit(c.Request.Context(), walletID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
