package payout

import (
	"net/http"
	"strconv"

	"creditslot/internal/api"
	"creditslot/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type ReleaseResponse struct {
	Released int `json:"released"`
}

// @Summary      Payout for a slot
// @Description  Merchants see their own payouts without the admin breakdown.
// @Tags         payouts
// @Produce      json
// @Security     BearerAuth
// @Param        slotID path int true "Slot ID"
// @Success      200 {object} payout.Payout
// @Router       /slots/{slotID}/payout [get]
func (h *Handler) GetForSlot(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	slotID, ok := idParam(c, "slotID")
	if !ok {
		return
	}

	p, err := h.service.GetForSlot(c.Request.Context(), slotID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	if auth.IsAdmin(c) {
		c.JSON(http.StatusOK, p)
		return
	}
	if p.MerchantID != userID {
		api.RespondError(c, ErrPayoutNotFound)
		return
	}
	c.JSON(http.StatusOK, p.MerchantView())
}

// @Summary      My payouts
// @Tags         payouts
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "locked, pending or paid"
// @Success      200 {array} payout.Payout
// @Router       /merchant/payouts [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	f.MerchantID = userID

	payouts, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out := make([]*Payout, len(payouts))
	for i := range payouts {
		out[i] = payouts[i].MerchantView()
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      List payouts
// @Tags         admin,payouts
// @Produce      json
// @Security     BearerAuth
// @Param        merchant_id query int false "Merchant ID"
// @Param        status query string false "locked, pending or paid"
// @Success      200 {array} payout.Payout
// @Router       /admin/payouts [get]
func (h *Handler) List(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	if raw := c.Query("merchant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(c, "invalid merchant_id")
			return
		}
		f.MerchantID = id
	}

	payouts, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payouts)
}

// @Summary      Calculate a slot payout now
// @Tags         admin,payouts
// @Produce      json
// @Security     BearerAuth
// @Param        slotID path int true "Slot ID"
// @Success      201 {object} payout.Payout
// @Router       /admin/slots/{slotID}/payout [post]
func (h *Handler) Calculate(c *gin.Context) {
	slotID, ok := idParam(c, "slotID")
	if !ok {
		return
	}

	p, err := h.service.CalculateForSlot(c.Request.Context(), slotID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary      Run the payout scan
// @Tags         admin,payouts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} payout.ScanReport
// @Router       /admin/payouts/scan [post]
func (h *Handler) Scan(c *gin.Context) {
	report, err := h.service.ScanAndCalculate(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary      Release due payouts
// @Tags         admin,payouts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} payout.ReleaseResponse
// @Router       /admin/payouts/release [post]
func (h *Handler) Release(c *gin.Context) {
	n, err := h.service.ReleaseDue(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReleaseResponse{Released: n})
}

// @Summary      Mark a payout paid
// @Tags         admin,payouts
// @Produce      json
// @Security     BearerAuth
// @Param        payoutID path int true "Payout ID"
// @Success      200 {object} payout.Payout
// @Router       /admin/payouts/{payoutID}/paid [post]
func (h *Handler) MarkPaid(c *gin.Context) {
	payoutID, ok := idParam(c, "payoutID")
	if !ok {
		return
	}

	p, err := h.service.MarkPaid(c.Request.Context(), payoutID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func filterFromQuery(c *gin.Context) (Filter, bool) {
	f := Filter{Status: Status(c.Query("status"))}
	switch f.Status {
	case "", StatusLocked, StatusPending, StatusPaid:
	default:
		api.BadRequest(c, "invalid status filter")
		return f, false
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
