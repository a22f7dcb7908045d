package booking

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

type BookingDetail struct {
	Booking *Booking `json:"booking"`
	Items   []Item   `json:"items"`
}

type AdminCancelRequest struct {
	Force bool `json:"force"`
}

// @Summary      Reserve tickets on a slot
// @Description  Debits the customer's wallet and creates a confirmed booking. A repeated Idempotency-Key returns the original booking.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        slotID path int true "Slot ID"
// @Param        Idempotency-Key header string false "Client-generated key"
// @Param        request body booking.ReserveRequest true "Quantities by age group"
// @Success      201 {object} booking.Result
// @Success      200 {object} booking.Result "Replayed"
// @Failure      402 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /slots/{slotID}/bookings [post]
func (h *Handler) Reserve(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	slotID, ok := idParam(c, "slotID")
	if !ok {
		return
	}

	var req ReserveRequest
	if !api.BindJSON(c, &req) {
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}
	req.CustomerID = userID
	req.SlotID = slotID

	res, err := h.service.Reserve(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// @Summary      Cancel my booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Success      200 {object} booking.CancelResult
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	bookingID, ok := idParam(c, "bookingID")
	if !ok {
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), CancelRequest{BookingID: bookingID, CustomerID: userID})
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Cancel any booking
// @Description  Admin-only. force skips the refund window and the state check.
// @Tags         admin,bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Param        request body booking.AdminCancelRequest false "Options"
// @Success      200 {object} booking.CancelResult
// @Router       /admin/bookings/{bookingID}/cancel [post]
func (h *Handler) AdminCancel(c *gin.Context) {
	bookingID, ok := idParam(c, "bookingID")
	if !ok {
		return
	}

	var req AdminCancelRequest
	if c.Request.ContentLength != 0 && !api.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), CancelRequest{BookingID: bookingID, Force: req.Force})
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      List my bookings
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} booking.Booking
// @Router       /bookings [get]
func (h *Handler) ListMine(c *gin.Context) {
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

	bookings, err := h.service.ListForCustomer(c.Request.Context(), userID, limit, offset)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// @Summary      Get a booking with its items
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Success      200 {object} booking.BookingDetail
// @Router       /bookings/{bookingID} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	bookingID, ok := idParam(c, "bookingID")
	if !ok {
		return
	}

	owner := userID
	if auth.IsAdmin(c) {
		owner = 0
	}
	b, items, err := h.service.Get(c.Request.Context(), owner, bookingID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, BookingDetail{Booking: b, Items: items})
}

// @Summary      List bookings on a slot
// @Tags         admin,bookings
// @Produce      json
// @Security     BearerAuth
// @Param        slotID path int true "Slot ID"
// @Param        status query string false "confirmed, cancelled or refunded"
// @Success      200 {array} booking.Booking
// @Router       /admin/slots/{slotID}/bookings [get]
func (h *Handler) ListBySlot(c *gin.Context) {
	slotID, ok := idParam(c, "slotID")
	if !ok {
		return
	}

	status := Status(c.Query("status"))
	switch status {
	case "", StatusConfirmed, StatusCancelled, StatusRefunded:
	default:
		api.BadRequest(c, "invalid status filter")
		return
	}

	bookings, err := h.service.ListForSlot(c.Request.Context(), slotID, status)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
