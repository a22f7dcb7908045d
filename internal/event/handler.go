package event

import (
	"net/http"
	"strconv"

	"creditslot/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// @Summary      Get a slot
// @Tags         slots
// @Produce      json
// @Param        slotID path int true "Slot ID"
// @Success      200 {object} event.Slot
// @Failure      404 {object} api.ErrorResponse
// @Router       /slots/{slotID} [get]
func (h *Handler) GetSlot(c *gin.Context) {
	id, ok := slotIDParam(c)
	if !ok {
		return
	}

	slot, err := h.service.GetSlot(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// @Summary      Slot prices
// @Tags         slots
// @Produce      json
// @Param        slotID path int true "Slot ID"
// @Success      200 {array} event.Price
// @Router       /slots/{slotID}/prices [get]
func (h *Handler) GetPrices(c *gin.Context) {
	id, ok := slotIDParam(c)
	if !ok {
		return
	}

	prices, err := h.service.GetPrices(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	if prices == nil {
		prices = []Price{}
	}
	c.JSON(http.StatusOK, prices)
}

// @Summary      Slot availability
// @Tags         slots
// @Produce      json
// @Param        slotID path int true "Slot ID"
// @Success      200 {object} event.Availability
// @Router       /slots/{slotID}/availability [get]
func (h *Handler) Availability(c *gin.Context) {
	id, ok := slotIDParam(c)
	if !ok {
		return
	}

	a, err := h.service.Availability(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func slotIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("slotID"), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(c, "invalid slot ID")
		return 0, false
	}
	return id, true
}
