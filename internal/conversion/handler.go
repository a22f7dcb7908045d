package conversion

import (
	"errors"
	"net/http"

	"creditslot/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ActiveRate godoc
// @Summary      Active conversion rate
// @Tags         conversions
// @Produce      json
// @Success      200  {object}  Conversion
// @Failure      404  {object}  api.ErrorResponse
// @Router       /conversions/active [get]
func (h *Handler) ActiveRate(c *gin.Context) {
	conv, err := h.service.CachedRate(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNoActiveConversion) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "no_active_conversion"})
			return
		}
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Create godoc
// @Summary      Publish a conversion rate
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      CreateRequest  true  "Rate"
// @Success      201   {object}  Conversion
// @Failure      400   {object}  api.ErrorResponse
// @Router       /admin/conversions [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	conv, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}
