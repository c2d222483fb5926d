package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/service"
)

type ColdStartHandler struct {
	service *service.PlanningService
}

func NewColdStartHandler(service *service.PlanningService) *ColdStartHandler {
	return &ColdStartHandler{service: service}
}

// PredictNewProduct estimates demand for a product with no sales history.
func (h *ColdStartHandler) PredictNewProduct(c *gin.Context) {
	var query domain.NewProductQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid new-product query: "+err.Error())
		return
	}

	if query.FrameType == "" || query.LensType == "" || query.PriceBand == "" {
		errorResponse(c, http.StatusBadRequest, "frame_type, lens_type, and price_band are required")
		return
	}

	estimate, err := h.service.PredictNewProduct(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}
