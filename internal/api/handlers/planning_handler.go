package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/service"
	"github.com/optilens/demand-engine/pkg/logger"
)

type PlanningHandler struct {
	service *service.PlanningService
}

func NewPlanningHandler(service *service.PlanningService) *PlanningHandler {
	return &PlanningHandler{service: service}
}

// RunScenario evaluates a what-if request against the committed baseline.
func (h *PlanningHandler) RunScenario(c *gin.Context) {
	var req domain.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid scenario request: "+err.Error())
		return
	}

	if req.DemandMultiplier < 0 || req.PriceMultiplier < 0 {
		errorResponse(c, http.StatusBadRequest, "multipliers must be non-negative")
		return
	}
	if req.CapacityChangePct < -100 {
		errorResponse(c, http.StatusBadRequest, "capacity_change_pct cannot cut capacity below zero")
		return
	}

	result, err := h.service.RunScenario(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCapacityPlan returns the persisted capacity-optimized production plan.
func (h *PlanningHandler) GetCapacityPlan(c *gin.Context) {
	plan, err := h.service.CapacityPlan(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetConfidence returns per-(product, segment) forecast confidence.
func (h *PlanningHandler) GetConfidence(c *gin.Context) {
	summaries, err := h.service.ConfidenceSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func respondError(c *gin.Context, err error) {
	if domain.IsNotFound(err) {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	errorResponse(c, http.StatusInternalServerError, err.Error())
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	logger.Log.Error().Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
}
