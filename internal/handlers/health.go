package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"vlm-gateway/internal/health"
)

type HealthHandler struct {
	aggregator *health.Aggregator
}

func NewHealthHandler(aggregator *health.Aggregator) *HealthHandler {
	return &HealthHandler{aggregator: aggregator}
}

// Health godoc
// @Summary     Health check
// @Description Reports gateway liveness and the state of the default backend.
// @Description Backend failures are reported in the body; the endpoint itself always answers 200.
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.aggregator.Check(c.Request.Context()))
}
