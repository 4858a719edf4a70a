package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/internal/gateway"
)

type HealthHandler struct {
	service gateway.Service
}

func NewHealthHandler(service gateway.Service) *HealthHandler {
	return &HealthHandler{service: service}
}

// Health reports liveness plus a shallow readiness probe: whether the
// descriptor set resolves. A degraded registry does not fail the endpoint;
// orchestrators restart on non-200, and a config problem needs an operator,
// not a restart loop.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	models, err := h.service.GetReadyModels(ctx, "", "")
	if err != nil {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"readyModels": len(models),
	})
}
