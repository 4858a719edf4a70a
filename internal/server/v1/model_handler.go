package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/internal/gateway"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListReady returns the models currently invocable, optionally filtered by
// provider and vendor query parameters.
func (h *ModelHandler) ListReady(c *gin.Context) {
	models, err := h.service.GetReadyModels(c.Request.Context(), c.Query("provider"), c.Query("vendor"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
