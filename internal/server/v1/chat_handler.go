package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/internal/gateway"
	"github.com/nulzo/llm-gateway/internal/server/validator"
	"github.com/nulzo/llm-gateway/pkg/api"
)

type ChatHandler struct {
	service gateway.Service
}

func NewChatHandler(service gateway.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}
	req.Source = api.SourceAPI

	if req.Stream {
		streamChan, err := h.service.StreamChat(c.Request.Context(), &req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		writeSSE(c, streamChan)
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeSSE relays a response stream as server-sent events, one chunk per
// data line, closing with [DONE].
func writeSSE(c *gin.Context, streamChan <-chan api.StreamResult) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		result, ok := <-streamChan
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if result.Err != nil {
			payload, _ := json.Marshal(gin.H{"error": result.Err.Error()})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
			return false
		}

		data, err := json.Marshal(result.Response)
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", data)
		return err == nil
	})
}
