package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/internal/gateway"
	"github.com/nulzo/llm-gateway/internal/server/validator"
	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/pkg/api"
)

type ConversationHandler struct {
	service gateway.Service
}

func NewConversationHandler(service gateway.Service) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// userID comes from a header until an auth layer fronts this service.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

type createConversationRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		_ = c.Error(api.ValidationError("X-User-ID header is required"))
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	id, isNew, err := h.service.Conversations().Create(c.Request.Context(), uid, req.ConversationID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"conversationId": id, "isNew": isNew})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		_ = c.Error(api.ValidationError("X-User-ID header is required"))
		return
	}

	conv, err := h.service.Conversations().Get(c.Request.Context(), uid, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		_ = c.Error(api.ValidationError("X-User-ID header is required"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	convs, next, err := h.service.Conversations().List(c.Request.Context(), uid, limit, c.Query("pageToken"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := gin.H{"conversations": convs}
	if next != "" {
		resp["nextToken"] = next
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		_ = c.Error(api.ValidationError("X-User-ID header is required"))
		return
	}

	deleted, err := h.service.Conversations().Delete(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Chat is the conversation-aware chat entry point.
func (h *ConversationHandler) Chat(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		_ = c.Error(api.ValidationError("X-User-ID header is required"))
		return
	}

	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}
	req.UserID = uid
	req.ConversationID = c.Param("id")
	req.Source = api.SourceAPI

	if req.Stream {
		streamChan, err := h.service.ConversationStreamChat(c.Request.Context(), &req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		writeSSE(c, streamChan)
		return
	}

	resp, err := h.service.ConversationChat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
