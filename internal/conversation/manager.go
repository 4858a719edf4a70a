// Package conversation orchestrates the read-merge-write cycle around the
// conversation store. The store owns the state; the manager only sequences
// access to it.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/pkg/api"
	"go.uber.org/zap"
)

type Manager struct {
	repo   store.Repository
	logger *zap.Logger

	// locks serializes appends per (userID, conversationID) so two
	// concurrent calls against the same conversation cannot interleave
	// their exchanges. Entries are never evicted; the map is bounded by
	// the number of live conversations a process touches.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(repo store.Repository, logger *zap.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(userID, conversationID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "/" + conversationID
	l, ok := m.locks[k]
	if !ok {
		l = &sync.Mutex{}
		m.locks[k] = l
	}
	return l
}

// Create resolves or creates a conversation identity. Calling it again with
// an existing id is a no-op besides reporting isNew=false.
func (m *Manager) Create(ctx context.Context, userID, conversationID string) (string, bool, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	exists, err := m.repo.Conversations().Exists(ctx, userID, conversationID)
	if err != nil {
		return "", false, api.ConversationStoreError("Exists", err)
	}
	if exists {
		return conversationID, false, nil
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		UserID:         userID,
		ConversationID: conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.repo.Conversations().Create(ctx, conv); err != nil {
		return "", false, api.ConversationStoreError("Create", err)
	}
	return conversationID, true, nil
}

// LoadHistory merges prior turns into the request. History loading is
// best-effort: a store failure logs and returns the request unmodified,
// never failing the call.
//
// Prior turns are prepended in their original order; a legacy prompt has
// already been normalized into a trailing user message by this point.
func (m *Manager) LoadHistory(ctx context.Context, req *api.ChatRequest) *api.ChatRequest {
	if req.ConversationID == "" || req.UserID == "" {
		return req
	}

	conv, err := m.repo.Conversations().Get(ctx, req.UserID, req.ConversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("history load failed, continuing without history",
				zap.String("conversation", req.ConversationID),
				zap.Error(err))
		}
		return req
	}

	enriched := req.Clone()
	history := make([]api.ChatMessage, 0, len(conv.Messages)+len(req.Messages))
	for _, msg := range conv.Messages {
		history = append(history, api.ChatMessage{
			Role:    api.Role(msg.Role),
			Content: msg.Content,
		})
	}
	enriched.Messages = append(history, enriched.Messages...)
	return enriched
}

// SaveExchange appends the user turn and the assistant turn as one logical
// unit, after the complete response is known. A failure is logged and
// swallowed; the caller already has its answer.
func (m *Manager) SaveExchange(ctx context.Context, req *api.ChatRequest, assistantContent string) {
	if req.ConversationID == "" || req.UserID == "" {
		return
	}

	userContent := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == api.RoleUser {
			userContent = req.Messages[i].Content
			break
		}
	}

	l := m.lockFor(req.UserID, req.ConversationID)
	l.Lock()
	defer l.Unlock()

	now := time.Now().UTC()
	msgs := []model.ConversationMessage{
		{Role: string(api.RoleUser), Content: userContent, CreatedAt: now},
		{Role: string(api.RoleAssistant), Content: assistantContent, CreatedAt: now},
	}
	if err := m.repo.Conversations().AddMessages(ctx, req.UserID, req.ConversationID, msgs); err != nil {
		m.logger.Error("failed to persist conversation exchange",
			zap.String("conversation", req.ConversationID),
			zap.Error(err))
	}
}

// Get returns a conversation with its messages.
func (m *Manager) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := m.repo.Conversations().Get(ctx, userID, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, api.ConversationStoreError("Get", err)
	}
	return conv, nil
}

// List pages through a user's conversations.
func (m *Manager) List(ctx context.Context, userID string, limit int, pageToken string) ([]model.Conversation, string, error) {
	convs, next, err := m.repo.Conversations().List(ctx, userID, limit, pageToken)
	if err != nil {
		return nil, "", api.ConversationStoreError("List", err)
	}
	return convs, next, nil
}

// Delete removes a whole conversation.
func (m *Manager) Delete(ctx context.Context, userID, conversationID string) (bool, error) {
	ok, err := m.repo.Conversations().Delete(ctx, userID, conversationID)
	if err != nil {
		return false, api.ConversationStoreError("Delete", err)
	}
	return ok, nil
}
