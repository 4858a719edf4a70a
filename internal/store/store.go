package store

import (
	"context"
	"errors"

	"github.com/nulzo/llm-gateway/internal/store/model"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Conversations() ConversationRepository
	Usage() UsageRepository

	Close() error
}

// ConversationRepository persists conversations. Messages are append-only;
// the only destructive operation is whole-conversation delete.
type ConversationRepository interface {
	// Exists reports whether a conversation record is present.
	Exists(ctx context.Context, userID, conversationID string) (bool, error)

	// Create inserts an empty conversation record.
	Create(ctx context.Context, conv *model.Conversation) error

	// Get returns a conversation with its messages in insertion order,
	// or store.ErrNotFound.
	Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error)

	// AddMessages appends messages as one logical unit: a reader never
	// observes a partial batch.
	AddMessages(ctx context.Context, userID, conversationID string, msgs []model.ConversationMessage) error

	// List pages through a user's conversations, newest first. pageToken
	// is an opaque cursor from a previous call; empty starts at the top.
	List(ctx context.Context, userID string, limit int, pageToken string) ([]model.Conversation, string, error)

	// Delete removes a conversation and its messages. Returns false when
	// nothing existed.
	Delete(ctx context.Context, userID, conversationID string) (bool, error)
}

// UsageRepository persists usage records from the metrics pipeline.
type UsageRepository interface {
	Insert(ctx context.Context, rec *model.UsageRecord) error

	// GetRecent returns the last N records for a user.
	GetRecent(ctx context.Context, userID string, limit int) ([]model.UsageRecord, error)
}
