package model

import "time"

// Conversation is a durable, append-only sequence of turns scoped to one
// user. Identity is the (UserID, ConversationID) pair.
type Conversation struct {
	UserID         string                `db:"user_id" json:"userId"`
	ConversationID string                `db:"conversation_id" json:"conversationId"`
	Messages       []ConversationMessage `db:"-" json:"messages"`
	Title          string                `db:"title" json:"title,omitempty"`
	CreatedAt      time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updatedAt"`
}

// ConversationMessage is one persisted turn. Rows are never edited or
// individually deleted; only whole conversations are removed.
type ConversationMessage struct {
	ID             int64     `db:"id" json:"-"`
	UserID         string    `db:"user_id" json:"-"`
	ConversationID string    `db:"conversation_id" json:"-"`
	Role           string    `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	Metadata       string    `db:"metadata" json:"metadata,omitempty"` // JSON blob
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
}

// UsageRecord captures one completed or failed exchange for the metrics
// pipeline.
type UsageRecord struct {
	RequestID      string    `db:"request_id" json:"requestId"`
	UserID         string    `db:"user_id" json:"userId"`
	ConversationID string    `db:"conversation_id" json:"conversationId,omitempty"`
	ModelID        string    `db:"model_id" json:"modelId"`
	Provider       string    `db:"provider" json:"provider"`
	TokensIn       int       `db:"tokens_in" json:"tokensIn"`
	TokensOut      int       `db:"tokens_out" json:"tokensOut"`
	StartTime      time.Time `db:"start_time" json:"startTime"`
	EndTime        time.Time `db:"end_time" json:"endTime"`
	DurationMS     int64     `db:"duration_ms" json:"duration"`
	Source         string    `db:"source" json:"source"`
	Success        bool      `db:"success" json:"success"`
	Error          string    `db:"error" json:"error,omitempty"`
}
