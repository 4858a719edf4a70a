// Seed populates a local gateway database with a sample user, a short
// conversation and a few usage records so the HTTP API has something to
// return during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/internal/store/sqlite"
)

func main() {
	dsn := flag.String("dsn", "file:gateway.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000", "sqlite DSN")
	userID := flag.String("user", "dev-user", "user id to seed conversations under")
	flag.Parse()

	repo, err := sqlite.NewSQLiteStorage(*dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = repo.Close() }()

	ctx := context.Background()
	now := time.Now().UTC()

	conversationID := uuid.NewString()
	conv := &model.Conversation{
		UserID:         *userID,
		ConversationID: conversationID,
		Title:          "Seeded conversation",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Conversations().Create(ctx, conv); err != nil {
		log.Fatalf("create conversation: %v", err)
	}

	msgs := []model.ConversationMessage{
		{UserID: *userID, ConversationID: conversationID, Role: "user", Content: "What is the capital of France?", CreatedAt: now},
		{UserID: *userID, ConversationID: conversationID, Role: "assistant", Content: "The capital of France is Paris.", CreatedAt: now.Add(time.Second)},
	}
	if err := repo.Conversations().AddMessages(ctx, *userID, conversationID, msgs); err != nil {
		log.Fatalf("add messages: %v", err)
	}
	fmt.Printf("Created conversation %s for user %s\n", conversationID, *userID)

	models := []struct {
		id     string
		in, out int
	}{
		{"anthropic.claude-3-sonnet-20240229-v1:0", 42, 180},
		{"anthropic.claude-3-haiku-20240307-v1:0", 18, 64},
		{"meta.llama3-70b-instruct-v1:0", 35, 120},
	}
	for i, m := range models {
		start := now.Add(time.Duration(-i) * time.Minute)
		end := start.Add(900 * time.Millisecond)
		rec := &model.UsageRecord{
			RequestID:      uuid.NewString(),
			UserID:         *userID,
			ConversationID: conversationID,
			ModelID:        m.id,
			Provider:       "bedrock",
			TokensIn:       m.in,
			TokensOut:      m.out,
			StartTime:      start,
			EndTime:        end,
			DurationMS:     end.Sub(start).Milliseconds(),
			Source:         "api",
			Success:        true,
		}
		if err := repo.Usage().Insert(ctx, rec); err != nil {
			log.Fatalf("insert usage record: %v", err)
		}
	}
	fmt.Printf("Inserted %d usage records\n", len(models))
}
