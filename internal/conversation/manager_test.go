package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/nulzo/llm-gateway/internal/store/memory"
	"github.com/nulzo/llm-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager() *Manager {
	return NewManager(memory.NewRepository(), zap.NewNop())
}

func TestCreateGeneratesID(t *testing.T) {
	m := newTestManager()

	id, isNew, err := m.Create(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, id)
}

func TestCreateIsIdempotent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	id, isNew, err := m.Create(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "conv-1", id)

	id, isNew, err = m.Create(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "conv-1", id)
}

func TestSaveExchangeAndLoadHistory(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	_, _, err := m.Create(ctx, "u1", "conv-1")
	require.NoError(t, err)

	first := &api.ChatRequest{
		UserID:         "u1",
		ConversationID: "conv-1",
		Messages:       []api.ChatMessage{{Role: api.RoleUser, Content: "What is Go?"}},
	}
	m.SaveExchange(ctx, first, "A programming language.")

	second := &api.ChatRequest{
		UserID:         "u1",
		ConversationID: "conv-1",
		Messages:       []api.ChatMessage{{Role: api.RoleUser, Content: "Who made it?"}},
	}
	merged := m.LoadHistory(ctx, second)

	require.Len(t, merged.Messages, 3)
	assert.Equal(t, "What is Go?", merged.Messages[0].Content)
	assert.Equal(t, api.RoleAssistant, merged.Messages[1].Role)
	assert.Equal(t, "A programming language.", merged.Messages[1].Content)
	assert.Equal(t, "Who made it?", merged.Messages[2].Content)

	// the caller's request is never mutated by the merge
	require.Len(t, second.Messages, 1)
}

func TestLoadHistoryMissingConversationIsBestEffort(t *testing.T) {
	m := newTestManager()

	req := &api.ChatRequest{
		UserID:         "u1",
		ConversationID: "nope",
		Messages:       []api.ChatMessage{{Role: api.RoleUser, Content: "hi"}},
	}
	got := m.LoadHistory(context.Background(), req)
	assert.Same(t, req, got)
}

func TestSaveExchangeUsesLastUserMessage(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	_, _, err := m.Create(ctx, "u1", "c")
	require.NoError(t, err)

	req := &api.ChatRequest{
		UserID:         "u1",
		ConversationID: "c",
		Messages: []api.ChatMessage{
			{Role: api.RoleUser, Content: "old turn"},
			{Role: api.RoleAssistant, Content: "old answer"},
			{Role: api.RoleUser, Content: "new turn"},
		},
	}
	m.SaveExchange(ctx, req, "new answer")

	conv, err := m.Get(ctx, "u1", "c")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "new turn", conv.Messages[0].Content)
	assert.Equal(t, "new answer", conv.Messages[1].Content)
}

func TestConcurrentSaveExchangeKeepsPairsAdjacent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	_, _, err := m.Create(ctx, "u1", "c")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			req := &api.ChatRequest{
				UserID:         "u1",
				ConversationID: "c",
				Messages:       []api.ChatMessage{{Role: api.RoleUser, Content: "q"}},
			}
			m.SaveExchange(ctx, req, "a")
		}()
	}
	wg.Wait()

	conv, err := m.Get(ctx, "u1", "c")
	require.NoError(t, err)
	require.Len(t, conv.Messages, writers*2)
	for i := 0; i < len(conv.Messages); i += 2 {
		assert.Equal(t, "user", conv.Messages[i].Role)
		assert.Equal(t, "assistant", conv.Messages[i+1].Role)
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	_, _, err := m.Create(ctx, "u1", "c")
	require.NoError(t, err)

	ok, err := m.Delete(ctx, "u1", "c")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Delete(ctx, "u1", "c")
	require.NoError(t, err)
	assert.False(t, ok)
}
