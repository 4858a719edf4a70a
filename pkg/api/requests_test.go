package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{"valid with messages", ChatRequest{Provider: "bedrock", ModelID: "m", Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}}, false},
		{"valid with prompt", ChatRequest{Provider: "bedrock", ModelID: "m", Prompt: "x"}, false},
		{"valid with conversation", ChatRequest{Provider: "bedrock", ModelID: "m", ConversationID: "c", UserID: "u"}, false},
		{"missing model", ChatRequest{Provider: "bedrock", Prompt: "x"}, true},
		{"missing provider", ChatRequest{ModelID: "m", Prompt: "x"}, true},
		{"no input at all", ChatRequest{Provider: "bedrock", ModelID: "m"}, true},
		{"conversation without user", ChatRequest{Provider: "bedrock", ModelID: "m", ConversationID: "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Equal(t, CodeValidation, CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeFoldsPromptIntoMessages(t *testing.T) {
	req := ChatRequest{
		Provider: "bedrock",
		ModelID:  "m",
		Prompt:   "legacy",
		Messages: []ChatMessage{{Role: RoleUser, Content: "first"}},
	}
	req.Normalize()

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "first", req.Messages[0].Content)
	assert.Equal(t, "legacy", req.Messages[1].Content)
	assert.Equal(t, RoleUser, req.Messages[1].Role)
	assert.Empty(t, req.Prompt)
}

func TestNormalizeDefaults(t *testing.T) {
	req := ChatRequest{Provider: "bedrock", ModelID: "m", Prompt: "x"}
	req.Normalize()

	assert.Equal(t, "text-to-text", req.Modality)
	assert.Equal(t, 1, req.TokenGrouping)
	assert.Equal(t, SourceAPI, req.Source)

	req = ChatRequest{Provider: "bedrock", ModelID: "m", Prompt: "x", Modality: "text", TokenGrouping: -3}
	req.Normalize()
	assert.Equal(t, "text-to-text", req.Modality)
	assert.Equal(t, 1, req.TokenGrouping)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	req := ChatRequest{Provider: "bedrock", ModelID: "m", Prompt: "once"}
	req.Normalize()
	req.Normalize()
	require.Len(t, req.Messages, 1)
}

func TestCloneIsolatesMessages(t *testing.T) {
	req := &ChatRequest{
		Provider: "bedrock",
		ModelID:  "m",
		Messages: []ChatMessage{{Role: RoleUser, Content: "orig"}},
	}
	cp := req.Clone()
	cp.Messages[0].Content = "changed"
	cp.Messages = append(cp.Messages, ChatMessage{Role: RoleAssistant, Content: "extra"})

	assert.Equal(t, "orig", req.Messages[0].Content)
	require.Len(t, req.Messages, 1)
}
