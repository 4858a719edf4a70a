package meta

import (
	"encoding/json"
	"testing"

	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRequestFlattensHistory(t *testing.T) {
	a := &Adapter{}
	req := &api.ChatRequest{
		SystemPrompt: "You are terse.",
		Messages: []api.ChatMessage{
			{Role: api.RoleUser, Content: "What is 2+2?"},
			{Role: api.RoleAssistant, Content: "4"},
			{Role: api.RoleUser, Content: "And 3+3?"},
		},
		MaxTokens: 64,
	}

	raw, err := a.FormatRequest(req, &registry.ModelConfig{})
	require.NoError(t, err)

	var body struct {
		Prompt    string `json:"prompt"`
		MaxGenLen int    `json:"max_gen_len"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))

	want := "<<SYS>>\nYou are terse.\n<</SYS>>\n\n" +
		"User: What is 2+2?\nAssistant: 4\nUser: And 3+3?\nAssistant:"
	assert.Equal(t, want, body.Prompt)
	assert.Equal(t, 64, body.MaxGenLen)
}

func TestFormatRequestSystemMessagesJoinBlock(t *testing.T) {
	a := &Adapter{}
	req := &api.ChatRequest{
		Messages: []api.ChatMessage{
			{Role: api.RoleSystem, Content: "rule one"},
			{Role: api.RoleUser, Content: "hi"},
		},
	}

	raw, err := a.FormatRequest(req, &registry.ModelConfig{Defaults: registry.ModelDefaults{MaxTokens: 128}})
	require.NoError(t, err)

	var body struct {
		Prompt    string `json:"prompt"`
		MaxGenLen int    `json:"max_gen_len"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body.Prompt, "<<SYS>>\nrule one\n<</SYS>>")
	assert.Equal(t, 128, body.MaxGenLen)
}

func TestValidateRequestTolerantOrdering(t *testing.T) {
	a := &Adapter{}

	// completion format accepts consecutive same-role turns
	req := &api.ChatRequest{Messages: []api.ChatMessage{
		{Role: api.RoleUser, Content: "a"},
		{Role: api.RoleUser, Content: "b"},
	}}
	assert.NoError(t, a.ValidateRequest(req))

	req.Messages = append(req.Messages, api.ChatMessage{Role: "function", Content: "x"})
	assert.Equal(t, api.CodeValidation, api.CodeOf(a.ValidateRequest(req)))
}

func TestFormatResponse(t *testing.T) {
	a := &Adapter{}
	raw := []byte(`{"generation": " The answer is 6.", "prompt_token_count": 20, "generation_token_count": 6, "stop_reason": "stop"}`)

	resp, err := a.FormatResponse(raw, "meta.llama3-70b-instruct-v1:0")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 6.", resp.Content)
	assert.Equal(t, "meta", resp.Metadata.Vendor)
	assert.Equal(t, 20, resp.Metadata.Usage.PromptTokens)
	assert.Equal(t, 6, resp.Metadata.Usage.CompletionTokens)
	assert.Equal(t, 26, resp.Metadata.Usage.TotalTokens)
}

func TestProcessStreamChunk(t *testing.T) {
	a := &Adapter{}

	chunk, err := a.ProcessStreamChunk([]byte(`{"generation": "Hel"}`), "m")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "Hel", chunk.Content)
	assert.False(t, chunk.Final)

	chunk, err = a.ProcessStreamChunk([]byte(`{"generation": "lo", "prompt_token_count": 5, "generation_token_count": 2, "stop_reason": "stop"}`), "m")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "lo", chunk.Content)
	assert.True(t, chunk.Final)
	require.NotNil(t, chunk.PromptTokens)
	assert.Equal(t, 5, *chunk.PromptTokens)

	// empty and malformed chunks are skipped
	chunk, err = a.ProcessStreamChunk([]byte(`{}`), "m")
	require.NoError(t, err)
	assert.Nil(t, chunk)

	chunk, err = a.ProcessStreamChunk([]byte(`garbage`), "m")
	require.NoError(t, err)
	assert.Nil(t, chunk)
}
