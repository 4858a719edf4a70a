// Package meta implements the completion-style vendor wire contract: the
// turn history is flattened into one prompt string with role markers and a
// trailing assistant cue.
package meta

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
)

func init() {
	llm.Register("meta", &Adapter{})
}

type Adapter struct{}

func (a *Adapter) Vendor() string { return "meta" }

type request struct {
	Prompt      string   `json:"prompt"`
	MaxGenLen   int      `json:"max_gen_len,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

type response struct {
	Generation           string `json:"generation"`
	PromptTokenCount     *int   `json:"prompt_token_count,omitempty"`
	GenerationTokenCount *int   `json:"generation_token_count,omitempty"`
	StopReason           string `json:"stop_reason,omitempty"`
}

// ValidateRequest only gates on recognized roles; the completion format
// tolerates any turn ordering since everything collapses into one string.
func (a *Adapter) ValidateRequest(req *api.ChatRequest) error {
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleUser, api.RoleAssistant, api.RoleSystem:
		default:
			return api.ValidationError(fmt.Sprintf("unsupported role %q", m.Role))
		}
	}
	return nil
}

// FormatRequest flattens the history. System content becomes a leading
// <<SYS>> block, each turn gets a role marker, and the prompt ends with an
// assistant cue so the model continues the conversation.
func (a *Adapter) FormatRequest(req *api.ChatRequest, model *registry.ModelConfig) ([]byte, error) {
	if err := a.ValidateRequest(req); err != nil {
		return nil, err
	}

	var b strings.Builder

	system := req.SystemPrompt
	for _, m := range req.Messages {
		if m.Role == api.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
		}
	}
	if system != "" {
		b.WriteString("<<SYS>>\n")
		b.WriteString(system)
		b.WriteString("\n<</SYS>>\n\n")
	}

	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleUser:
			b.WriteString("User: ")
		case api.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")

	body := request{
		Prompt:      b.String(),
		MaxGenLen:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if body.MaxGenLen == 0 {
		body.MaxGenLen = model.Defaults.MaxTokens
	}
	if body.MaxGenLen == 0 {
		body.MaxGenLen = a.DefaultSettings().MaxTokens
	}

	return json.Marshal(body)
}

func (a *Adapter) FormatResponse(raw []byte, modelID string) (*api.ChatResponse, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, api.InternalError("decoding meta response", err)
	}

	out := &api.ChatResponse{
		Content: strings.TrimLeft(resp.Generation, " "),
		Metadata: api.ResponseMetadata{
			ModelID: modelID,
			Vendor:  "meta",
		},
	}
	if resp.PromptTokenCount != nil {
		out.Metadata.Usage.PromptTokens = *resp.PromptTokenCount
	}
	if resp.GenerationTokenCount != nil {
		out.Metadata.Usage.CompletionTokens = *resp.GenerationTokenCount
	}
	out.Metadata.Usage.TotalTokens = out.Metadata.Usage.PromptTokens + out.Metadata.Usage.CompletionTokens
	return out, nil
}

// ProcessStreamChunk handles the generation-chunk shape: text in every
// chunk, token counts and a stop_reason only in the last one. Malformed
// chunks are skipped.
func (a *Adapter) ProcessStreamChunk(raw []byte, modelID string) (*llm.Chunk, error) {
	var ev response
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, nil
	}
	if ev.Generation == "" && ev.StopReason == "" && ev.PromptTokenCount == nil && ev.GenerationTokenCount == nil {
		return nil, nil
	}

	chunk := &llm.Chunk{
		Content:          ev.Generation,
		PromptTokens:     ev.PromptTokenCount,
		CompletionTokens: ev.GenerationTokenCount,
		Final:            ev.StopReason != "",
	}
	return chunk, nil
}

func (a *Adapter) DefaultSettings() registry.ModelDefaults {
	return registry.ModelDefaults{MaxTokens: 2048, Temperature: 0.5}
}
