// Package anthropic implements the chat-style vendor wire contract: a
// messages array with an extracted top-level system field, and an event
// stream of typed deltas.
package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
)

func init() {
	llm.Register("anthropic", &Adapter{})
}

const wireVersion = "bedrock-2023-05-31"

type Adapter struct{}

func (a *Adapter) Vendor() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	StopSequences    []string  `json:"stop_sequences,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type response struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage usage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *usage `json:"usage,omitempty"`
}

// ValidateRequest enforces strict user/assistant alternation once system
// messages are set aside. A lone message is always valid; two consecutive
// same-role messages are rejected before any transport call.
func (a *Adapter) ValidateRequest(req *api.ChatRequest) error {
	var prev api.Role
	for _, m := range req.Messages {
		if m.Role == api.RoleSystem {
			continue
		}
		if m.Role != api.RoleUser && m.Role != api.RoleAssistant {
			return api.ValidationError(fmt.Sprintf("unsupported role %q", m.Role))
		}
		if m.Role == prev {
			return api.RoleAlternationError(
				fmt.Sprintf("two consecutive %q messages; turns must alternate", m.Role))
		}
		prev = m.Role
	}
	return nil
}

func (a *Adapter) FormatRequest(req *api.ChatRequest, model *registry.ModelConfig) ([]byte, error) {
	if err := a.ValidateRequest(req); err != nil {
		return nil, err
	}

	body := request{
		AnthropicVersion: wireVersion,
		MaxTokens:        req.MaxTokens,
		System:           req.SystemPrompt,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		StopSequences:    req.StopSequences,
	}

	for _, m := range req.Messages {
		if m.Role == api.RoleSystem {
			// System turns are extracted into the top-level field.
			if body.System != "" {
				body.System += "\n"
			}
			body.System += m.Content
			continue
		}
		body.Messages = append(body.Messages, message{Role: string(m.Role), Content: m.Content})
	}

	if body.MaxTokens == 0 {
		body.MaxTokens = model.Defaults.MaxTokens
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = a.DefaultSettings().MaxTokens
	}

	return json.Marshal(body)
}

func (a *Adapter) FormatResponse(raw []byte, modelID string) (*api.ChatResponse, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, api.InternalError("decoding anthropic response", err)
	}

	text := ""
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	return &api.ChatResponse{
		Content: text,
		Metadata: api.ResponseMetadata{
			ModelID: modelID,
			Vendor:  "anthropic",
			Usage: api.Usage{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			},
		},
	}, nil
}

// ProcessStreamChunk maps the vendor's typed event stream onto semantic
// chunks. Input tokens arrive in message_start, output tokens in
// message_delta, text in content_block_delta. Anything unrecognized or
// malformed is skipped rather than surfaced as an error.
func (a *Adapter) ProcessStreamChunk(raw []byte, modelID string) (*llm.Chunk, error) {
	var event streamEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, nil
	}

	switch event.Type {
	case "message_start":
		if event.Message == nil {
			return nil, nil
		}
		in := event.Message.Usage.InputTokens
		return &llm.Chunk{PromptTokens: &in}, nil

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Type != "text_delta" {
			return nil, nil
		}
		return &llm.Chunk{Content: event.Delta.Text}, nil

	case "message_delta":
		if event.Usage == nil {
			return nil, nil
		}
		out := event.Usage.OutputTokens
		return &llm.Chunk{CompletionTokens: &out}, nil

	case "message_stop":
		return &llm.Chunk{Final: true}, nil
	}

	return nil, nil
}

func (a *Adapter) DefaultSettings() registry.ModelDefaults {
	return registry.ModelDefaults{MaxTokens: 4096, Temperature: 0.7}
}
