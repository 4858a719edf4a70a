package gateway

import (
	"context"
	"fmt"

	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// ModalityHandler is the unit of dispatch selected by a model's
// input/output modality. It validates the modality-specific request shape
// and delegates to the provider client.
type ModalityHandler interface {
	Name() string
	Validate(req *api.ChatRequest, cfg *registry.ModalityConfig) error
	Chat(ctx context.Context, client llm.Client, req *api.ChatRequest, model *registry.ModelConfig) (*api.ChatResponse, error)
	StreamChat(ctx context.Context, client llm.Client, req *api.ChatRequest, model *registry.ModelConfig) (<-chan api.StreamResult, error)
}

// textToText is the fully specified handler: ordered text messages in,
// text out.
type textToText struct{}

func (textToText) Name() string { return "text-to-text" }

func (textToText) Validate(req *api.ChatRequest, cfg *registry.ModalityConfig) error {
	if len(req.Messages) == 0 {
		return api.ValidationError("text-to-text requests need at least one message")
	}
	if cfg != nil {
		if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
			return api.ValidationError(
				fmt.Sprintf("message count %d exceeds modality limit %d", len(req.Messages), cfg.MaxMessages))
		}
		if len(cfg.AllowedRoles) > 0 {
			allowed := make(map[string]bool, len(cfg.AllowedRoles))
			for _, r := range cfg.AllowedRoles {
				allowed[r] = true
			}
			for _, m := range req.Messages {
				if !allowed[string(m.Role)] {
					return api.ValidationError(fmt.Sprintf("role %q not allowed for this modality", m.Role))
				}
			}
		}
	}
	return nil
}

func (textToText) Chat(ctx context.Context, client llm.Client, req *api.ChatRequest, model *registry.ModelConfig) (*api.ChatResponse, error) {
	return client.Chat(ctx, req, model)
}

func (textToText) StreamChat(ctx context.Context, client llm.Client, req *api.ChatRequest, model *registry.ModelConfig) (<-chan api.StreamResult, error) {
	return client.StreamChat(ctx, req, model)
}

func defaultModalityHandlers() map[string]ModalityHandler {
	return map[string]ModalityHandler{
		"text-to-text": textToText{},
	}
}
