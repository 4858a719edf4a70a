package llm

import (
	"context"

	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Client is the provider-side invocation surface the gateway dispatches to.
// One implementation exists per hosting provider.
type Client interface {
	Provider() string

	Chat(ctx context.Context, req *api.ChatRequest, model *registry.ModelConfig) (*api.ChatResponse, error)

	// StreamChat returns a finite, single-pass sequence of response chunks.
	// The channel is closed by the producer; consuming it twice is undefined.
	StreamChat(ctx context.Context, req *api.ChatRequest, model *registry.ModelConfig) (<-chan api.StreamResult, error)
}
