// Package gateway is the public entry point of the model-routing pipeline:
// request validation, conversation enrichment, descriptor resolution,
// modality dispatch, and the metrics/persistence tail.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/nulzo/llm-gateway/internal/conversation"
	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/metrics"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
	"go.uber.org/zap"
)

// Service is the gateway's public surface.
type Service interface {
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	StreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)

	// The conversation-aware variants additionally require a userId and
	// thread the exchange through a persisted conversation.
	ConversationChat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	ConversationStreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)

	GetReadyModels(ctx context.Context, provider, vendor string) ([]registry.ModelConfig, error)

	Conversations() *conversation.Manager
}

type service struct {
	logger        *zap.Logger
	registry      *registry.Repository
	clients       map[string]llm.Client
	conversations *conversation.Manager
	metrics       *metrics.Manager
	modalities    map[string]ModalityHandler
}

func NewService(logger *zap.Logger, reg *registry.Repository, conversations *conversation.Manager, usage *metrics.Manager, clients ...llm.Client) Service {
	m := make(map[string]llm.Client, len(clients))
	for _, c := range clients {
		m[c.Provider()] = c
	}
	return &service{
		logger:        logger,
		registry:      reg,
		clients:       m,
		conversations: conversations,
		metrics:       usage,
		modalities:    defaultModalityHandlers(),
	}
}

func (s *service) Conversations() *conversation.Manager { return s.conversations }

// resolve runs the shared front half of every call: shape validation,
// normalization, descriptor resolution and handler selection. It performs
// no network I/O besides descriptor loads.
func (s *service) resolve(ctx context.Context, req *api.ChatRequest) (llm.Client, ModalityHandler, *registry.ModelConfig, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, nil, err
	}
	req.Normalize()

	client, ok := s.clients[req.Provider]
	if !ok {
		return nil, nil, nil, api.ValidationError(fmt.Sprintf("unknown provider %q", req.Provider))
	}

	mc, err := s.registry.GetModelConfig(ctx, req.ModelID, req.Provider)
	if err != nil {
		return nil, nil, nil, err
	}
	// The request may have carried an alias; downstream only sees the
	// canonical id and vendor.
	req.ModelID = mc.ModelID
	req.Vendor = mc.Vendor

	if req.Stream && !mc.Capabilities.Streaming {
		return nil, nil, nil, api.ValidationError(fmt.Sprintf("model %q does not support streaming", mc.ModelID))
	}

	handler, ok := s.modalities[req.Modality]
	if !ok {
		return nil, nil, nil, api.ValidationError(fmt.Sprintf("unsupported modality %q", req.Modality))
	}

	modCfg, err := s.registry.GetModalityConfig(ctx, req.Provider, req.Modality)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := handler.Validate(req, modCfg); err != nil {
		return nil, nil, nil, err
	}

	return client, handler, mc, nil
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	start := time.Now()

	client, handler, mc, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := handler.Chat(ctx, client, req, mc)
	if err != nil {
		s.metrics.TrackError(ctx, req, err, start)
		return nil, err
	}

	s.metrics.TrackUsage(ctx, req, resp, start, mc)
	return resp, nil
}

func (s *service) StreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	start := time.Now()
	req.Stream = true

	client, handler, mc, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	upstream, err := handler.StreamChat(ctx, client, req, mc)
	if err != nil {
		s.metrics.TrackError(ctx, req, err, start)
		return nil, err
	}

	return s.intercept(ctx, req, mc, upstream, start, false), nil
}

func (s *service) ConversationChat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, api.ValidationError("conversation calls require userId")
	}

	conversationID, _, err := s.conversations.Create(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	req.ConversationID = conversationID
	req.Normalize()

	enriched := s.conversations.LoadHistory(ctx, req)

	client, handler, mc, err := s.resolve(ctx, enriched)
	if err != nil {
		return nil, err
	}

	resp, err := handler.Chat(ctx, client, enriched, mc)
	if err != nil {
		s.metrics.TrackError(ctx, enriched, err, start)
		return nil, err
	}
	resp.Metadata.ConversationID = conversationID

	s.conversations.SaveExchange(ctx, enriched, resp.Content)
	s.metrics.TrackUsage(ctx, enriched, resp, start, mc)
	return resp, nil
}

func (s *service) ConversationStreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	start := time.Now()
	req.Stream = true

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, api.ValidationError("conversation calls require userId")
	}

	conversationID, _, err := s.conversations.Create(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	req.ConversationID = conversationID
	req.Normalize()

	enriched := s.conversations.LoadHistory(ctx, req)

	client, handler, mc, err := s.resolve(ctx, enriched)
	if err != nil {
		return nil, err
	}

	upstream, err := handler.StreamChat(ctx, client, enriched, mc)
	if err != nil {
		s.metrics.TrackError(ctx, enriched, err, start)
		return nil, err
	}

	return s.intercept(ctx, enriched, mc, upstream, start, true), nil
}

// intercept relays a stream while accumulating the full content and the
// latest usage, then runs the persistence/metrics tail once the stream
// ends. Persistence happens only after the complete exchange is known, so
// an aborted stream never leaves a half-written turn pair.
func (s *service) intercept(ctx context.Context, req *api.ChatRequest, mc *registry.ModelConfig, upstream <-chan api.StreamResult, start time.Time, persist bool) <-chan api.StreamResult {
	out := make(chan api.StreamResult)

	go func() {
		defer close(out)

		var (
			content   string
			lastUsage api.Usage
			streamErr error
		)

		for res := range upstream {
			if res.Err != nil {
				streamErr = res.Err
			}
			if res.Response != nil {
				content += res.Response.Content
				lastUsage = res.Response.Metadata.Usage
				if persist {
					res.Response.Metadata.ConversationID = req.ConversationID
				}
			}

			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}

		// The call context may be cancelled by now; the tail still runs
		// against a fresh context so delivery of the final chunk racing
		// teardown cannot skip persistence.
		tail := context.Background()
		if streamErr != nil {
			s.metrics.TrackError(tail, req, streamErr, start)
			return
		}
		if persist {
			s.conversations.SaveExchange(tail, req, content)
		}
		final := &api.ChatResponse{
			Content:  content,
			Metadata: api.ResponseMetadata{ModelID: mc.ModelID, Usage: lastUsage},
		}
		s.metrics.TrackUsage(tail, req, final, start, mc)
	}()

	return out
}

func (s *service) GetReadyModels(ctx context.Context, provider, vendor string) ([]registry.ModelConfig, error) {
	if provider == "" {
		provider = s.defaultProvider()
	}
	return s.registry.GetReadyModels(ctx, provider, vendor)
}

func (s *service) defaultProvider() string {
	for name := range s.clients {
		return name
	}
	return ""
}
