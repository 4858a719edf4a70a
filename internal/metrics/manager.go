// Package metrics turns completed or failed exchanges into usage records
// and forwards them to the configured destinations. It is a one-way side
// channel: nothing in here may ever fail the caller.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/pkg/api"
	"go.uber.org/zap"
)

// Sink is one usage-record destination. Implementations report failures
// through their error return; the manager logs and discards them.
type Sink interface {
	Name() string
	Push(ctx context.Context, rec *model.UsageRecord) error
}

type Manager struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewManager accepts zero or more sinks; zero is valid and makes tracking
// a no-op.
func NewManager(logger *zap.Logger, sinks ...Sink) *Manager {
	return &Manager{sinks: sinks, logger: logger}
}

// TrackUsage records a successful exchange.
func (m *Manager) TrackUsage(ctx context.Context, req *api.ChatRequest, resp *api.ChatResponse, start time.Time, mc *registry.ModelConfig) {
	rec := m.baseRecord(req, start)
	rec.Success = true
	if mc != nil {
		rec.ModelID = mc.ModelID
		rec.Provider = mc.Provider
	}
	if resp != nil {
		rec.TokensIn = resp.Metadata.Usage.PromptTokens
		rec.TokensOut = resp.Metadata.Usage.CompletionTokens
	}
	m.forward(ctx, rec)
}

// TrackError records a failed exchange.
func (m *Manager) TrackError(ctx context.Context, req *api.ChatRequest, callErr error, start time.Time) {
	rec := m.baseRecord(req, start)
	rec.Success = false
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	m.forward(ctx, rec)
}

func (m *Manager) baseRecord(req *api.ChatRequest, start time.Time) *model.UsageRecord {
	end := time.Now().UTC()
	return &model.UsageRecord{
		RequestID:      uuid.NewString(),
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
		Provider:       req.Provider,
		StartTime:      start.UTC(),
		EndTime:        end,
		DurationMS:     end.Sub(start.UTC()).Milliseconds(),
		Source:         string(req.Source),
	}
}

// forward pushes the record to every sink. Each push is individually
// contained: an error or panic in one sink is logged and affects neither
// the other sinks nor the caller.
func (m *Manager) forward(ctx context.Context, rec *model.UsageRecord) {
	for _, sink := range m.sinks {
		m.push(ctx, sink, rec)
	}
}

func (m *Manager) push(ctx context.Context, sink Sink, rec *model.UsageRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("metrics sink panicked",
				zap.String("sink", sink.Name()),
				zap.Any("panic", r))
		}
	}()

	if err := sink.Push(ctx, rec); err != nil {
		m.logger.Error("metrics sink push failed",
			zap.String("sink", sink.Name()),
			zap.String("request_id", rec.RequestID),
			zap.Error(err))
	}
}
