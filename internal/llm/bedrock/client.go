// Package bedrock is the provider client for a Bedrock-style model-hosting
// API. It resolves the vendor adapter from the model id and wraps the
// invocation transport.
package bedrock

import (
	"context"
	"errors"
	"strings"

	"github.com/nulzo/llm-gateway/internal/httpclient"
	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/internal/stream"
	"github.com/nulzo/llm-gateway/pkg/api"
	"go.uber.org/zap"
)

const (
	providerName = "bedrock"
	contentType  = "application/json"
)

type Client struct {
	invoker Invoker
	logger  *zap.Logger
}

func NewClient(invoker Invoker, logger *zap.Logger) *Client {
	return &Client{invoker: invoker, logger: logger}
}

func (c *Client) Provider() string { return providerName }

// vendorOf extracts the vendor family from a model id: everything before
// the first separator ("anthropic.claude-3-sonnet-..." -> "anthropic").
func vendorOf(modelID string) string {
	if i := strings.Index(modelID, "."); i > 0 {
		return modelID[:i]
	}
	return modelID
}

func (c *Client) adapterFor(modelID string) (llm.VendorAdapter, error) {
	return llm.Adapter(vendorOf(modelID))
}

func (c *Client) Chat(ctx context.Context, req *api.ChatRequest, model *registry.ModelConfig) (*api.ChatResponse, error) {
	adapter, err := c.adapterFor(model.ModelID)
	if err != nil {
		return nil, err
	}

	body, err := adapter.FormatRequest(req, model)
	if err != nil {
		return nil, err
	}

	raw, err := c.invoker.InvokeModel(ctx, model.ModelID, contentType, body)
	if err != nil {
		mapped := c.mapTransportError("InvokeModel", err)
		c.logger.Error("model invocation failed",
			zap.String("model", model.ModelID),
			zap.Error(err))
		return nil, mapped
	}

	resp, err := adapter.FormatResponse(raw, model.ModelID)
	if err != nil {
		return nil, err
	}
	resp.Metadata.Provider = providerName
	return resp, nil
}

// StreamChat parses raw transport chunks through the vendor adapter and
// hands the semantic sequence to the grouping aggregator. The returned
// channel is single-pass; the caller paces consumption.
func (c *Client) StreamChat(ctx context.Context, req *api.ChatRequest, model *registry.ModelConfig) (<-chan api.StreamResult, error) {
	adapter, err := c.adapterFor(model.ModelID)
	if err != nil {
		return nil, err
	}

	body, err := adapter.FormatRequest(req, model)
	if err != nil {
		return nil, err
	}

	rawCh, err := c.invoker.InvokeModelStream(ctx, model.ModelID, contentType, body)
	if err != nil {
		mapped := c.mapTransportError("InvokeModelStream", err)
		c.logger.Error("model stream invocation failed",
			zap.String("model", model.ModelID),
			zap.Error(err))
		return nil, mapped
	}

	semantic := make(chan stream.Result)
	go func() {
		defer close(semantic)
		for raw := range rawCh {
			if raw.Err != nil {
				select {
				case semantic <- stream.Result{Err: c.mapTransportError("InvokeModelStream", raw.Err)}:
				case <-ctx.Done():
				}
				return
			}

			chunk, err := adapter.ProcessStreamChunk(raw.Data, model.ModelID)
			if err != nil || chunk == nil {
				// Unknown or malformed chunk shapes degrade to a skip so a
				// single bad chunk never aborts the stream.
				continue
			}
			select {
			case semantic <- stream.Result{Chunk: chunk}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return stream.Aggregate(ctx, semantic, stream.Meta{
		ModelID:  model.ModelID,
		Vendor:   model.Vendor,
		Provider: providerName,
		Grouping: req.TokenGrouping,
	}), nil
}

// mapTransportError classifies upstream failures; throttling is surfaced
// as its own retryable code carrying retry-after guidance.
func (c *Client) mapTransportError(operation string, err error) error {
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) && upstream.Throttled() {
		return api.ThrottlingError(providerName, operation, upstream.RetryAfter, err)
	}
	return api.TransportError(providerName, operation, err)
}
