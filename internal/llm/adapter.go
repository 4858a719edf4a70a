package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Chunk is one semantic streaming piece after vendor parsing. Token counts
// are pointers so "not observed in this chunk" is distinguishable from an
// observed zero; the aggregator carries the last observation forward.
type Chunk struct {
	Content          string
	PromptTokens     *int
	CompletionTokens *int

	// Final marks the vendor's last-chunk signal. The aggregator flushes
	// its buffer when it sees this regardless of grouping.
	Final bool
}

// VendorAdapter formats an abstract request into one vendor family's wire
// body and parses that family's responses back into the uniform shape.
type VendorAdapter interface {
	Vendor() string

	// FormatRequest builds the vendor wire body for a normalized request.
	FormatRequest(req *api.ChatRequest, model *registry.ModelConfig) ([]byte, error)

	// ValidateRequest enforces vendor-specific constraints before any
	// transport call.
	ValidateRequest(req *api.ChatRequest) error

	// ProcessStreamChunk parses one raw transport chunk. A (nil, nil)
	// return means the chunk carries nothing user-visible; malformed
	// chunks degrade to nil rather than aborting the stream.
	ProcessStreamChunk(raw []byte, modelID string) (*Chunk, error)

	// FormatResponse parses a full non-streamed response body.
	FormatResponse(raw []byte, modelID string) (*api.ChatResponse, error)

	// DefaultSettings returns the vendor's generation defaults, applied
	// when neither the request nor the model descriptor specifies one.
	DefaultSettings() registry.ModelDefaults
}

var (
	mu       sync.RWMutex
	adapters = make(map[string]VendorAdapter)
)

// Register installs a vendor adapter. Called from vendor package init();
// duplicate registration is a programming error.
func Register(vendor string, a VendorAdapter) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := adapters[vendor]; exists {
		panic(fmt.Sprintf("vendor adapter %s already registered", vendor))
	}
	adapters[vendor] = a
}

// Adapter returns the adapter for a vendor name.
func Adapter(vendor string) (VendorAdapter, error) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := adapters[vendor]
	if !ok {
		return nil, api.UnsupportedVendorError(vendor)
	}
	return a, nil
}
