package bedrock

import "context"

// RawChunk is one transport-level chunk of a streamed invocation, before
// any vendor parsing. Err is terminal when set.
type RawChunk struct {
	Data []byte
	Err  error
}

// Invoker is the single model-invocation primitive the provider client sits
// on: one synchronous call and one streaming variant. Implementations own
// the physical transport.
type Invoker interface {
	InvokeModel(ctx context.Context, modelID, contentType string, body []byte) ([]byte, error)

	// InvokeModelStream yields raw chunks in arrival order. The channel is
	// closed when the upstream stream ends; cancelling ctx tears down the
	// underlying connection.
	InvokeModelStream(ctx context.Context, modelID, contentType string, body []byte) (<-chan RawChunk, error)
}
