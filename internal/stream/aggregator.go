// Package stream implements the chunk-grouping protocol between a vendor
// adapter's semantic stream and the gateway's outbound response sequence.
package stream

import (
	"context"
	"strings"

	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Result is one element of the semantic input sequence. Exactly one of
// Chunk or Err is set; Err is terminal.
type Result struct {
	Chunk *llm.Chunk
	Err   error
}

// Meta carries the per-call identity stamped onto every emitted chunk.
type Meta struct {
	ModelID  string
	Vendor   string
	Provider string

	// Grouping is the number of semantic pieces batched into one emitted
	// chunk. Values below 1 are treated as 1 (emit immediately).
	Grouping int
}

// Aggregate consumes semantic chunks and yields grouped gateway responses.
//
// A group is flushed when the buffer reaches Grouping pieces or the vendor
// signals the final chunk; any non-empty remainder is flushed once after
// the input is exhausted. Packet numbers increase monotonically. Token
// usage is sticky: once observed it is carried into every later emission
// until overwritten by a newer observation, because vendors deliver usage
// at different points in the stream.
//
// The returned channel is single-pass and closed by the producer. Cancelling
// ctx stops consumption and closes the output.
func Aggregate(ctx context.Context, in <-chan Result, meta Meta) <-chan api.StreamResult {
	grouping := meta.Grouping
	if grouping < 1 {
		grouping = 1
	}

	out := make(chan api.StreamResult)

	go func() {
		defer close(out)

		var (
			buf    []string
			packet int
			usage  api.Usage
		)

		flush := func(final bool) bool {
			packet++
			resp := &api.ChatResponse{
				Content: strings.Join(buf, ""),
				Metadata: api.ResponseMetadata{
					ModelID:      meta.ModelID,
					Vendor:       meta.Vendor,
					Provider:     meta.Provider,
					Usage:        usage,
					IsStreaming:  !final,
					PacketNumber: packet,
				},
			}
			buf = buf[:0]

			select {
			case out <- api.StreamResult{Response: resp}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-in:
				if !ok {
					if len(buf) > 0 {
						flush(true)
					}
					return
				}
				if res.Err != nil {
					select {
					case out <- api.StreamResult{Err: res.Err}:
					case <-ctx.Done():
					}
					return
				}

				c := res.Chunk
				if c == nil {
					continue
				}
				if c.PromptTokens != nil {
					usage.PromptTokens = *c.PromptTokens
				}
				if c.CompletionTokens != nil {
					usage.CompletionTokens = *c.CompletionTokens
				}
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

				if c.Content != "" {
					buf = append(buf, c.Content)
				}

				if c.Final {
					if !flush(true) {
						return
					}
					continue
				}
				if len(buf) >= grouping {
					if !flush(false) {
						return
					}
				}
			}
		}
	}()

	return out
}
