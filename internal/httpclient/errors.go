package httpclient

import (
	"fmt"
	"net/http"
	"time"
)

// UpstreamError represents a non-2xx response from an upstream service.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string

	// RetryAfter is populated from the Retry-After header when present.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// Throttled reports whether the upstream rejected the call for rate reasons.
func (e *UpstreamError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
