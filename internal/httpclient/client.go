package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClient is the minimal surface we need from an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Do sends a request with a pre-marshaled body and returns the raw response
// bytes. Non-2xx statuses become an *UpstreamError.
func Do(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp, respBody, url)
	}
	return respBody, nil
}

type LineProcessor func(line string) error

// Stream sends a request and feeds each non-empty response line to
// processLine until the body is exhausted or ctx is cancelled.
func Stream(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body []byte, processLine LineProcessor) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return upstreamError(resp, respBody, url)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := processLine(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func upstreamError(resp *http.Response, body []byte, url string) *UpstreamError {
	e := &UpstreamError{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        url,
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}
