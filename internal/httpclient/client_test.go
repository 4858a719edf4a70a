package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	body, err := Do(context.Background(), srv.Client(), http.MethodPost, srv.URL, map[string]string{"Authorization": "Bearer k"}, []byte(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDoUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.True(t, upstream.Throttled())
	assert.Equal(t, 7*time.Second, upstream.RetryAfter)
	assert.Equal(t, "slow down", string(upstream.Body))
}

func TestStreamDeliversLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		fmt.Fprint(w, "data: one\n\ndata: two\n\n")
	}))
	defer srv.Close()

	var lines []string
	err := Stream(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"data: one", "data: two"}, lines)
}

func TestStreamProcessorErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: one\n\ndata: two\n\n")
	}))
	defer srv.Close()

	wantErr := errors.New("stop")
	count := 0
	err := Stream(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil, func(line string) error {
		count++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, count)
}

func TestStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Stream(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil, func(string) error { return nil })
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	assert.False(t, upstream.Throttled())
}
