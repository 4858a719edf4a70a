package bedrock

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/llm-gateway/internal/httpclient"
)

// HTTPInvoker talks to a Bedrock-compatible runtime endpoint:
// POST {base}/model/{modelId}/invoke and .../invoke-with-response-stream.
type HTTPInvoker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPInvoker(baseURL, apiKey string) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (i *HTTPInvoker) headers(contentType string) map[string]string {
	h := map[string]string{"Content-Type": contentType}
	if i.apiKey != "" {
		h["Authorization"] = "Bearer " + i.apiKey
	}
	return h
}

func (i *HTTPInvoker) InvokeModel(ctx context.Context, modelID, contentType string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/model/%s/invoke", i.baseURL, modelID)
	return httpclient.Do(ctx, i.client, http.MethodPost, url, i.headers(contentType), body)
}

func (i *HTTPInvoker) InvokeModelStream(ctx context.Context, modelID, contentType string, body []byte) (<-chan RawChunk, error) {
	url := fmt.Sprintf("%s/model/%s/invoke-with-response-stream", i.baseURL, modelID)

	ch := make(chan RawChunk)
	go func() {
		defer close(ch)

		err := httpclient.Stream(ctx, i.client, http.MethodPost, url, i.headers(contentType), body, func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return nil
			}
			select {
			case ch <- RawChunk{Data: []byte(data)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case ch <- RawChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}
