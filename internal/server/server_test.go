package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/internal/cache"
	"github.com/nulzo/llm-gateway/internal/config"
	"github.com/nulzo/llm-gateway/internal/conversation"
	"github.com/nulzo/llm-gateway/internal/gateway"
	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/llm/bedrock"
	"github.com/nulzo/llm-gateway/internal/metrics"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/internal/server/validator"
	"github.com/nulzo/llm-gateway/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "github.com/nulzo/llm-gateway/internal/llm/anthropic"
	_ "github.com/nulzo/llm-gateway/internal/llm/meta"
)

const testModel = "anthropic.claude-3-haiku-20240307-v1:0"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Init()
}

// upstream fakes the model-hosting API for both invocation shapes.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/invoke-with-response-stream") {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			events := []string{
				`{"type":"message_start","message":{"usage":{"input_tokens":6}}}`,
				`{"type":"content_block_delta","delta":{"type":"text_delta","text":"streamed "}}`,
				`{"type":"content_block_delta","delta":{"type":"text_delta","text":"answer"}}`,
				`{"type":"message_delta","usage":{"output_tokens":2}}`,
				`{"type":"message_stop"}`,
			}
			for _, ev := range events {
				fmt.Fprintf(w, "data: %s\n\n", ev)
				flusher.Flush()
			}
			return
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"unary answer"}],"usage":{"input_tokens":6,"output_tokens":3}}`)
	}))
}

func descriptorDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	providerDir := filepath.Join(dir, "bedrock")
	require.NoError(t, os.MkdirAll(providerDir, 0o755))
	files := map[string]string{
		"models.json": `{
			"schemaVersion": "1.1.0",
			"models": [{
				"modelId": "` + testModel + `",
				"provider": "bedrock",
				"vendor": "anthropic",
				"capabilities": {"streaming": true, "inferenceTypes": {"onDemand": true, "streaming": true}},
				"defaults": {"maxTokens": 1024}
			}]
		}`,
		"status.json": `{
			"schemaVersion": "1.1.0",
			"statuses": [
				{"status": "READY", "connections": [{"type": "ONDEMAND", "vendors": [{"name": "anthropic", "models": ["` + testModel + `"]}]}]},
				{"status": "NOT_READY", "connections": []}
			]
		}`,
		"aliases.json":    `{"schemaVersion": "1.1.0", "aliases": {"claude-3-haiku": "` + testModel + `"}}`,
		"vendors.json":    `{"schemaVersion": "1.1.0", "vendors": [{"name": "anthropic", "family": "chat"}]}`,
		"modalities.json": `{"schemaVersion": "1.1.0", "modalities": [{"name": "text-to-text", "aliases": ["text"], "allowedRoles": ["system", "user", "assistant"]}]}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(providerDir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := upstream(t)
	t.Cleanup(up.Close)

	log := zap.NewNop()
	reg := registry.NewRepository(registry.NewLoader(descriptorDir(t)), cache.NewMemory(), cache.NewMemory(), time.Minute, log)
	conv := conversation.NewManager(memory.NewRepository(), log)
	usage := metrics.NewManager(log)
	client := bedrock.NewClient(bedrock.NewHTTPInvoker(up.URL, ""), log)
	service := gateway.NewService(log, reg, conv, usage, []llm.Client{client}...)

	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000

	srv := httptest.NewServer(New(cfg, log, service).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, headers map[string]string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status      string `json:"status"`
		ReadyModels int    `json:"readyModels"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.ReadyModels)
}

func TestChat(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/chat", nil, map[string]interface{}{
		"provider": "bedrock",
		"modelId":  testModel,
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out struct {
		Content  string `json:"content"`
		Metadata struct {
			ModelID string `json:"modelId"`
			Usage   struct {
				TotalTokens int `json:"totalTokens"`
			} `json:"usage"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "unary answer", out.Content)
	assert.Equal(t, testModel, out.Metadata.ModelID)
	assert.Equal(t, 9, out.Metadata.Usage.TotalTokens)
}

func TestChatWithAlias(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/chat", nil, map[string]interface{}{
		"provider": "bedrock",
		"modelId":  "claude-3-haiku",
		"prompt":   "hello",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), testModel)
}

func TestChatValidationError(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/chat", nil, map[string]interface{}{
		"provider": "bedrock",
		"modelId":  testModel,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "VALIDATION_ERROR")
}

func TestChatUnknownModel(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/chat", nil, map[string]interface{}{
		"provider": "bedrock",
		"modelId":  "anthropic.no-such-model",
		"prompt":   "hello",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "MODEL_NOT_FOUND")
}

func TestChatStreaming(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(map[string]interface{}{
		"provider": "bedrock",
		"modelId":  testModel,
		"stream":   true,
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var content string
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			break
		}
		var chunk struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &chunk))
		content += chunk.Content
	}
	assert.Equal(t, "streamed answer", content)
	assert.True(t, sawDone)
}

func TestConversationFlow(t *testing.T) {
	srv := newTestServer(t)
	headers := map[string]string{"X-User-ID": "u1"}

	// create
	resp, body := postJSON(t, srv.URL+"/api/v1/conversations", headers, map[string]string{})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		ConversationID string `json:"conversationId"`
		IsNew          bool   `json:"isNew"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.IsNew)
	require.NotEmpty(t, created.ConversationID)

	// creating again with the same id is idempotent
	resp, body = postJSON(t, srv.URL+"/api/v1/conversations", headers, map[string]string{
		"conversationId": created.ConversationID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// chat within it
	resp, body = postJSON(t, srv.URL+"/api/v1/conversations/"+created.ConversationID+"/chat", headers, map[string]interface{}{
		"provider": "bedrock",
		"modelId":  testModel,
		"messages": []map[string]string{{"role": "user", "content": "first question"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), created.ConversationID)

	// fetch: both turns persisted
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/conversations/"+created.ConversationID, nil)
	req.Header.Set("X-User-ID", "u1")
	getResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var conv struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&conv))
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "first question", conv.Messages[0].Content)
	assert.Equal(t, "unary answer", conv.Messages[1].Content)

	// list
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/conversations", nil)
	req.Header.Set("X-User-ID", "u1")
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	// delete
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/conversations/"+created.ConversationID, nil)
	req.Header.Set("X-User-ID", "u1")
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	// gone now
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/conversations/"+created.ConversationID, nil)
	req.Header.Set("X-User-ID", "u1")
	goneResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer goneResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, goneResp.StatusCode)
}

func TestConversationRequiresUserHeader(t *testing.T) {
	srv := newTestServer(t)
	resp, body := postJSON(t, srv.URL+"/api/v1/conversations", nil, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "X-User-ID")
}

func TestListModels(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/models?vendor=anthropic")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Models []struct {
			ModelID string `json:"modelId"`
		} `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Models, 1)
	assert.Equal(t, testModel, out.Models[0].ModelID)
}
