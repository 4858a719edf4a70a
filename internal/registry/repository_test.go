package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nulzo/llm-gateway/internal/cache"
	"github.com/nulzo/llm-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeDescriptors(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	providerDir := filepath.Join(dir, "bedrock")
	require.NoError(t, os.MkdirAll(providerDir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(providerDir, name), []byte(content), 0o644))
	}
	return dir
}

func testDescriptors() map[string]string {
	return map[string]string{
		"models.json": `{
			"schemaVersion": "1.1.0",
			"models": [
				{
					"modelId": "anthropic.claude-3-haiku-20240307-v1:0",
					"provider": "bedrock",
					"vendor": "anthropic",
					"capabilities": {"streaming": true, "inferenceTypes": {"onDemand": true, "streaming": true}},
					"defaults": {"maxTokens": 1024, "temperature": 0.7}
				},
				{
					"modelId": "meta.llama3-8b-instruct-v1:0",
					"provider": "bedrock",
					"vendor": "meta",
					"capabilities": {"streaming": true, "inferenceTypes": {"onDemand": true, "streaming": true}}
				}
			]
		}`,
		"status.json": `{
			"schemaVersion": "1.1.0",
			"statuses": [
				{
					"status": "READY",
					"connections": [
						{"type": "ONDEMAND", "vendors": [{"name": "anthropic", "models": ["anthropic.claude-3-haiku-20240307-v1:0"]}]}
					]
				},
				{
					"status": "NOT_READY",
					"connections": [
						{"type": "ONDEMAND", "vendors": [{"name": "meta", "models": ["meta.llama3-8b-instruct-v1:0"]}]}
					]
				}
			]
		}`,
		"aliases.json": `{
			"schemaVersion": "1.1.0",
			"aliases": {
				"claude-3-haiku": "anthropic.claude-3-haiku-20240307-v1:0",
				"ghost": "model.that-does-not-exist"
			}
		}`,
		"vendors.json": `{"schemaVersion": "1.1.0", "vendors": [{"name": "anthropic", "family": "chat"}]}`,
		"modalities.json": `{
			"schemaVersion": "1.1.0",
			"modalities": [{"name": "text-to-text", "aliases": ["text"], "allowedRoles": ["system", "user", "assistant"]}]
		}`,
	}
}

func newTestRepo(t *testing.T, ttl time.Duration) *Repository {
	t.Helper()
	dir := writeDescriptors(t, testDescriptors())
	return NewRepository(NewLoader(dir), cache.NewMemory(), cache.NewMemory(), ttl, zap.NewNop())
}

func TestGetModelConfigExactID(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	mc, err := repo.GetModelConfig(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", "bedrock")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", mc.Vendor)
	assert.Equal(t, 1024, mc.Defaults.MaxTokens)
}

func TestGetModelConfigResolvesAlias(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	mc, err := repo.GetModelConfig(context.Background(), "claude-3-haiku", "bedrock")
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", mc.ModelID)
}

func TestAliasResolutionIsOneHop(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	// "ghost" points at an id that is itself absent from the model list;
	// resolution must not retry the alias table with it.
	_, err := repo.GetModelConfigByAlias(context.Background(), "ghost", "bedrock")
	assert.Equal(t, api.CodeModelNotFound, api.CodeOf(err))
}

func TestGetModelConfigNotFound(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	_, err := repo.GetModelConfig(context.Background(), "no.such-model", "bedrock")
	assert.Equal(t, api.CodeModelNotFound, api.CodeOf(err))
}

func TestGetModelConfigReadinessGate(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	// descriptor exists but the model is listed under NOT_READY
	_, err := repo.GetModelConfig(context.Background(), "meta.llama3-8b-instruct-v1:0", "bedrock")
	assert.Equal(t, api.CodeModelNotReady, api.CodeOf(err))
}

func TestFindModelServedFromCacheAfterFirstLoad(t *testing.T) {
	dir := writeDescriptors(t, testDescriptors())
	repo := NewRepository(NewLoader(dir), cache.NewMemory(), cache.NewMemory(), time.Minute, zap.NewNop())

	_, err := repo.GetModelConfig(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", "bedrock")
	require.NoError(t, err)

	// removing the descriptor files does not affect warm lookups
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "bedrock")))
	mc, err := repo.GetModelConfig(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", "bedrock")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", mc.Vendor)
}

func TestGetReadyModels(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	models, err := repo.GetReadyModels(context.Background(), "bedrock", "")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", models[0].ModelID)

	// vendor filter with no ready models yields an empty set, not an error
	models, err = repo.GetReadyModels(context.Background(), "bedrock", "meta")
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestGetModalityConfigByAlias(t *testing.T) {
	repo := newTestRepo(t, time.Minute)

	m, err := repo.GetModalityConfig(context.Background(), "bedrock", "text")
	require.NoError(t, err)
	assert.Equal(t, "text-to-text", m.Name)

	_, err = repo.GetModalityConfig(context.Background(), "bedrock", "audio-to-text")
	assert.Equal(t, api.CodeValidation, api.CodeOf(err))
}

func TestLoaderRejectsNewerSchema(t *testing.T) {
	files := testDescriptors()
	files["models.json"] = `{"schemaVersion": "2.0.0", "models": []}`
	dir := writeDescriptors(t, files)

	_, err := NewLoader(dir).LoadModels("bedrock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestLoaderAcceptsLegacyFilesWithoutSchema(t *testing.T) {
	files := testDescriptors()
	files["aliases.json"] = `{"aliases": {"a": "b"}}`
	dir := writeDescriptors(t, files)

	f, err := NewLoader(dir).LoadAliases("bedrock")
	require.NoError(t, err)
	assert.Equal(t, "b", f.Aliases["a"])
}
