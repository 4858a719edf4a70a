package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/llm-gateway/internal/cache"
	"github.com/nulzo/llm-gateway/pkg/api"
	"go.uber.org/zap"
)

// Repository resolves model, vendor and modality descriptors, cache-first.
//
// Two independent caches back it: a model-config cache keyed
// "provider:modelId" with no TTL (descriptors are static for the process
// lifetime) and a ready-models cache keyed "provider:vendor" (or
// "provider:all") with a short TTL. Population is lazy; there is no
// invalidation push. Operators refresh by restarting the process.
type Repository struct {
	loader   *Loader
	models   cache.Cache
	ready    cache.Cache
	readyTTL time.Duration
	logger   *zap.Logger

	mu         sync.RWMutex
	status     map[string]*StatusConfig
	aliases    map[string]*AliasConfig
	vendors    map[string][]VendorConfig
	modalities map[string][]ModalityConfig
}

func NewRepository(loader *Loader, modelCache, readyCache cache.Cache, readyTTL time.Duration, logger *zap.Logger) *Repository {
	if readyTTL <= 0 {
		readyTTL = 5 * time.Minute
	}
	return &Repository{
		loader:     loader,
		models:     modelCache,
		ready:      readyCache,
		readyTTL:   readyTTL,
		logger:     logger,
		status:     make(map[string]*StatusConfig),
		aliases:    make(map[string]*AliasConfig),
		vendors:    make(map[string][]VendorConfig),
		modalities: make(map[string][]ModalityConfig),
	}
}

// GetModelConfig resolves a model id or alias to its ModelConfig. A resolved
// model must also pass the readiness gate or the call fails with
// MODEL_NOT_READY even though the descriptor exists.
func (r *Repository) GetModelConfig(ctx context.Context, modelID, provider string) (*ModelConfig, error) {
	mc, err := r.findModel(ctx, modelID, provider, true)
	if err != nil {
		return nil, err
	}

	status, err := r.GetStatusConfig(ctx, provider)
	if err != nil {
		return nil, err
	}
	if !status.IsReady(mc.ModelID) {
		return nil, api.ModelNotReadyError(mc.ModelID, provider)
	}
	return mc, nil
}

// GetModelConfigByAlias resolves through the alias table only, without
// falling back to an exact-id match.
func (r *Repository) GetModelConfigByAlias(ctx context.Context, alias, provider string) (*ModelConfig, error) {
	aliases, err := r.GetAliasConfig(ctx, provider)
	if err != nil {
		return nil, err
	}
	canonical, ok := aliases.Aliases[alias]
	if !ok {
		return nil, api.ModelNotFoundError(alias, provider)
	}
	// One hop only: the canonical id must match a model exactly.
	return r.findModel(ctx, canonical, provider, false)
}

// findModel searches the provider's model list by exact id and, when
// allowed, resolves through the alias table exactly once. No readiness
// gate is applied here.
func (r *Repository) findModel(ctx context.Context, modelID, provider string, tryAlias bool) (*ModelConfig, error) {
	key := fmt.Sprintf("%s:%s", provider, modelID)

	var cached ModelConfig
	if err := r.models.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("model cache read failed", zap.String("key", key), zap.Error(err))
	}

	models, err := r.loader.LoadModels(provider)
	if err != nil {
		return nil, api.InternalError(fmt.Sprintf("loading model descriptors for %s", provider), err)
	}

	for i := range models.Models {
		if models.Models[i].ModelID == modelID {
			mc := models.Models[i]
			if err := r.models.Set(ctx, key, &mc, 0); err != nil {
				r.logger.Warn("model cache write failed", zap.String("key", key), zap.Error(err))
			}
			return &mc, nil
		}
	}

	if tryAlias {
		if mc, err := r.GetModelConfigByAlias(ctx, modelID, provider); err == nil {
			return mc, nil
		}
	}

	return nil, api.ModelNotFoundError(modelID, provider)
}

// GetReadyModels returns the models currently invocable on a provider,
// optionally filtered by vendor. Results are cached briefly; a staleness
// window is the accepted price of cheap warm calls.
func (r *Repository) GetReadyModels(ctx context.Context, provider, vendor string) ([]ModelConfig, error) {
	filter := vendor
	if filter == "" {
		filter = "all"
	}
	key := fmt.Sprintf("%s:%s", provider, filter)

	var cached []ModelConfig
	if err := r.ready.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("ready-model cache read failed", zap.String("key", key), zap.Error(err))
	}

	models, err := r.loader.LoadModels(provider)
	if err != nil {
		return nil, api.InternalError(fmt.Sprintf("loading model descriptors for %s", provider), err)
	}
	status, err := r.GetStatusConfig(ctx, provider)
	if err != nil {
		return nil, err
	}

	var out []ModelConfig
	for _, m := range models.Models {
		if vendor != "" && !strings.EqualFold(m.Vendor, vendor) {
			continue
		}
		if status.IsReady(m.ModelID) {
			out = append(out, m)
		}
	}

	if err := r.ready.Set(ctx, key, out, r.readyTTL); err != nil {
		r.logger.Warn("ready-model cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// GetStatusConfig returns the readiness descriptor for a provider. The
// descriptor is loaded once and held for the process lifetime.
func (r *Repository) GetStatusConfig(ctx context.Context, provider string) (*StatusConfig, error) {
	r.mu.RLock()
	s, ok := r.status[provider]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	loaded, err := r.loader.LoadStatus(provider)
	if err != nil {
		return nil, api.InternalError(fmt.Sprintf("loading status descriptor for %s", provider), err)
	}

	r.mu.Lock()
	r.status[provider] = loaded
	r.mu.Unlock()
	return loaded, nil
}

func (r *Repository) GetAliasConfig(ctx context.Context, provider string) (*AliasConfig, error) {
	r.mu.RLock()
	a, ok := r.aliases[provider]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	loaded, err := r.loader.LoadAliases(provider)
	if err != nil {
		return nil, api.InternalError(fmt.Sprintf("loading alias descriptor for %s", provider), err)
	}

	r.mu.Lock()
	r.aliases[provider] = loaded
	r.mu.Unlock()
	return loaded, nil
}

func (r *Repository) LoadAllVendorConfigs(ctx context.Context, provider string) ([]VendorConfig, error) {
	r.mu.RLock()
	v, ok := r.vendors[provider]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}

	loaded, err := r.loader.LoadVendors(provider)
	if err != nil {
		return nil, api.InternalError(fmt.Sprintf("loading vendor descriptors for %s", provider), err)
	}

	r.mu.Lock()
	r.vendors[provider] = loaded.Vendors
	r.mu.Unlock()
	return loaded.Vendors, nil
}

func (r *Repository) LoadAllModalityConfigs(ctx context.Context, provider string) ([]ModalityConfig, error) {
	r.mu.RLock()
	m, ok := r.modalities[provider]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	loaded, err := r.loader.LoadModalities(provider)
	if err != nil {
		return nil, api.InternalError(fmt.Sprintf("loading modality descriptors for %s", provider), err)
	}

	r.mu.Lock()
	r.modalities[provider] = loaded.Modalities
	r.mu.Unlock()
	return loaded.Modalities, nil
}

// GetModalityConfig resolves a modality by name or alias.
func (r *Repository) GetModalityConfig(ctx context.Context, provider, name string) (*ModalityConfig, error) {
	all, err := r.LoadAllModalityConfigs(ctx, provider)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
		for _, alias := range all[i].Aliases {
			if alias == name {
				return &all[i], nil
			}
		}
	}
	return nil, api.ValidationError(fmt.Sprintf("unknown modality %q", name))
}
