package provider

import (
	"log/slog"

	"github.com/langexam/grader/internal/model"
)

// ConfigSource supplies stored admin configuration for a provider. The
// sqlite store implements it; a nil source means only environment defaults
// apply.
type ConfigSource interface {
	ProviderConfig(id string) (model.ProviderConfig, bool, error)
}

// Registry resolves provider configuration at call time. Resolution is
// layered: stored admin configuration overrides the environment defaults
// field by field. Nothing is cached across calls — configuration may change
// between requests, so every grading call re-resolves.
type Registry struct {
	order    []string
	defaults map[string]model.ProviderConfig
	source   ConfigSource
}

// NewRegistry creates a registry. The slice order defines the
// provider-fallback order used by GenerateWithFallback.
func NewRegistry(defaults []model.ProviderConfig, source ConfigSource) *Registry {
	r := &Registry{
		defaults: make(map[string]model.ProviderConfig, len(defaults)),
		source:   source,
	}
	for _, cfg := range defaults {
		if _, dup := r.defaults[cfg.ID]; dup {
			continue
		}
		r.order = append(r.order, cfg.ID)
		r.defaults[cfg.ID] = cfg
	}
	return r
}

// Resolve returns the effective configuration for one provider.
func (r *Registry) Resolve(id string) model.ProviderConfig {
	cfg, ok := r.defaults[id]
	if !ok {
		cfg = model.ProviderConfig{ID: id}
	}

	if r.source == nil {
		return cfg
	}
	stored, found, err := r.source.ProviderConfig(id)
	if err != nil {
		slog.Warn("reading stored provider config", "provider", id, "error", err)
		return cfg
	}
	if !found {
		return cfg
	}
	return merge(cfg, stored)
}

// ResolveAll returns the effective configuration of every registered
// provider, in registration order.
func (r *Registry) ResolveAll() []model.ProviderConfig {
	configs := make([]model.ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		configs = append(configs, r.Resolve(id))
	}
	return configs
}

// merge overlays stored admin configuration on the environment defaults.
// Empty stored fields keep the default.
func merge(def, stored model.ProviderConfig) model.ProviderConfig {
	out := def
	if stored.APIKey != "" {
		out.APIKey = stored.APIKey
	}
	if stored.Model != "" {
		out.Model = stored.Model
	}
	if stored.BaseURL != "" {
		out.BaseURL = stored.BaseURL
	}
	if len(stored.FallbackModels) > 0 {
		out.FallbackModels = stored.FallbackModels
	}
	return out
}
