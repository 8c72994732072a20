package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type BuiltinConfig struct {
	OllamaBaseURL string

	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterSiteURL string
	OpenRouterAppName string
}

// NewBuiltinRegistry registers the "ollama" and "openrouter" backends.
func NewBuiltinRegistry(c BuiltinConfig) *Registry {
	r := NewRegistry()
	r.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider(c.OllamaBaseURL, model), nil
	})
	r.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		return NewOpenRouterProvider(c.OpenRouterBaseURL, c.OpenRouterAPIKey, model, c.OpenRouterSiteURL, c.OpenRouterAppName), nil
	})
	return r
}
