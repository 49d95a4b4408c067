// Package providers routes model identifiers to concrete ModelProvider
// instances.
package providers

import (
	"fmt"
	"strings"
	"sync"

	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/providers/anthropic"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/providers/lorem"
)

// Registry lazily constructs providers and resolves which one serves a
// given model id. Safe for concurrent use.
type Registry struct {
	anthropicAPIKey string

	mu    sync.RWMutex
	cache map[string]domainChat.ModelProvider
}

// NewRegistry creates a provider registry. The API key may be empty; the
// anthropic provider then fails at first use, not at startup, so a
// lorem-only development setup needs no credentials.
func NewRegistry(anthropicAPIKey string) *Registry {
	return &Registry{
		anthropicAPIKey: anthropicAPIKey,
		cache:           make(map[string]domainChat.ModelProvider),
	}
}

// ForModel returns the provider that serves the given model id.
//
// Examples:
//   - "claude-sonnet-4-5" → anthropic
//   - "lorem-fast"        → lorem
func (r *Registry) ForModel(model string) (domainChat.ModelProvider, error) {
	switch {
	case model == "":
		return nil, fmt.Errorf("model cannot be empty")
	case strings.HasPrefix(model, "lorem-"):
		return r.get("lorem", func() (domainChat.ModelProvider, error) {
			return lorem.NewProvider(), nil
		})
	default:
		return r.get("anthropic", func() (domainChat.ModelProvider, error) {
			return anthropic.NewProvider(r.anthropicAPIKey)
		})
	}
}

func (r *Registry) get(name string, create func() (domainChat.ModelProvider, error)) (domainChat.ModelProvider, error) {
	r.mu.RLock()
	if cached, exists := r.cache[name]; exists {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, exists := r.cache[name]; exists {
		return cached, nil
	}

	provider, err := create()
	if err != nil {
		return nil, fmt.Errorf("failed to create provider '%s': %w", name, err)
	}
	r.cache[name] = provider
	return provider, nil
}
