// Package credentials resolves LLM provider API keys from the environment.
package credentials

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chatdf/chatdf/internal/config"
)

type ProviderName string

const (
	ProviderGemini ProviderName = "gemini"
	ProviderOpenAI ProviderName = "openai"
)

func ParseProviderName(raw string) (ProviderName, error) {
	name := ProviderName(strings.ToLower(strings.TrimSpace(raw)))
	switch name {
	case ProviderGemini, ProviderOpenAI:
		return name, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

// Provider reads each provider's key once and memoizes it. Absent and empty
// variables both resolve to "".
type Provider struct {
	lookup config.LookupFunc
	vars   map[ProviderName]string

	mu    sync.Mutex
	cache map[ProviderName]string
}

func NewProvider(cfg config.ProvidersConfig, lookup config.LookupFunc) (*Provider, error) {
	if lookup == nil {
		return nil, fmt.Errorf("lookup function is required")
	}
	return &Provider{
		lookup: lookup,
		vars: map[ProviderName]string{
			ProviderGemini: cfg.GeminiKeyEnv,
			ProviderOpenAI: cfg.OpenAIKeyEnv,
		},
		cache: map[ProviderName]string{},
	}, nil
}

func (p *Provider) Key(name ProviderName) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if value, ok := p.cache[name]; ok {
		return value
	}
	variable := p.vars[name]
	if variable == "" {
		return ""
	}
	value, _ := p.lookup(variable)
	p.cache[name] = value
	return value
}

// Variable returns the environment variable consulted for name.
func (p *Provider) Variable(name ProviderName) string {
	return p.vars[name]
}
