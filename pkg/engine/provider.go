package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/providers/local"
	"github.com/germanamz/huddle/pkg/providers/openai"
)

// DefaultProviderKind is used when a provider declares no kind.
const DefaultProviderKind = "openai"

// DefaultOpenAIBaseURL is used when an openai provider has no base_url.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// ProviderFactory creates a Completer from a ProviderConfig and the sampling
// settings of the agent that uses it.
type ProviderFactory func(cfg ProviderConfig, llm LLMConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories[DefaultProviderKind] = newOpenAI
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func providerKind(p ProviderConfig) string {
	if p.Kind == "" {
		return DefaultProviderKind
	}
	return p.Kind
}

func newOpenAI(cfg ProviderConfig, llm LLMConfig) (modeladapter.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	a := openai.New(baseURL, cfg.APIKey, cfg.Model)
	a.Temperature = llm.Temperature
	a.Seed = llm.Seed
	a.MaxTokens = llm.MaxTokens

	return a, nil
}

// newLocal creates the completer of a memory backend.
func newLocal(cfg MemoryBackendConfig, llm LLMConfig) (*local.Adapter, error) {
	a, err := local.New(local.Options{
		Type:          local.EndpointType(cfg.EndpointType),
		Endpoint:      cfg.Endpoint,
		Model:         cfg.Model,
		Wrapper:       cfg.ModelWrapper,
		ContextWindow: cfg.ContextWindow,
	})
	if err != nil {
		return nil, err
	}

	a.Temperature = llm.Temperature
	a.Seed = llm.Seed
	a.MaxTokens = llm.MaxTokens

	return a, nil
}

// buildCompleter creates a Completer from a ProviderConfig using the registered
// factory for its Kind, wrapped with rate limiting when configured.
func buildCompleter(cfg ProviderConfig, llm LLMConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(providerKind(cfg))
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	c, err := factory(cfg, llm)
	if err != nil {
		return nil, err
	}

	return rateLimited(c, cfg.RateLimit)
}

func rateLimited(c modeladapter.Completer, rl RateLimitConfig) (modeladapter.Completer, error) {
	if rl.RPM <= 0 && rl.MaxRetries <= 0 && rl.BaseDelay == "" {
		return c, nil
	}

	var baseDelay time.Duration
	if rl.BaseDelay != "" {
		var err error
		baseDelay, err = time.ParseDuration(rl.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("engine: invalid base_delay %q: %w", rl.BaseDelay, err)
		}
	}

	return modeladapter.NewRateLimitedCompleter(c, modeladapter.RateLimitOpts{
		RPM:        rl.RPM,
		MaxRetries: rl.MaxRetries,
		BaseDelay:  baseDelay,
	}), nil
}
