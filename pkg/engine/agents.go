package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/memagent"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"go.uber.org/zap"
)

// DefaultCacheSeed keys the completion cache when no seed is configured.
const DefaultCacheSeed = 41

// ErrNoProviders is returned when an LLM-backed agent has nothing to call.
var ErrNoProviders = errors.New("engine: no providers configured")

func (e *Engine) buildAgent(ctx context.Context, name string) (agent.Agent, error) {
	ac, _ := e.cfg.Agent(name)

	if ac.Kind == KindMemGPT {
		return e.buildMemGPT(ctx, ac)
	}

	opts, err := e.conversableOptions(ac)
	if err != nil {
		return nil, err
	}

	if ac.Kind == KindUserProxy {
		if ac.LLM != nil {
			opts.Completer, err = e.completer(e.cfg.LLM.Merge(ac.LLM))
			if err != nil {
				return nil, fmt.Errorf("engine: agent %q: %w", ac.Name, err)
			}
		}
		return agent.NewUserProxy(ac.Name, opts), nil
	}

	completer, err := e.completer(e.cfg.LLM.Merge(ac.LLM))
	if err != nil {
		return nil, fmt.Errorf("engine: agent %q: %w", ac.Name, err)
	}

	return agent.NewAssistant(ac.Name, completer, opts), nil
}

func (e *Engine) conversableOptions(ac AgentConfig) (agent.Options, error) {
	opts := agent.Options{
		Description:             ac.Description,
		SystemMessage:           ac.SystemMessage,
		MaxConsecutiveAutoReply: ac.MaxConsecutiveAutoReply,
		DefaultAutoReply:        ac.DefaultAutoReply,
		CodeExecution:           ac.CodeExecution,
		Input:                   e.responder.Input(ac.Name),
		Events:                  e.bus,
		Logger:                  e.logger,
		Middleware:              []agent.Middleware{agent.Recovery(), agent.Logger(e.logger, ac.Name)},
	}

	if ac.HumanInputMode != "" {
		mode, err := agent.ParseHumanInputMode(ac.HumanInputMode)
		if err != nil {
			return opts, fmt.Errorf("engine: agent %q: %w", ac.Name, err)
		}
		opts.HumanInputMode = mode
	}

	if ac.Termination.Suffix != "" {
		opts.IsTermination = agent.EndsWith(ac.Termination.Suffix)
	}

	if l := e.cfg.LLM.Merge(ac.LLM); l.Timeout != "" {
		d, err := time.ParseDuration(l.Timeout)
		if err != nil {
			return opts, fmt.Errorf("engine: agent %q: %w", ac.Name, err)
		}
		opts.Middleware = append(opts.Middleware, agent.Timeout(d))
	}

	tbs, err := e.agentToolboxes(ac)
	if err != nil {
		return opts, err
	}
	opts.ToolBoxes = tbs

	return opts, nil
}

func (e *Engine) agentToolboxes(ac AgentConfig) ([]*toolbox.ToolBox, error) {
	var tbs []*toolbox.ToolBox
	for _, name := range ac.Toolboxes {
		if name == ToolboxAsk {
			tbs = append(tbs, e.responder.Tools(ac.Name))
			continue
		}

		tb, ok := e.toolboxes[name]
		if !ok {
			return nil, fmt.Errorf("engine: agent %q: toolbox %q not found", ac.Name, name)
		}
		tbs = append(tbs, tb)
	}
	return tbs, nil
}

func (e *Engine) buildMemGPT(ctx context.Context, ac AgentConfig) (agent.Agent, error) {
	mc := ac.Memory
	llm := e.cfg.LLM.Merge(ac.LLM)

	var (
		completer modeladapter.Completer
		counter   modeladapter.TokenCounter
		window    int
		err       error
	)

	backend, ok := e.memoryBackend(mc.Backend)
	if ok {
		completer, err = e.backendCompleter(backend, llm)
		window = backend.ContextWindow
	} else {
		provider, _ := e.provider(mc.Backend)
		llm.Providers = []string{provider.Name}
		completer, err = e.completer(llm)
		if provider.Encoding != "" {
			counter = modeladapter.NewTiktokenCounter(provider.Encoding)
		}
		window = provider.ContextWindow
	}
	if err != nil {
		return nil, fmt.Errorf("engine: agent %q: %w", ac.Name, err)
	}

	store, err := e.memoryStore()
	if err != nil {
		return nil, err
	}

	a, err := memagent.New(ctx, ac.Name, completer, store.For(ac.Name), memagent.Options{
		Description:         ac.Description,
		Preset:              mc.Preset,
		SystemPrompt:        mc.SystemMessage,
		Persona:             mc.Persona,
		Human:               mc.Human,
		DefaultAutoReply:    ac.DefaultAutoReply,
		MaxSteps:            mc.MaxSteps,
		ContextWindow:       window,
		Counter:             counter,
		ShowInnerThoughts:   mc.ShowInnerThoughts,
		ShowFunctionOutputs: mc.ShowFunctionOutputs,
		Events:              e.bus,
		Logger:              e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return a, nil
}

// memoryBackend resolves a backend name; empty selects the first backend
// unless the name refers to a provider.
func (e *Engine) memoryBackend(name string) (MemoryBackendConfig, bool) {
	for _, b := range e.cfg.MemoryBackends {
		if b.Name == name || (name == "" && len(e.cfg.MemoryBackends) > 0) {
			return b, true
		}
	}
	return MemoryBackendConfig{}, false
}

func (e *Engine) provider(name string) (ProviderConfig, bool) {
	for _, p := range e.cfg.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (e *Engine) backendCompleter(b MemoryBackendConfig, llm LLMConfig) (modeladapter.Completer, error) {
	scope := "memory:" + b.Name
	key := scope + llmKey(nil, llm)
	if c, ok := e.completers[key]; ok {
		return c, nil
	}

	a, err := newLocal(b, llm)
	if err != nil {
		return nil, err
	}

	c, err := rateLimited(a, b.RateLimit)
	if err != nil {
		return nil, err
	}

	c = e.cached(e.metrics.Completer(scope, c), llm, scope)
	e.completers[key] = c

	return c, nil
}

// completer returns the completer for llm, building it on first use so
// agents sharing a config share rate limits and usage.
func (e *Engine) completer(llm LLMConfig) (modeladapter.Completer, error) {
	names := llm.Providers
	if len(names) == 0 {
		for _, p := range e.cfg.Providers {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoProviders
	}

	key := llmKey(names, llm)
	if c, ok := e.completers[key]; ok {
		return c, nil
	}

	list := make([]modeladapter.Named, 0, len(names))
	for _, name := range names {
		pc, ok := e.provider(name)
		if !ok {
			return nil, fmt.Errorf("engine: provider %q not found", name)
		}

		c, err := buildCompleter(pc, llm)
		if err != nil {
			return nil, fmt.Errorf("engine: provider %q: %w", name, err)
		}
		list = append(list, modeladapter.Named{Name: name, Completer: e.metrics.Completer(name, c)})
	}

	var c modeladapter.Completer = list[0].Completer
	if len(list) > 1 {
		c = modeladapter.NewFallback(list...)
	}

	c = e.cached(c, llm, strings.Join(names, ","))
	e.completers[key] = c

	e.logger.Debug("completer built", zap.Strings("providers", names))

	return c, nil
}

func (e *Engine) cached(c modeladapter.Completer, llm LLMConfig, scope string) modeladapter.Completer {
	if e.cache == nil {
		return c
	}

	seed := DefaultCacheSeed
	if llm.Seed != nil {
		seed = *llm.Seed
	}

	cc := modeladapter.NewCachedCompleter(c, e.cache, seed, scope)
	cc.OnLookup = e.metrics.CacheLookup

	return cc
}

func llmKey(names []string, llm LLMConfig) string {
	var b strings.Builder
	b.WriteString(strings.Join(names, ","))
	if llm.Seed != nil {
		fmt.Fprintf(&b, "|seed=%d", *llm.Seed)
	}
	if llm.Temperature != nil {
		fmt.Fprintf(&b, "|t=%g", *llm.Temperature)
	}
	fmt.Fprintf(&b, "|max=%d", llm.MaxTokens)
	return b.String()
}
