// Package local provides a Completer for completion-style inference servers
// commonly run on a workstation: llama.cpp, Ollama, text-generation-webui,
// LM Studio and vLLM. The chat is rendered into a single prompt by a
// [wrapper.Wrapper] and the raw completion is parsed back into a message.
package local

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"github.com/germanamz/huddle/pkg/providers/local/wrapper"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// EndpointType selects the server API.
type EndpointType string

const (
	LlamaCpp EndpointType = "llamacpp"
	Ollama   EndpointType = "ollama"
	WebUI    EndpointType = "webui"
	LMStudio EndpointType = "lmstudio"
	VLLM     EndpointType = "vllm"
)

// DefaultContextWindow is used when a backend does not declare one.
const DefaultContextWindow = 8192

// EndpointTypes lists every supported endpoint type.
func EndpointTypes() []EndpointType {
	return []EndpointType{LlamaCpp, Ollama, WebUI, LMStudio, VLLM}
}

var (
	// ErrUnknownEndpointType is returned for unsupported endpoint types.
	ErrUnknownEndpointType = errors.New("local: unknown endpoint type")
	// ErrModelRequired is returned when an endpoint type needs a model name.
	ErrModelRequired = errors.New("local: model is required for this endpoint type")
	// ErrGrammarUnsupported is returned when a grammar wrapper targets a
	// server that cannot apply grammars.
	ErrGrammarUnsupported = errors.New("local: grammar wrappers need a llamacpp or webui endpoint")
)

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for a completion-style server.
type Adapter struct {
	modeladapter.ModelAdapter

	Type          EndpointType
	Wrapper       wrapper.Wrapper
	ContextWindow int
}

// Options configures New.
type Options struct {
	Type          EndpointType
	Endpoint      string // Server root, e.g. "http://localhost:8080".
	Model         string // Required for ollama and vllm.
	Wrapper       string // Wrapper name (default wrapper.DefaultName).
	ContextWindow int    // Default DefaultContextWindow.
}

// New validates opts and builds an Adapter.
func New(opts Options) (*Adapter, error) {
	if !slices.Contains(EndpointTypes(), opts.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpointType, opts.Type)
	}

	if (opts.Type == Ollama || opts.Type == VLLM) && opts.Model == "" {
		return nil, fmt.Errorf("%w: %s", ErrModelRequired, opts.Type)
	}

	w, err := wrapper.New(opts.Wrapper)
	if err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}

	if w.Grammar(nil) != "" && opts.Type != LlamaCpp && opts.Type != WebUI {
		return nil, fmt.Errorf("%w: %s with %s", ErrGrammarUnsupported, w.Name(), opts.Type)
	}

	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}

	a := &Adapter{Type: opts.Type, Wrapper: w, ContextWindow: opts.ContextWindow}
	a.BaseURL = opts.Endpoint
	a.Name = opts.Model

	return a, nil
}

// Complete renders the chat into a prompt, requests a completion and parses
// the output.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	prompt := a.Wrapper.Format(c, tools)
	grammar := a.Wrapper.Grammar(tools)

	var (
		text string
		tc   usage.TokenCount
		err  error
	)

	switch a.Type {
	case LlamaCpp:
		text, tc, err = a.llamaCpp(ctx, prompt, grammar)
	case Ollama:
		text, tc, err = a.ollama(ctx, prompt)
	default:
		text, tc, err = a.completions(ctx, prompt, grammar)
	}
	if err != nil {
		return message.Message{}, fmt.Errorf("local: %s: %w", a.Type, err)
	}

	a.Usage.Add(tc)

	return a.Wrapper.Parse(text), nil
}

// ModelMaxTokens reports the context window; completion servers share it
// between prompt and output.
func (a *Adapter) ModelMaxTokens() int { return a.ContextWindow }

type llamaCppRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Grammar     string   `json:"grammar,omitempty"`
}

type llamaCppResponse struct {
	Content         string `json:"content"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	TokensPredicted int    `json:"tokens_predicted"`
}

func (a *Adapter) llamaCpp(ctx context.Context, prompt, grammar string) (string, usage.TokenCount, error) {
	req := llamaCppRequest{
		Prompt:      prompt,
		NPredict:    a.MaxTokens,
		Temperature: a.Temperature,
		Seed:        a.Seed,
		Stop:        a.Wrapper.Stop(),
		Grammar:     grammar,
	}

	var resp llamaCppResponse
	if err := a.PostJSON(ctx, "/completion", req, &resp); err != nil {
		return "", usage.TokenCount{}, err
	}

	return resp.Content, usage.TokenCount{InputTokens: resp.TokensEvaluated, OutputTokens: resp.TokensPredicted}, nil
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *Adapter) ollama(ctx context.Context, prompt string) (string, usage.TokenCount, error) {
	req := ollamaRequest{
		Model:  a.Name,
		Prompt: prompt,
		Raw:    true,
		Stream: false,
		Options: ollamaOptions{
			Temperature: a.Temperature,
			Seed:        a.Seed,
			NumPredict:  a.MaxTokens,
			NumCtx:      a.ContextWindow,
			Stop:        a.Wrapper.Stop(),
		},
	}

	var resp ollamaResponse
	if err := a.PostJSON(ctx, "/api/generate", req, &resp); err != nil {
		return "", usage.TokenCount{}, err
	}

	return resp.Response, usage.TokenCount{InputTokens: resp.PromptEvalCount, OutputTokens: resp.EvalCount}, nil
}

type completionsRequest struct {
	Model         string   `json:"model,omitempty"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Seed          *int     `json:"seed,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	GrammarString string   `json:"grammar_string,omitempty"`
}

type completionsResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// completions serves the OpenAI-style legacy endpoint exposed by webui,
// LM Studio and vLLM.
func (a *Adapter) completions(ctx context.Context, prompt, grammar string) (string, usage.TokenCount, error) {
	req := completionsRequest{
		Model:         a.Model(),
		Prompt:        prompt,
		MaxTokens:     a.MaxTokens,
		Temperature:   a.Temperature,
		Seed:          a.Seed,
		Stop:          a.Wrapper.Stop(),
		GrammarString: grammar,
	}

	var resp completionsResponse
	if err := a.PostJSON(ctx, "/v1/completions", req, &resp); err != nil {
		return "", usage.TokenCount{}, err
	}

	if len(resp.Choices) == 0 {
		return "", usage.TokenCount{}, errors.New("empty choices in response")
	}

	tc := usage.TokenCount{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	return resp.Choices[0].Text, tc, nil
}
