// Package wrapper formats chats and function definitions into a single
// prompt for completion-only models, and parses their raw output back into
// messages.
//
// Function calls are exchanged as a JSON object:
//
//	{"function": "send_message", "params": {"inner_thoughts": "...", "message": "..."}}
//
// The "inner_thoughts" parameter is lifted into a text part of the parsed
// message; everything else becomes the call's arguments.
package wrapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/google/uuid"
)

// DefaultName is used when a backend names no wrapper.
const DefaultName = "airoboros-l2-70b-2.1"

// GrammarSuffix selects the grammar-constrained variant of a wrapper.
const GrammarSuffix = "-grammar"

// InnerThoughtsParam is the function parameter carrying the model's private
// reasoning.
const InnerThoughtsParam = "inner_thoughts"

// ErrUnknownWrapper is returned by New for unregistered names.
var ErrUnknownWrapper = errors.New("wrapper: unknown model wrapper")

// Wrapper adapts a chat to a completion-only model.
type Wrapper interface {
	// Name returns the registered name, including any grammar suffix.
	Name() string
	// Format renders the chat and the callable functions into a prompt that
	// ends where the model should continue.
	Format(c *chat.Chat, tools []toolbox.Tool) string
	// Parse converts raw model output into an assistant message.
	Parse(text string) message.Message
	// Stop returns the stop sequences for the prompt format.
	Stop() []string
	// Grammar returns a GBNF grammar constraining the output, or "" when the
	// wrapper is unconstrained.
	Grammar(tools []toolbox.Tool) string
}

var registry = map[string]func() Wrapper{
	DefaultName:           func() Wrapper { return &airoboros{name: DefaultName} },
	"airoboros-l2-70b":    func() Wrapper { return &airoboros{name: "airoboros-l2-70b"} },
	"chatml":              func() Wrapper { return &chatML{name: "chatml"} },
	"dolphin-2.1-mistral": func() Wrapper { return &chatML{name: "dolphin-2.1-mistral"} },
}

// New returns the wrapper registered under name. An empty name selects
// DefaultName; a GrammarSuffix selects the constrained variant.
func New(name string) (Wrapper, error) {
	if name == "" {
		name = DefaultName
	}

	base, constrained := strings.CutSuffix(name, GrammarSuffix)

	factory, ok := registry[base]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownWrapper, name, strings.Join(Names(), ", "))
	}

	w := factory()
	if constrained {
		return &grammarWrapper{Wrapper: w}, nil
	}

	return w, nil
}

// Names lists every accepted wrapper name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry)*2)
	for n := range registry {
		names = append(names, n, n+GrammarSuffix)
	}
	sort.Strings(names)
	return names
}

// functionCall is the JSON shape models are asked to produce.
type functionCall struct {
	Function string         `json:"function"`
	Params   map[string]any `json:"params"`
}

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type schema struct {
	Properties map[string]schemaProperty `json:"properties"`
}

// renderFunctions writes the function list in the indented form the
// supported models were tuned on.
func renderFunctions(b *strings.Builder, tools []toolbox.Tool) {
	if len(tools) == 0 {
		return
	}

	b.WriteString("Available functions:\n")
	for _, t := range tools {
		fmt.Fprintf(b, "%s:\n  description: %s\n  params:\n", t.Name, t.Description)

		var s schema
		_ = json.Unmarshal(t.InputSchema, &s)

		keys := make([]string, 0, len(s.Properties)+1)
		for k := range s.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(b, "    %s: Deep inner monologue private to you only.\n", InnerThoughtsParam)
		for _, k := range keys {
			if k == InnerThoughtsParam {
				continue
			}
			fmt.Fprintf(b, "    %s: %s\n", k, s.Properties[k].Description)
		}
	}
}

// renderCall renders the function calls of an assistant message in the
// output JSON shape, folding its text into inner_thoughts.
func renderCall(m message.Message) string {
	calls := m.ToolCalls()
	thoughts := m.TextContent()

	if len(calls) == 0 {
		return thoughts
	}

	var out []string
	for _, tc := range calls {
		params := map[string]any{}
		if tc.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Arguments), &params)
		}
		if thoughts != "" {
			params[InnerThoughtsParam] = thoughts
		}

		raw, _ := json.Marshal(functionCall{Function: tc.Name, Params: params})
		out = append(out, string(raw))
	}

	return strings.Join(out, "\n")
}

// userLine renders a user turn, prefixing the sender in multi-party chats.
func userLine(m message.Message) string {
	if m.Sender == "" {
		return m.TextContent()
	}
	return m.Sender + ": " + m.TextContent()
}

// parseOutput extracts a function call from raw model output. Output without
// a decodable call becomes a plain text message.
func parseOutput(text string) message.Message {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return message.NewText("", role.Assistant, text)
	}

	var fc functionCall
	if err := json.Unmarshal([]byte(text[start:end+1]), &fc); err != nil || fc.Function == "" {
		return message.NewText("", role.Assistant, text)
	}

	var parts []content.Part
	if thoughts, ok := fc.Params[InnerThoughtsParam].(string); ok && thoughts != "" {
		parts = append(parts, content.Text{Text: thoughts})
	}
	delete(fc.Params, InnerThoughtsParam)

	if fc.Params == nil {
		fc.Params = map[string]any{}
	}
	args, _ := json.Marshal(fc.Params)

	parts = append(parts, content.ToolCall{
		ID:        "call_" + uuid.NewString(),
		Name:      fc.Function,
		Arguments: string(args),
	})

	return message.New("", role.Assistant, parts...)
}

// functionNames returns the tool names in declaration order without duplicates.
func functionNames(tools []toolbox.Tool) []string {
	var names []string
	for _, t := range tools {
		if !slices.Contains(names, t.Name) {
			names = append(names, t.Name)
		}
	}
	return names
}
