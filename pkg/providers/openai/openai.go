// Package openai provides a Completer for OpenAI-compatible Chat Completions
// servers, including local ones that ignore the model and key.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

const completionsPath = "/chat/completions"

var _ modeladapter.Completer = (*Adapter)(nil)

// ErrEmptyChoices is returned when the server replies without any choice.
var ErrEmptyChoices = errors.New("openai: empty choices in response")

// Adapter implements modeladapter.Completer for the Chat Completions API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter. baseURL includes the API version prefix, e.g.
// "https://api.openai.com/v1" or "http://0.0.0.0:8080/v1".
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiKey}
	a.Name = model

	return a
}

// Complete sends a conversation to the server and returns the assistant's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	req := a.buildRequest(c, tools)

	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, req, &resp); err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	if len(resp.Choices) == 0 {
		return message.Message{}, ErrEmptyChoices
	}

	return parseChoice(resp.Choices[0]), nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model,omitempty"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Seed        *int         `json:"seed,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Name       string        `json:"name,omitempty"`
	Content    *string       `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiToolFunction `json:"function"`
}

type apiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiToolDef struct {
	Type     string         `json:"type"`
	Function apiToolDefFunc `json:"function"`
}

type apiToolDefFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// --- response types ---

type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiRespMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type apiRespMessage struct {
	Role      string        `json:"role"`
	Content   *string       `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool) apiRequest {
	req := apiRequest{
		Model:       a.Model(),
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
		Seed:        a.Seed,
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, apiToolDef{
			Type: "function",
			Function: apiToolDefFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema(),
			},
		})
	}

	for _, m := range c.Messages() {
		req.Messages = appendMessages(req.Messages, m)
	}

	return req
}

// validName reports whether s is accepted in the "name" field, which only
// allows letters, digits, underscores and dashes.
func validName(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		ok := r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}

func appendMessages(msgs []apiMessage, m message.Message) []apiMessage {
	name := ""
	if validName(m.Sender) {
		name = m.Sender
	}

	switch m.Role {
	case role.System:
		text := m.TextContent()
		return append(msgs, apiMessage{Role: "system", Content: &text})

	case role.User:
		text := m.TextContent()
		return append(msgs, apiMessage{Role: "user", Name: name, Content: &text})

	case role.Assistant:
		msg := apiMessage{Role: "assistant", Name: name}

		var text strings.Builder
		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				text.WriteString(v.Text)
			case content.ToolCall:
				msg.ToolCalls = append(msg.ToolCalls, apiToolCall{
					ID:   v.ID,
					Type: "function",
					Function: apiToolFunction{
						Name:      v.Name,
						Arguments: v.Arguments,
					},
				})
			}
		}

		if text.Len() > 0 {
			s := text.String()
			msg.Content = &s
		}

		return append(msgs, msg)

	case role.Tool:
		for _, tr := range m.ToolResults() {
			msgs = append(msgs, apiMessage{
				Role:       "tool",
				Content:    &tr.Content,
				ToolCallID: tr.ToolCallID,
			})
		}
	}

	return msgs
}

func parseChoice(choice apiChoice) message.Message {
	var parts []content.Part

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		parts = append(parts, content.Text{Text: *choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New("", role.Assistant, parts...)
}
