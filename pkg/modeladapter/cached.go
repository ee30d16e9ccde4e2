package modeladapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

var _ Completer = (*CachedCompleter)(nil)

// Cache stores completion replies by key. Implementations live in
// pkg/modeladapter/cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedCompleter replays earlier replies for identical requests made with
// the same seed, so reruns of a session are reproducible and free.
type CachedCompleter struct {
	wrapped

	cache Cache
	seed  int
	scope string

	// OnLookup, when set, is called after every cache lookup.
	OnLookup func(hit bool)
}

// NewCachedCompleter wraps inner. scope separates entries of different
// backends sharing one cache (typically the provider name and model).
func NewCachedCompleter(inner Completer, c Cache, seed int, scope string) *CachedCompleter {
	return &CachedCompleter{wrapped: wrapped{inner: inner}, cache: c, seed: seed, scope: scope}
}

type cachedCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type cachedResult struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

type cachedMessage struct {
	Sender  string         `json:"sender,omitempty"`
	Role    role.Role      `json:"role"`
	Text    string         `json:"text,omitempty"`
	Calls   []cachedCall   `json:"calls,omitempty"`
	Results []cachedResult `json:"results,omitempty"`
}

type cacheKey struct {
	Seed     int             `json:"seed"`
	Scope    string          `json:"scope"`
	Messages []cachedMessage `json:"messages"`
	Tools    []string        `json:"tools,omitempty"`
}

func toCached(m message.Message) cachedMessage {
	cm := cachedMessage{Sender: m.Sender, Role: m.Role, Text: m.TextContent()}
	for _, tc := range m.ToolCalls() {
		cm.Calls = append(cm.Calls, cachedCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	for _, tr := range m.ToolResults() {
		cm.Results = append(cm.Results, cachedResult{ID: tr.ToolCallID, Name: tr.Name, Content: tr.Content, IsError: tr.IsError})
	}
	return cm
}

func fromCached(cm cachedMessage) message.Message {
	var parts []content.Part
	if cm.Text != "" {
		parts = append(parts, content.Text{Text: cm.Text})
	}
	for _, c := range cm.Calls {
		parts = append(parts, content.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	for _, r := range cm.Results {
		parts = append(parts, content.ToolResult{ToolCallID: r.ID, Name: r.Name, Content: r.Content, IsError: r.IsError})
	}
	return message.New(cm.Sender, cm.Role, parts...)
}

// Key returns the cache key for a request.
func (cc *CachedCompleter) Key(c *chat.Chat, tools []toolbox.Tool) (string, error) {
	k := cacheKey{Seed: cc.seed, Scope: cc.scope}
	for _, m := range c.Messages() {
		k.Messages = append(k.Messages, toCached(m))
	}
	for _, t := range tools {
		k.Tools = append(k.Tools, t.Name+":"+string(t.InputSchema))
	}

	raw, err := json.Marshal(k)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Complete implements Completer.
func (cc *CachedCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	key, err := cc.Key(c, tools)
	if err != nil {
		return message.Message{}, fmt.Errorf("modeladapter: cache key: %w", err)
	}

	raw, hit, err := cc.cache.Get(ctx, key)
	if err != nil {
		return message.Message{}, fmt.Errorf("modeladapter: cache get: %w", err)
	}

	if cc.OnLookup != nil {
		cc.OnLookup(hit)
	}

	if hit {
		var cm cachedMessage
		if err := json.Unmarshal(raw, &cm); err == nil {
			cc.UsageTracker().AddCached()
			return fromCached(cm), nil
		}
	}

	reply, err := cc.inner.Complete(ctx, c, tools)
	if err != nil {
		return message.Message{}, err
	}

	encoded, err := json.Marshal(toCached(reply))
	if err != nil {
		return message.Message{}, fmt.Errorf("modeladapter: cache encode: %w", err)
	}

	if err := cc.cache.Set(ctx, key, encoded); err != nil {
		return message.Message{}, fmt.Errorf("modeladapter: cache set: %w", err)
	}

	return reply, nil
}
