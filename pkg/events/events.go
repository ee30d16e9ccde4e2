// Package events carries session activity from agents and the group chat
// manager to observers such as the TUI, the transcript stream and metrics.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies the type of event.
type Kind string

const (
	KindMessage         Kind = "message"
	KindSpeakerSelected Kind = "speaker_selected"
	KindCodeExecuted    Kind = "code_executed"
	KindInnerThoughts   Kind = "inner_thoughts"
	KindFunctionCall    Kind = "function_call"
	KindFunctionReturn  Kind = "function_return"
	KindAskUser         Kind = "ask_user"
	KindChatEnd         Kind = "chat_end"
	KindError           Kind = "error"
)

// Event is an immutable notification of session activity.
type Event struct {
	Kind    Kind      `json:"kind"`
	Session string    `json:"session,omitempty"`
	Agent   string    `json:"agent,omitempty"`
	Time    time.Time `json:"time"`
	Data    any       `json:"data,omitempty"`
}

// MessageData accompanies KindMessage.
type MessageData struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Role      string   `json:"role"`
	Text      string   `json:"text"`
	ToolCalls []string `json:"tool_calls,omitempty"`
}

// SpeakerData accompanies KindSpeakerSelected.
type SpeakerData struct {
	Speaker string `json:"speaker"`
	Round   int    `json:"round"`
	Method  string `json:"method"`
}

// ThoughtData accompanies KindInnerThoughts.
type ThoughtData struct {
	Text string `json:"text"`
}

// ErrorData accompanies KindError.
type ErrorData struct {
	Error string `json:"error"`
}

// CodeData accompanies KindCodeExecuted.
type CodeData struct {
	Blocks   int    `json:"blocks"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// FunctionData accompanies KindFunctionCall and KindFunctionReturn.
type FunctionData struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// AskData accompanies KindAskUser.
type AskData struct {
	QuestionID string   `json:"question_id"`
	Text       string   `json:"text"`
	Options    []string `json:"options,omitempty"`
}

// EndData accompanies KindChatEnd.
type EndData struct {
	Turns   int    `json:"turns"`
	Summary string `json:"summary"`
	Reason  string `json:"reason,omitempty"`
}

// Publisher accepts events. Agents depend on this rather than on Bus.
type Publisher interface {
	Publish(e Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}

// Subscription receives events from a Bus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// Bus fans out events to all active subscribers. It is safe for concurrent
// use. A subscriber whose buffer is full misses the event; the loop driving
// the agents never blocks on an observer.
type Bus struct {
	session string

	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

// NewBus creates a Bus stamping events with session when they carry none.
func NewBus(session string) *Bus {
	return &Bus{session: session, subs: make(map[*Subscription]struct{})}
}

// Subscribe creates a subscription with the given channel buffer size. The
// caller reads from sub.C and eventually calls Unsubscribe.
func (b *Bus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish implements Publisher.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Session == "" {
		e.Session = b.session
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close unsubscribes every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Emit publishes an event of kind for agent with data, tolerating a nil publisher.
func Emit(p Publisher, kind Kind, agent string, data any) {
	if p == nil {
		return
	}
	p.Publish(Event{Kind: kind, Agent: agent, Data: data})
}
