// Package agent provides conversable agents: participants that receive
// messages from peers and produce replies through a pipeline of human input,
// code execution, an LLM and a default auto reply. Assistants and user
// proxies are configurations of the same [Conversable] type; anything else
// that can take part in a chat (the group chat manager, memory agents)
// implements [Agent].
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/germanamz/huddle/pkg/chats/message"
)

// TerminationToken ends a conversation when a message finishes with it.
const TerminationToken = "TERMINATE"

// DefaultMaxConsecutiveAutoReply bounds automatic replies to one peer.
const DefaultMaxConsecutiveAutoReply = 100

var (
	// ErrUnknownHumanInputMode is returned for modes other than ALWAYS, TERMINATE and NEVER.
	ErrUnknownHumanInputMode = errors.New("agent: unknown human input mode")
	// ErrMaxToolIterations is returned when tool calls keep coming back past the limit.
	ErrMaxToolIterations = errors.New("agent: max tool iterations reached")
)

// Agent is a chat participant.
type Agent interface {
	Name() string
	Description() string
	// Receive records msg sent by the peer named from.
	Receive(ctx context.Context, from string, msg message.Message) error
	// Reply produces the next message for the peer named to. ok is false when
	// the agent declines to reply, which ends the conversation.
	Reply(ctx context.Context, to string) (msg message.Message, ok bool, err error)
	// Reset forgets every conversation.
	Reset()
}

// Recorder is implemented by agents that keep their own outgoing messages,
// so a conversation they open is part of their history.
type Recorder interface {
	Sent(to string, msg message.Message)
}

// HumanInputMode controls when an agent asks a human before replying.
type HumanInputMode string

const (
	// Always asks on every turn.
	Always HumanInputMode = "ALWAYS"
	// Terminate asks when a termination message arrives or the auto-reply
	// limit is reached.
	Terminate HumanInputMode = "TERMINATE"
	// Never replies automatically until termination or the limit.
	Never HumanInputMode = "NEVER"
)

// ParseHumanInputMode validates s, accepting any case.
func ParseHumanInputMode(s string) (HumanInputMode, error) {
	switch m := HumanInputMode(strings.ToUpper(s)); m {
	case Always, Terminate, Never:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHumanInputMode, s)
}

// TerminationFunc reports whether a message ends the conversation.
type TerminationFunc func(message.Message) bool

// IsTermination reports whether m's text, right-trimmed, ends with
// TerminationToken.
func IsTermination(m message.Message) bool {
	return EndsWith(TerminationToken)(m)
}

// EndsWith returns a TerminationFunc matching messages whose right-trimmed
// text ends with suffix.
func EndsWith(suffix string) TerminationFunc {
	return func(m message.Message) bool {
		return strings.HasSuffix(strings.TrimRightFunc(m.TextContent(), unicode.IsSpace), suffix)
	}
}

// InputFunc asks a human and blocks until an answer (possibly empty) arrives.
type InputFunc func(ctx context.Context, prompt string) (string, error)
