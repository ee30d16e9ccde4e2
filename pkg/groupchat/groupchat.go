// Package groupchat runs a conversation among several agents. A [GroupChat]
// holds the participants, the shared transcript and the round limit; a
// [Manager] is itself an agent that, once it receives a message, relays it
// to every participant, picks the next speaker and repeats until the round
// limit or a termination message.
package groupchat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
)

// DefaultMaxRound is used when MaxRound is not set.
const DefaultMaxRound = 10

var (
	// ErrNoAgents is returned when a group chat is created without agents.
	ErrNoAgents = errors.New("groupchat: at least one agent is required")
	// ErrDuplicateAgent is returned when two agents share a name.
	ErrDuplicateAgent = errors.New("groupchat: duplicate agent name")
	// ErrUnknownSpeakerSelection is returned for unknown selection methods.
	ErrUnknownSpeakerSelection = errors.New("groupchat: unknown speaker selection method")
)

// SpeakerSelection names a strategy for picking the next speaker.
type SpeakerSelection string

const (
	// Auto asks an LLM to pick the next role.
	Auto SpeakerSelection = "auto"
	// RoundRobin picks agents in registration order.
	RoundRobin SpeakerSelection = "round_robin"
	// Random picks uniformly among the candidates.
	Random SpeakerSelection = "random"
	// Manual asks a human to pick.
	Manual SpeakerSelection = "manual"
)

// ParseSpeakerSelection validates s, accepting any case.
func ParseSpeakerSelection(s string) (SpeakerSelection, error) {
	if s == "" {
		return Auto, nil
	}
	switch m := SpeakerSelection(strings.ToLower(s)); m {
	case Auto, RoundRobin, Random, Manual:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpeakerSelection, s)
}

// Options configures a GroupChat.
type Options struct {
	MaxRound           int // 0 selects DefaultMaxRound.
	AllowRepeatSpeaker bool
}

// GroupChat is the participant list and shared transcript of a group
// conversation.
type GroupChat struct {
	agents   []agent.Agent
	messages *chat.Chat
	opts     Options
}

// New creates a GroupChat. Agent names must be unique.
func New(agents []agent.Agent, opts Options) (*GroupChat, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}

	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.Name()] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, a.Name())
		}
		seen[a.Name()] = true
	}

	if opts.MaxRound <= 0 {
		opts.MaxRound = DefaultMaxRound
	}

	return &GroupChat{
		agents:   append([]agent.Agent(nil), agents...),
		messages: chat.New(),
		opts:     opts,
	}, nil
}

// Agents returns the participants in order.
func (g *GroupChat) Agents() []agent.Agent {
	return append([]agent.Agent(nil), g.agents...)
}

// AgentNames returns participant names in order.
func (g *GroupChat) AgentNames() []string {
	names := make([]string, len(g.agents))
	for i, a := range g.agents {
		names[i] = a.Name()
	}
	return names
}

// Agent returns the named participant.
func (g *GroupChat) Agent(name string) (agent.Agent, bool) {
	for _, a := range g.agents {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// MaxRound returns the round limit.
func (g *GroupChat) MaxRound() int { return g.opts.MaxRound }

// AllowRepeatSpeaker reports whether an agent may speak twice in a row.
func (g *GroupChat) AllowRepeatSpeaker() bool { return g.opts.AllowRepeatSpeaker }

// Messages returns the shared transcript.
func (g *GroupChat) Messages() []message.Message { return g.messages.Messages() }

// Append adds msg, sent by speaker, to the transcript.
func (g *GroupChat) Append(msg message.Message, speaker string) {
	msg.Sender = speaker
	g.messages.Append(msg)
}

// Reset clears the transcript.
func (g *GroupChat) Reset() { g.messages.Reset() }

// NextAgent returns the agent after current in order, wrapping around. An
// unknown current yields the first agent.
func (g *GroupChat) NextAgent(current agent.Agent) agent.Agent {
	if current == nil {
		return g.agents[0]
	}
	for i, a := range g.agents {
		if a.Name() == current.Name() {
			return g.agents[(i+1)%len(g.agents)]
		}
	}
	return g.agents[0]
}

// Candidates returns the agents eligible after last: everyone, or everyone
// but last when repeats are disallowed and another agent exists.
func (g *GroupChat) Candidates(last agent.Agent) []agent.Agent {
	if g.opts.AllowRepeatSpeaker || last == nil || len(g.agents) < 2 {
		return g.Agents()
	}
	out := make([]agent.Agent, 0, len(g.agents)-1)
	for _, a := range g.agents {
		if a.Name() != last.Name() {
			out = append(out, a)
		}
	}
	return out
}

// Roles lists each agent with its description, one per line.
func (g *GroupChat) Roles() string {
	lines := make([]string, len(g.agents))
	for i, a := range g.agents {
		lines[i] = a.Name() + ": " + a.Description()
	}
	return strings.Join(lines, "\n")
}
