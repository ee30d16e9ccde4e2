package groupchat

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/modeladapter"
)

// Selector picks the next speaker after last.
type Selector interface {
	Select(ctx context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error)

// Select implements Selector.
func (f SelectorFunc) Select(ctx context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error) {
	return f(ctx, g, last)
}

// RoundRobinSelector picks the agent after last.
type RoundRobinSelector struct{}

// Select implements Selector.
func (RoundRobinSelector) Select(_ context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error) {
	return g.NextAgent(last), nil
}

// RandomSelector picks uniformly among the candidates.
type RandomSelector struct {
	// Intn returns a number in [0, n); nil uses math/rand/v2.
	Intn func(n int) int
}

// Select implements Selector.
func (r RandomSelector) Select(_ context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error) {
	candidates := g.Candidates(last)
	intn := r.Intn
	if intn == nil {
		intn = rand.IntN
	}
	return candidates[intn(len(candidates))], nil
}

// Manual selection tries this many times before falling back.
const manualAttempts = 3

// ManualSelector asks a human for the next speaker's number, falling back
// when the answer is empty, "q" or invalid too many times.
type ManualSelector struct {
	Input    agent.InputFunc
	Fallback Selector
}

// Select implements Selector.
func (m ManualSelector) Select(ctx context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error) {
	candidates := g.Candidates(last)

	if m.Input != nil {
		var b strings.Builder
		b.WriteString("Please select the next speaker from the following list:\n")
		for i, a := range candidates {
			fmt.Fprintf(&b, "%d: %s\n", i+1, a.Name())
		}
		b.WriteString("Enter the number of the next speaker (enter nothing or `q` to use auto selection): ")
		prompt := b.String()

		for range manualAttempts {
			answer, err := m.Input(ctx, prompt)
			if err != nil {
				return nil, fmt.Errorf("groupchat: manual selection: %w", err)
			}
			answer = strings.TrimSpace(answer)
			if answer == "" || answer == "q" {
				break
			}
			if i, err := strconv.Atoi(answer); err == nil && i >= 1 && i <= len(candidates) {
				return candidates[i-1], nil
			}
		}
	}

	fallback := m.Fallback
	if fallback == nil {
		fallback = RoundRobinSelector{}
	}
	return fallback.Select(ctx, g, last)
}

// selectSpeakerPrompt introduces the roles to the selecting model.
const selectSpeakerPrompt = `You are in a role play game. The following roles are available:
%s.

Read the following conversation.
Then select the next role from %s to play. Only return the role.`

// AutoSelector asks an LLM to name the next role. Answers that mention no
// candidate, or more than one, fall back to round robin.
type AutoSelector struct {
	Completer modeladapter.Completer
}

// Select implements Selector.
func (s AutoSelector) Select(ctx context.Context, g *GroupChat, last agent.Agent) (agent.Agent, error) {
	candidates := g.Candidates(last)
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if s.Completer == nil {
		return g.NextAgent(last), nil
	}

	names := make([]string, len(candidates))
	for i, a := range candidates {
		names[i] = a.Name()
	}
	list := "[" + strings.Join(names, ", ") + "]"

	c := chat.New(message.NewText("", role.System, fmt.Sprintf(selectSpeakerPrompt, g.Roles(), list)))
	for _, m := range g.Messages() {
		c.Append(m.WithRole(role.User))
	}
	c.Append(message.NewText("", role.System,
		fmt.Sprintf("Read the above conversation. Then select the next role from %s to play. Only return the role.", list)))

	reply, err := s.Completer.Complete(ctx, c, nil)
	if err != nil {
		return nil, fmt.Errorf("groupchat: select speaker: %w", err)
	}

	if picked, ok := pickMentioned(reply.TextContent(), candidates); ok {
		return picked, nil
	}
	return g.NextAgent(last), nil
}

// pickMentioned returns the single candidate named in text.
func pickMentioned(text string, candidates []agent.Agent) (agent.Agent, bool) {
	var found agent.Agent
	for _, a := range candidates {
		re := regexp.MustCompile(`(^|\W)` + regexp.QuoteMeta(a.Name()) + `(\W|$)`)
		if !re.MatchString(text) {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = a
	}
	return found, found != nil
}

// NewSelector returns the Selector for method. completer backs Auto (and
// the Manual fallback); input backs Manual.
func NewSelector(method SpeakerSelection, completer modeladapter.Completer, input agent.InputFunc) (Selector, error) {
	switch method {
	case Auto, "":
		return AutoSelector{Completer: completer}, nil
	case RoundRobin:
		return RoundRobinSelector{}, nil
	case Random:
		return RandomSelector{}, nil
	case Manual:
		return ManualSelector{Input: input, Fallback: AutoSelector{Completer: completer}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSpeakerSelection, method)
}
