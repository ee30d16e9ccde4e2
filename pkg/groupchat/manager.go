package groupchat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/events"
	"go.uber.org/zap"
)

// DefaultManagerName is the manager's name when none is given.
const DefaultManagerName = "chat_manager"

// ErrNoMessage is returned when the manager is asked to run before it
// received anything.
var ErrNoMessage = errors.New("groupchat: manager has no message to relay")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Description   string
	Selector      Selector              // Default RoundRobinSelector.
	IsTermination agent.TerminationFunc // Default agent.IsTermination.
	Events        events.Publisher
	Logger        *zap.Logger
}

// Result summarises the last run of a Manager.
type Result struct {
	Rounds int
	Reason string
}

// Stop reasons reported in Result.Reason.
const (
	ReasonTermination = "termination message"
	ReasonMaxRound    = "max round reached"
	ReasonNoReply     = "speaker declined to reply"
)

// Manager drives a GroupChat. It is an agent: the conversation starts when a
// participant sends it a message and asks for a reply. The manager never
// replies itself, which ends the outer two-party chat once the group is done.
type Manager struct {
	name string
	gc   *GroupChat
	opts ManagerOptions

	mu     sync.Mutex
	from   string
	inbox  *message.Message
	result Result
}

var _ agent.Agent = (*Manager)(nil)

// NewManager creates a Manager for gc.
func NewManager(name string, gc *GroupChat, opts ManagerOptions) *Manager {
	if name == "" {
		name = DefaultManagerName
	}
	if opts.Description == "" {
		opts.Description = "Group chat manager."
	}
	if opts.Selector == nil {
		opts.Selector = RoundRobinSelector{}
	}
	if opts.IsTermination == nil {
		opts.IsTermination = agent.IsTermination
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Manager{name: name, gc: gc, opts: opts}
}

// Name implements agent.Agent.
func (m *Manager) Name() string { return m.name }

// Description implements agent.Agent.
func (m *Manager) Description() string { return m.opts.Description }

// GroupChat returns the managed group chat.
func (m *Manager) GroupChat() *GroupChat { return m.gc }

// Result returns the outcome of the last run.
func (m *Manager) Result() Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.result
}

// Receive implements agent.Agent. The message becomes the next one relayed.
func (m *Manager) Receive(_ context.Context, from string, msg message.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.from = from
	m.inbox = &msg
	return nil
}

// Reset implements agent.Agent. The transcript and every participant are
// reset.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.from, m.inbox, m.result = "", nil, Result{}
	m.mu.Unlock()

	m.gc.Reset()
	for _, a := range m.gc.agents {
		a.Reset()
	}
}

// Reply implements agent.Agent. It runs the group conversation and always
// declines to answer.
func (m *Manager) Reply(ctx context.Context, _ string) (message.Message, bool, error) {
	m.mu.Lock()
	from, inbox := m.from, m.inbox
	m.inbox = nil
	m.mu.Unlock()

	if inbox == nil {
		return message.Message{}, false, ErrNoMessage
	}

	res, err := m.run(ctx, from, *inbox)

	m.mu.Lock()
	m.result = res
	m.mu.Unlock()

	if err != nil {
		return message.Message{}, false, err
	}
	return message.Message{}, false, nil
}

func (m *Manager) run(ctx context.Context, from string, msg message.Message) (Result, error) {
	speaker, _ := m.gc.Agent(from)
	name := from
	res := Result{Reason: ReasonMaxRound}

	for round := range m.gc.MaxRound() {
		res.Rounds = round + 1

		m.gc.Append(msg, name)
		if round > 0 {
			agent.PublishMessage(m.opts.Events, name, m.name, msg)
		}

		if m.opts.IsTermination(msg) {
			res.Reason = ReasonTermination
			break
		}

		msg.Sender = name
		for _, a := range m.gc.agents {
			if a.Name() == name {
				continue
			}
			if err := a.Receive(ctx, m.name, msg); err != nil {
				return res, fmt.Errorf("groupchat: deliver to %s: %w", a.Name(), err)
			}
		}

		if round == m.gc.MaxRound()-1 {
			break
		}

		next, err := m.opts.Selector.Select(ctx, m.gc, speaker)
		if err != nil {
			return res, err
		}
		speaker, name = next, next.Name()

		events.Emit(m.opts.Events, events.KindSpeakerSelected, m.name, events.SpeakerData{Speaker: name, Round: round + 1, Method: selectorName(m.opts.Selector)})
		m.opts.Logger.Debug("speaker selected", zap.String("speaker", name), zap.Int("round", round+1))

		reply, ok, err := speaker.Reply(ctx, m.name)
		if err != nil {
			return res, fmt.Errorf("groupchat: %s: %w", name, err)
		}
		if !ok {
			res.Reason = ReasonNoReply
			break
		}
		msg = reply
	}

	m.opts.Logger.Info("group chat finished",
		zap.String("manager", m.name),
		zap.Int("rounds", res.Rounds),
		zap.String("reason", res.Reason),
	)

	return res, nil
}

func selectorName(s Selector) string {
	switch s.(type) {
	case AutoSelector:
		return string(Auto)
	case RoundRobinSelector:
		return string(RoundRobin)
	case RandomSelector:
		return string(Random)
	case ManualSelector:
		return string(Manual)
	}
	return "custom"
}
