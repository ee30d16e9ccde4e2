// Package app is the bubbletea model of the huddle TUI: a scrolling
// transcript of the conversation, a spinner while it runs, the ask prompt
// when an agent waits for the human, and a status line.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/huddle/cmd/huddle/internal/askprompt"
	"github.com/germanamz/huddle/cmd/huddle/internal/format"
	"github.com/germanamz/huddle/cmd/huddle/internal/msgs"
	"github.com/germanamz/huddle/cmd/huddle/internal/styles"
	"github.com/germanamz/huddle/pkg/ask"
	"github.com/germanamz/huddle/pkg/engine"
	"github.com/germanamz/huddle/pkg/events"
)

// Runner runs one conversation.
type Runner interface {
	Run(ctx context.Context, text string) (engine.Result, error)
}

// Responder delivers the human's answers.
type Responder interface {
	Respond(questionID, answer string) error
}

type state int

const (
	stateRunning state = iota
	stateDone
)

// Model is the root bubbletea model.
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	runner    Runner
	responder Responder
	message   string
	dark      bool

	renderer *format.Renderer
	viewport viewport.Model
	spinner  spinner.Model
	blocks   []string

	askQueue []ask.Question
	ask      *askprompt.Model

	state   state
	speaker string
	turns   int
	elapsed time.Duration
	result  engine.Result
	err     error

	width, height int
}

// Options configures New.
type Options struct {
	Message string // Opening message; empty uses the configured one.
	Dark    bool   // Dark terminal background.
}

// New creates the model. Cancelling ctx, or quitting, stops the conversation.
func New(ctx context.Context, runner Runner, responder Responder, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.SpinnerStyle

	return Model{
		ctx:       ctx,
		cancel:    cancel,
		runner:    runner,
		responder: responder,
		message:   opts.Message,
		dark:      opts.Dark,
		renderer:  format.NewRenderer(format.DefaultWidth, opts.Dark),
		viewport:  viewport.New(format.DefaultWidth, 20),
		spinner:   sp,
	}
}

// Init starts the conversation and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run())
}

func (m Model) run() tea.Cmd {
	runner, ctx, text := m.runner, m.ctx, m.message
	return func() tea.Msg {
		start := time.Now()
		res, err := runner.Run(ctx, text)
		return msgs.RunCompleteMsg{Result: res, Err: err, Duration: time.Since(start)}
	}
}

// Done reports whether the conversation has finished.
func (m Model) Done() bool { return m.state == stateDone }

// Result returns the finished conversation.
func (m Model) Result() engine.Result { return m.result }

// Err returns the error the conversation failed with.
func (m Model) Err() error { return m.err }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderer = format.NewRenderer(m.width-2, m.dark)
		if m.ask != nil {
			m.ask.SetWidth(m.width)
		}
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case msgs.EventMsg:
		m.observe(msg.Event)
		return m, nil

	case msgs.AskUserMsg:
		m.askQueue = append(m.askQueue, msg.Question)
		if m.ask == nil {
			m.popAsk()
		}
		return m, nil

	case msgs.AskAnsweredMsg:
		if err := m.responder.Respond(msg.QuestionID, msg.Response); err != nil {
			m.appendBlock(styles.ErrorBlockStyle.Render("error responding: " + err.Error()))
		}
		m.ask = nil
		m.popAsk()
		return m, nil

	case msgs.RunCompleteMsg:
		m.state = stateDone
		m.elapsed = msg.Duration
		m.result, m.err = msg.Result, msg.Err
		if msg.Err != nil && m.ctx.Err() == nil {
			m.appendBlock(styles.ErrorBlockStyle.Render("error: " + msg.Err.Error()))
		}
		m.ask, m.askQueue = nil, nil
		m.layout()
		return m, nil

	case msgs.BridgeClosedMsg:
		return m, nil

	case spinner.TickMsg:
		if m.state != stateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.ask != nil {
		updated, cmd := m.ask.Update(msg)
		m.ask = &updated
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.cancel()
		return m, tea.Quit
	}

	if m.ask != nil {
		updated, cmd := m.ask.Update(msg)
		m.ask = &updated
		return m, cmd
	}

	if m.state == stateDone {
		switch msg.String() {
		case "q", "enter", "esc":
			m.cancel()
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// observe records an event in the transcript.
func (m *Model) observe(e events.Event) {
	switch d := e.Data.(type) {
	case events.SpeakerData:
		m.speaker = d.Speaker
	case events.MessageData:
		m.turns++
	}

	if out := m.renderer.Event(e); out != "" {
		m.appendBlock(out)
	}
}

func (m *Model) appendBlock(s string) {
	m.blocks = append(m.blocks, s)
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.blocks, "\n\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) popAsk() {
	if len(m.askQueue) > 0 {
		p := askprompt.New(m.askQueue[0], m.width)
		m.askQueue = m.askQueue[1:]
		m.ask = &p
	}
	m.layout()
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	bottom := lipgloss.Height(m.statusView())
	if m.ask != nil {
		bottom += lipgloss.Height(m.ask.View())
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-bottom, 1)
	m.viewport.SetContent(strings.Join(m.blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) statusView() string {
	if m.state == stateDone {
		line := fmt.Sprintf(" done in %s · %d message(s) · q to quit", format.FmtDuration(m.elapsed), m.turns)
		return styles.StatusStyle.Render(line)
	}

	line := fmt.Sprintf(" %d message(s)", m.turns)
	if m.speaker != "" {
		line += " · speaking: " + m.speaker
	}
	if m.ask != nil {
		line += " · waiting for you"
	}
	return m.spinner.View() + styles.StatusStyle.Render(line+" · pgup/pgdn scroll · ctrl+c quit")
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	parts := []string{m.viewport.View()}
	if m.ask != nil {
		parts = append(parts, m.ask.View())
	}
	parts = append(parts, m.statusView())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
