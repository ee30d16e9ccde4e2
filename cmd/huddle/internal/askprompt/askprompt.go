// Package askprompt is the TUI component that answers a question for the
// human: a list of choices when the question offers options, a text input
// otherwise.
package askprompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/huddle/cmd/huddle/internal/msgs"
	"github.com/germanamz/huddle/cmd/huddle/internal/styles"
	"github.com/germanamz/huddle/pkg/ask"
)

// OtherOption lets the human type an answer instead of picking a choice.
const OtherOption = "Other (custom input)"

// Model is the ask prompt.
type Model struct {
	question   ask.Question
	options    []string
	cursor     int
	customMode bool
	input      textinput.Model
	width      int
}

// New creates a prompt for q.
func New(q ask.Question, width int) Model {
	ti := textinput.New()
	ti.Placeholder = "Your answer (enter to skip)"
	ti.Prompt = "> "
	ti.CharLimit = 0

	m := Model{question: q, input: ti, width: width}
	if len(q.Options) > 0 {
		m.options = append(append([]string(nil), q.Options...), OtherOption)
	} else {
		m.input.Focus()
	}
	m.SetWidth(width)

	return m
}

// Question returns the question being answered.
func (m Model) Question() ask.Question { return m.question }

// SetWidth resizes the prompt.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.input.Width = max(width-8, 10)
}

// Update handles key presses. Submitting emits msgs.AskAnsweredMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if len(m.options) == 0 || m.customMode {
		return m.handleTextKey(key)
	}
	return m.handleChoiceKey(key)
}

func (m Model) handleTextKey(key tea.KeyMsg) (Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter:
		return m, m.answer(strings.TrimSpace(m.input.Value()))
	case tea.KeyEsc:
		if m.customMode {
			m.customMode = false
			m.input.Reset()
			m.input.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m Model) handleChoiceKey(key tea.KeyMsg) (Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		choice := m.options[m.cursor]
		if choice == OtherOption {
			m.customMode = true
			return m, m.input.Focus()
		}
		return m, m.answer(choice)
	}
	return m, nil
}

func (m Model) answer(text string) tea.Cmd {
	id := m.question.ID
	return func() tea.Msg {
		return msgs.AskAnsweredMsg{QuestionID: id, Response: text}
	}
}

// View renders the prompt.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(styles.AskTitleStyle.Render(fmt.Sprintf("[%s asks]", m.question.Agent)))
	sb.WriteString(" ")
	sb.WriteString(m.question.Text)
	sb.WriteString("\n\n")

	switch {
	case len(m.options) > 0 && !m.customMode:
		for i, opt := range m.options {
			if i == m.cursor {
				sb.WriteString(styles.AskSelStyle.Render("> " + opt))
			} else {
				sb.WriteString(styles.AskOptStyle.Render("  " + opt))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(styles.AskHintStyle.Render("↑/↓ choose · enter confirm"))
	case m.customMode:
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(styles.AskHintStyle.Render("enter submit · esc back to choices"))
	default:
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(styles.AskHintStyle.Render("enter submit · type exit to end the conversation"))
	}

	return styles.AskBorder.Width(max(m.width-4, 10)).Render(sb.String())
}
