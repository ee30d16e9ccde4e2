// Package styles holds the lipgloss styles shared by the TUI components.
package styles

import "github.com/charmbracelet/lipgloss"

// ANSI palette so the TUI follows the terminal's own theme.
var (
	ColorMuted   = lipgloss.Color("8")
	ColorAccent  = lipgloss.Color("4")
	ColorError   = lipgloss.Color("1")
	ColorSuccess = lipgloss.Color("2")
	ColorWarning = lipgloss.Color("3")
	ColorMagenta = lipgloss.Color("5")
	ColorCyan    = lipgloss.Color("6")
)

var (
	// Speaker headers.
	HumanStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	AgentStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorCyan)
	ManagerStyle = lipgloss.NewStyle().Foreground(ColorMagenta)

	// Inner monologue of memgpt agents.
	ThoughtStyle = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)

	// Function calls and code execution.
	ToolNameStyle   = lipgloss.NewStyle().Bold(true)
	ToolResultStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ToolErrorStyle  = lipgloss.NewStyle().Foreground(ColorError)
	CodeOKStyle     = lipgloss.NewStyle().Foreground(ColorSuccess)

	SpinnerStyle = lipgloss.NewStyle().Foreground(ColorMagenta)
	DimStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	StatusStyle  = lipgloss.NewStyle().Foreground(ColorMuted)

	ErrorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(ColorError)

	SummaryStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSuccess)

	// Ask prompt.
	AskBorder     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorWarning)
	AskTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	AskOptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	AskSelStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	AskHintStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Tree-drawing characters for nested lines.
const (
	TreeCorner = "└ "
	TreePipe   = "│ "
)
