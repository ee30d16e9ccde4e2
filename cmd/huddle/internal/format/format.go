// Package format renders session events as terminal text for the TUI and
// the plain frontend.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/germanamz/huddle/cmd/huddle/internal/styles"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/mattn/go-runewidth"
)

// DefaultWidth is used until the terminal reports its size.
const DefaultWidth = 100

const (
	maxArgsWidth   = 80
	maxOutputLines = 12
)

// Renderer turns events into styled text. The zero value renders markdown
// as plain text.
type Renderer struct {
	md    *glamour.TermRenderer
	width int
}

// NewRenderer builds a renderer wrapping at width. The glamour style is fixed
// from dark rather than auto-detected so glamour never queries the terminal
// while bubbletea owns it.
func NewRenderer(width int, dark bool) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}

	style := glamourstyles.LightStyleConfig
	if dark {
		style = glamourstyles.DarkStyleConfig
	}

	r := &Renderer{width: width}
	md, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.md = md
	}
	return r
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	if r.width <= 0 {
		return DefaultWidth
	}
	return r.width
}

// Markdown renders text as markdown, falling back to the raw text.
func (r *Renderer) Markdown(text string) string {
	if r == nil || r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Event renders e. Events with nothing to show render as "".
func (r *Renderer) Event(e events.Event) string {
	switch d := e.Data.(type) {
	case events.MessageData:
		return r.message(d)
	case events.SpeakerData:
		return styles.ManagerStyle.Render(fmt.Sprintf("%s %s picked %s (round %d, %s)", styles.TreeCorner, e.Agent, d.Speaker, d.Round, d.Method))
	case events.ThoughtData:
		return styles.ThoughtStyle.Render(e.Agent + " thinks: " + d.Text)
	case events.FunctionData:
		return function(e, d)
	case events.CodeData:
		return code(d)
	case events.EndData:
		return r.end(d)
	case events.ErrorData:
		return styles.ErrorBlockStyle.Render("error: " + d.Error)
	}
	return ""
}

func (r *Renderer) message(d events.MessageData) string {
	var sb strings.Builder

	header := styles.AgentStyle
	if d.Role == "user" {
		header = styles.HumanStyle
	}
	sb.WriteString(header.Render(d.From))
	sb.WriteString(styles.DimStyle.Render(" (to " + d.To + ")"))

	if text := strings.TrimSpace(d.Text); text != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Markdown(text))
	}
	for _, name := range d.ToolCalls {
		sb.WriteString("\n")
		sb.WriteString(styles.TreeCorner)
		sb.WriteString(styles.ToolNameStyle.Render("calls " + name))
	}

	return sb.String()
}

func function(e events.Event, d events.FunctionData) string {
	if e.Kind == events.KindFunctionCall {
		return styles.TreePipe + styles.ToolNameStyle.Render(d.Name) + styles.DimStyle.Render("("+Truncate(d.Arguments, maxArgsWidth)+")")
	}

	if d.IsError {
		return styles.TreeCorner + styles.ToolErrorStyle.Render(d.Name+" failed: "+Truncate(d.Result, maxArgsWidth))
	}
	return styles.TreeCorner + styles.ToolResultStyle.Render(Truncate(d.Result, maxArgsWidth))
}

func code(d events.CodeData) string {
	status := styles.CodeOKStyle.Render("execution succeeded")
	if d.ExitCode != 0 {
		status = styles.ToolErrorStyle.Render(fmt.Sprintf("execution failed (exit code %d)", d.ExitCode))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s %s", styles.TreePipe, status, styles.DimStyle.Render(fmt.Sprintf("%d block(s)", d.Blocks)))
	for _, line := range TailLines(d.Output, maxOutputLines) {
		sb.WriteString("\n")
		sb.WriteString(styles.TreePipe)
		sb.WriteString(styles.ToolResultStyle.Render(line))
	}
	return sb.String()
}

func (r *Renderer) end(d events.EndData) string {
	body := fmt.Sprintf("Conversation ended after %d turn(s)", d.Turns)
	if d.Reason != "" {
		body += ": " + d.Reason
	}
	if d.Summary != "" {
		body += "\n\n" + r.Markdown(d.Summary)
	}
	return styles.SummaryStyle.Width(r.Width() - 2).Render(body)
}

// Truncate shortens s to at most n display cells, appending "..." when cut.
// Newlines become spaces for single-line display.
func Truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, n, "...")
}

// TailLines returns at most the last n lines of s, led by an "..." line
// when earlier ones were dropped.
func TailLines(s string, n int) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = append([]string{"..."}, lines[len(lines)-n:]...)
	}
	return lines
}

// FmtDuration formats a duration for display.
func FmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, sec)
}
