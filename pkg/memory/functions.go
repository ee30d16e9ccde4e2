package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// Function names exposed to the model.
const (
	FnSendMessage            = "send_message"
	FnPauseHeartbeats        = "pause_heartbeats"
	FnCoreMemoryAppend       = "core_memory_append"
	FnCoreMemoryReplace      = "core_memory_replace"
	FnConversationSearch     = "conversation_search"
	FnConversationSearchDate = "conversation_search_date"
	FnArchivalMemoryInsert   = "archival_memory_insert"
	FnArchivalMemorySearch   = "archival_memory_search"
)

// HeartbeatParam is the argument a model sets to be called again after a
// function returns.
const HeartbeatParam = "request_heartbeat"

// MaxPauseMinutes bounds pause_heartbeats.
const MaxPauseMinutes = 360

// Control receives the functions that steer the agent rather than memory.
type Control interface {
	SendMessage(ctx context.Context, text string) error
	PauseHeartbeats(ctx context.Context, d time.Duration) error
}

// RequestsHeartbeat reports whether tool call arguments ask for a heartbeat.
func RequestsHeartbeat(arguments string) bool {
	var in struct {
		Heartbeat bool `json:"request_heartbeat"`
	}
	if arguments == "" {
		return false
	}
	return json.Unmarshal([]byte(arguments), &in) == nil && in.Heartbeat
}

var heartbeat = toolbox.Param{
	Name:        HeartbeatParam,
	Type:        "boolean",
	Description: "Request an immediate heartbeat after function execution. Set to 'true' if you want to send a follow-up message or run a follow-up function.",
	Required:    true,
}

func str(name, desc string, required bool) toolbox.Param {
	return toolbox.Param{Name: name, Type: "string", Description: desc, Required: required}
}

// schema appends the heartbeat parameter every memory function accepts.
func schema(params ...toolbox.Param) json.RawMessage {
	return toolbox.Object(append(params, heartbeat)...)
}

const (
	unicodeNote = "All unicode (including emojis) are supported."
	sectionDesc = "Section of the memory to be edited (persona or human)."
)

var pageParam = toolbox.Param{Name: "page", Type: "integer", Description: "Allows you to page through results. Only use on a follow-up query. Defaults to 0 (first page)."}

// Functions returns the memory functions of m, with send_message and
// pause_heartbeats routed to ctl.
func Functions(m *Memory, ctl Control) *toolbox.ToolBox {
	f := &functions{mem: m, ctl: ctl}
	tb := toolbox.New()

	tb.Register(
		toolbox.Tool{
			Name:        FnSendMessage,
			Description: "Sends a message to the human user.",
			InputSchema: schema(str("message", "Message contents. "+unicodeNote, true)),
			Handler:     f.sendMessage,
		},
		toolbox.Tool{
			Name:        FnPauseHeartbeats,
			Description: "Temporarily ignore timed heartbeats. You may still receive messages from manual heartbeats and other events.",
			InputSchema: schema(toolbox.Param{Name: "minutes", Type: "integer", Description: "Number of minutes to ignore heartbeats for. Max value of 360 minutes (6 hours).", Required: true}),
			Handler:     f.pauseHeartbeats,
		},
		toolbox.Tool{
			Name:        FnCoreMemoryAppend,
			Description: "Append to the contents of core memory.",
			InputSchema: schema(str("name", sectionDesc, true), str("content", "Content to write to the memory. "+unicodeNote, true)),
			Handler:     f.coreAppend,
		},
		toolbox.Tool{
			Name:        FnCoreMemoryReplace,
			Description: "Replace the contents of core memory. To delete memories, use an empty string for new_content.",
			InputSchema: schema(
				str("name", sectionDesc, true),
				str("old_content", "String to replace. Must be an exact match.", true),
				str("new_content", "Content to write to the memory. "+unicodeNote, true),
			),
			Handler:     f.coreReplace,
		},
		toolbox.Tool{
			Name:        FnConversationSearch,
			Description: "Search prior conversation history using case-insensitive string matching.",
			InputSchema: schema(str("query", "String to search for.", true), pageParam),
			Handler:     f.conversationSearch,
		},
		toolbox.Tool{
			Name:        FnConversationSearchDate,
			Description: "Search prior conversation history using a date range.",
			InputSchema: schema(
				str("start_date", "The start of the date range to search, in the format 'YYYY-MM-DD'.", true),
				str("end_date", "The end of the date range to search, in the format 'YYYY-MM-DD'.", true),
				pageParam,
			),
			Handler:     f.conversationSearchDate,
		},
		toolbox.Tool{
			Name:        FnArchivalMemoryInsert,
			Description: "Add to archival memory. Make sure to phrase the memory contents such that it can be easily queried later.",
			InputSchema: schema(str("content", "Content to write to the memory. "+unicodeNote, true)),
			Handler:     f.archivalInsert,
		},
		toolbox.Tool{
			Name:        FnArchivalMemorySearch,
			Description: "Search archival memory using keyword matching.",
			InputSchema: schema(str("query", "String to search for.", true), pageParam),
			Handler:     f.archivalSearch,
		},
	)

	return tb
}

type functions struct {
	mem *Memory
	ctl Control
}

type sendInput struct {
	Message string `json:"message"`
}

type pauseInput struct {
	Minutes int `json:"minutes"`
}

type appendInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type replaceInput struct {
	Name       string `json:"name"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
}

type searchInput struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
}

type dateInput struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Page      int    `json:"page"`
}

type insertInput struct {
	Content string `json:"content"`
}

func decode(fn string, input json.RawMessage, v any) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("%s: invalid input: %w", fn, err)
	}
	return nil
}

func (f *functions) sendMessage(ctx context.Context, input json.RawMessage) (string, error) {
	var in sendInput
	if err := decode(FnSendMessage, input, &in); err != nil {
		return "", err
	}
	if err := f.ctl.SendMessage(ctx, in.Message); err != nil {
		return "", fmt.Errorf("%s: %w", FnSendMessage, err)
	}
	return "None", nil
}

func (f *functions) pauseHeartbeats(ctx context.Context, input json.RawMessage) (string, error) {
	var in pauseInput
	if err := decode(FnPauseHeartbeats, input, &in); err != nil {
		return "", err
	}
	minutes := min(max(in.Minutes, 0), MaxPauseMinutes)
	if err := f.ctl.PauseHeartbeats(ctx, time.Duration(minutes)*time.Minute); err != nil {
		return "", fmt.Errorf("%s: %w", FnPauseHeartbeats, err)
	}
	return fmt.Sprintf("Pausing timed heartbeats for %d min", minutes), nil
}

func (f *functions) coreAppend(ctx context.Context, input json.RawMessage) (string, error) {
	var in appendInput
	if err := decode(FnCoreMemoryAppend, input, &in); err != nil {
		return "", err
	}
	b, err := f.mem.Append(ctx, in.Name, in.Content)
	if err != nil {
		return "", fmt.Errorf("%s: %w", FnCoreMemoryAppend, err)
	}
	return fmt.Sprintf("Appended to %s (%d/%d characters).", b.Label, len([]rune(b.Value)), b.Limit), nil
}

func (f *functions) coreReplace(ctx context.Context, input json.RawMessage) (string, error) {
	var in replaceInput
	if err := decode(FnCoreMemoryReplace, input, &in); err != nil {
		return "", err
	}
	diff, err := f.mem.Replace(ctx, in.Name, in.OldContent, in.NewContent)
	if err != nil {
		return "", fmt.Errorf("%s: %w", FnCoreMemoryReplace, err)
	}
	return "Updated " + in.Name + ":\n" + diff, nil
}

func (f *functions) conversationSearch(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchInput
	if err := decode(FnConversationSearch, input, &in); err != nil {
		return "", err
	}
	p, err := f.mem.SearchRecall(ctx, in.Query, in.Page)
	if err != nil {
		return "", fmt.Errorf("%s: %w", FnConversationSearch, err)
	}
	return formatPage(p)
}

func (f *functions) conversationSearchDate(ctx context.Context, input json.RawMessage) (string, error) {
	var in dateInput
	if err := decode(FnConversationSearchDate, input, &in); err != nil {
		return "", err
	}
	start, err := time.Parse(time.DateOnly, in.StartDate)
	if err != nil {
		return "", fmt.Errorf("%s: start_date must be YYYY-MM-DD: %w", FnConversationSearchDate, err)
	}
	end, err := time.Parse(time.DateOnly, in.EndDate)
	if err != nil {
		return "", fmt.Errorf("%s: end_date must be YYYY-MM-DD: %w", FnConversationSearchDate, err)
	}
	p, err := f.mem.SearchRecallDate(ctx, start, end, in.Page)
	if err != nil {
		return "", fmt.Errorf("%s: %w", FnConversationSearchDate, err)
	}
	return formatPage(p)
}

func (f *functions) archivalInsert(ctx context.Context, input json.RawMessage) (string, error) {
	var in insertInput
	if err := decode(FnArchivalMemoryInsert, input, &in); err != nil {
		return "", err
	}
	if _, err := f.mem.Insert(ctx, in.Content); err != nil {
		return "", fmt.Errorf("%s: %w", FnArchivalMemoryInsert, err)
	}
	return "None", nil
}

func (f *functions) archivalSearch(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchInput
	if err := decode(FnArchivalMemorySearch, input, &in); err != nil {
		return "", err
	}
	p, err := f.mem.SearchArchival(ctx, in.Query, in.Page)
	if err != nil {
		return "", fmt.Errorf("%s: %w", FnArchivalMemorySearch, err)
	}
	return formatPage(p)
}

func formatPage(p Page) (string, error) {
	if len(p.Entries) == 0 {
		return "No results found.", nil
	}
	data, err := json.Marshal(p.Entries)
	if err != nil {
		return "", fmt.Errorf("memory: encode results: %w", err)
	}
	return fmt.Sprintf("Showing %d of %d results (page %d/%d): %s", len(p.Entries), p.Total, p.Page+1, p.Pages(), data), nil
}
