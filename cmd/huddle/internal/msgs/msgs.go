// Package msgs defines the bubbletea messages exchanged between the bridge,
// the ask prompt and the app model.
package msgs

import (
	"time"

	"github.com/germanamz/huddle/pkg/ask"
	"github.com/germanamz/huddle/pkg/engine"
	"github.com/germanamz/huddle/pkg/events"
)

// EventMsg delivers a session event from the bridge goroutine.
type EventMsg struct {
	Event events.Event
}

// AskUserMsg delivers a question waiting for the human.
type AskUserMsg struct {
	Question ask.Question
}

// AskAnsweredMsg is sent after the human answers the active question.
type AskAnsweredMsg struct {
	QuestionID string
	Response   string
}

// RunCompleteMsg is returned by the command running the conversation.
type RunCompleteMsg struct {
	Result   engine.Result
	Err      error
	Duration time.Duration
}

// BridgeClosedMsg reports that the event bus was closed.
type BridgeClosedMsg struct{}
