// Package bridge forwards session events into a running bubbletea program.
package bridge

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/huddle/cmd/huddle/internal/msgs"
	"github.com/germanamz/huddle/pkg/ask"
	"github.com/germanamz/huddle/pkg/events"
)

// Buffer is the bridge's subscription buffer.
const Buffer = 256

// Sender is the part of *tea.Program the bridge uses.
type Sender interface {
	Send(msg tea.Msg)
}

// Start subscribes to bus and converts its events to bubbletea messages. The
// goroutine only calls p.Send; it never touches model state. The returned
// function cancels the bridge and waits for the goroutine to exit so no stale
// message is sent after it returns.
func Start(ctx context.Context, p Sender, bus *events.Bus) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)
	sub := bus.Subscribe(Buffer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer bus.Unsubscribe(sub)

		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					p.Send(msgs.BridgeClosedMsg{})
					return
				}
				p.Send(Convert(ev))
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// Convert maps an event to the message the app model handles.
func Convert(ev events.Event) tea.Msg {
	if d, ok := ev.Data.(events.AskData); ok && ev.Kind == events.KindAskUser {
		return msgs.AskUserMsg{Question: ask.Question{
			ID:      d.QuestionID,
			Agent:   ev.Agent,
			Text:    d.Text,
			Options: d.Options,
		}}
	}
	return msgs.EventMsg{Event: ev}
}
