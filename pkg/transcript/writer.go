// Package transcript records session events. Writer appends them to a JSONL
// file; Server streams them to WebSocket clients.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/germanamz/huddle/pkg/events"
)

// Writer appends one JSON object per event.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewWriter writes events to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// OpenFile appends events to the file at path, creating it and its parent
// directories as needed.
func OpenFile(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from the user's config
	if err != nil {
		return nil, fmt.Errorf("transcript: open: %w", err)
	}

	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write appends e.
func (w *Writer) Write(e events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("transcript: write: %w", err)
	}
	return nil
}

// Follow writes every event from sub until the subscription closes or ctx
// is done.
func (w *Writer) Follow(ctx context.Context, sub *events.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := w.Write(e); err != nil {
				return err
			}
		}
	}
}

// Close closes the underlying file, if any.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Read decodes a JSONL transcript. Event data is left as generic JSON.
func Read(r io.Reader) ([]events.Event, error) {
	dec := json.NewDecoder(r)

	var out []events.Event
	for {
		var e events.Event
		err := dec.Decode(&e)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("transcript: read: %w", err)
		}
		out = append(out, e)
	}
}
