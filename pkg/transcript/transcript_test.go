package transcript

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(events.Event{Kind: events.KindMessage, Agent: "User_proxy", Data: events.MessageData{From: "User_proxy", To: "chat_manager", Text: "hi"}}))
	require.NoError(t, w.Write(events.Event{Kind: events.KindChatEnd, Data: events.EndData{Turns: 3, Reason: "max round reached"}}))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events.KindMessage, got[0].Kind)
	assert.Equal(t, "User_proxy", got[0].Agent)

	data, ok := got[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", data["text"])
}

func TestWriter_FollowFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "transcript.jsonl")
	w, err := OpenFile(path)
	require.NoError(t, err)

	bus := events.NewBus("s1")
	sub := bus.Subscribe(8)

	done := make(chan error, 1)
	go func() { done <- w.Follow(context.Background(), sub) }()

	bus.Publish(events.Event{Kind: events.KindSpeakerSelected, Data: events.SpeakerData{Speaker: "Coder", Round: 1}})
	bus.Close()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	got, err := Read(f)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].Session)
	assert.Equal(t, events.KindSpeakerSelected, got[0].Kind)
}

func TestRead_Invalid(t *testing.T) {
	_, err := Read(strings.NewReader("{\"kind\":\"message\"}\nnot json\n"))
	require.Error(t, err)
}

func TestServer_StreamsEvents(t *testing.T) {
	bus := events.NewBus("s1")
	srv := httptest.NewServer(NewServer(bus, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 3*time.Second, 5*time.Millisecond)

	bus.Publish(events.Event{Kind: events.KindMessage, Agent: "Coder", Data: events.MessageData{Text: "ping"}})

	var got events.Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, events.KindMessage, got.Kind)
	assert.Equal(t, "Coder", got.Agent)
	assert.Equal(t, "s1", got.Session)
}

func TestServer_ClosesWithBus(t *testing.T) {
	bus := events.NewBus("s1")
	srv := httptest.NewServer(NewServer(bus, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 3*time.Second, 5*time.Millisecond)
	bus.Close()

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
