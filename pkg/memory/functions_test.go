package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeControl struct {
	sent   []string
	paused time.Duration
}

func (f *fakeControl) SendMessage(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeControl) PauseHeartbeats(_ context.Context, d time.Duration) error {
	f.paused = d
	return nil
}

func call(t *testing.T, m *Memory, ctl Control, name, args string) content.ToolResult {
	t.Helper()
	return Functions(m, ctl).Call(context.Background(), content.ToolCall{ID: "c", Name: name, Arguments: args})
}

func TestFunctions_Names(t *testing.T) {
	s, _ := openTest(t)
	tb := Functions(s.For("a"), &fakeControl{})

	var names []string
	for _, tool := range tb.Tools() {
		names = append(names, tool.Name)
		assert.Contains(t, string(tool.InputSchema), HeartbeatParam, tool.Name)
	}
	assert.Equal(t, []string{
		FnSendMessage, FnPauseHeartbeats,
		FnCoreMemoryAppend, FnCoreMemoryReplace,
		FnConversationSearch, FnConversationSearchDate,
		FnArchivalMemoryInsert, FnArchivalMemorySearch,
	}, names)
}

func TestFunctions_SendAndPause(t *testing.T) {
	s, _ := openTest(t)
	ctl := &fakeControl{}
	m := s.For("a")

	res := call(t, m, ctl, FnSendMessage, `{"message":"Here is the plot."}`)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"Here is the plot."}, ctl.sent)

	res = call(t, m, ctl, FnPauseHeartbeats, `{"minutes":1000}`)
	assert.False(t, res.IsError)
	assert.Equal(t, MaxPauseMinutes*time.Minute, ctl.paused)
}

func TestFunctions_CoreMemory(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	m := s.For("a")
	require.NoError(t, m.Init(ctx, "p", "Name: unknown"))

	res := call(t, m, nil, FnCoreMemoryAppend, `{"name":"human","content":"Likes png","request_heartbeat":true}`)
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "Appended to human (23/2000 characters).", res.Content)

	res = call(t, m, nil, FnCoreMemoryReplace, `{"name":"human","old_content":"unknown","new_content":"Sam"}`)
	require.False(t, res.IsError, res.Content)
	assert.Contains(t, res.Content, "+Name: Sam")

	res = call(t, m, nil, FnCoreMemoryReplace, `{"name":"human","old_content":"nope","new_content":"x"}`)
	assert.True(t, res.IsError)
}

func TestFunctions_Searches(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t, WithClock(func() time.Time { return time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC) }))
	m := s.For("a")
	require.NoError(t, m.Record(ctx, message.NewText("User_proxy", role.User, "use matplotlib")))

	res := call(t, m, nil, FnConversationSearch, `{"query":"matplotlib"}`)
	require.False(t, res.IsError, res.Content)
	assert.True(t, strings.HasPrefix(res.Content, "Showing 1 of 1 results (page 1/1): "))
	assert.Contains(t, res.Content, `"content":"use matplotlib"`)

	res = call(t, m, nil, FnConversationSearchDate, `{"start_date":"2024-02-10","end_date":"2024-02-10"}`)
	require.False(t, res.IsError, res.Content)
	assert.Contains(t, res.Content, "Showing 1 of 1")

	res = call(t, m, nil, FnConversationSearchDate, `{"start_date":"yesterday","end_date":"2024-02-10"}`)
	assert.True(t, res.IsError)

	res = call(t, m, nil, FnArchivalMemoryInsert, `{"content":"matplotlib backend is Agg"}`)
	require.False(t, res.IsError, res.Content)

	res = call(t, m, nil, FnArchivalMemorySearch, `{"query":"backend"}`)
	require.False(t, res.IsError, res.Content)
	assert.Contains(t, res.Content, "matplotlib backend is Agg")

	res = call(t, m, nil, FnArchivalMemorySearch, `{"query":"seaborn"}`)
	assert.Equal(t, "No results found.", res.Content)
}

func TestRequestsHeartbeat(t *testing.T) {
	assert.True(t, RequestsHeartbeat(`{"request_heartbeat":true}`))
	assert.False(t, RequestsHeartbeat(`{"request_heartbeat":false}`))
	assert.False(t, RequestsHeartbeat(``))
	assert.False(t, RequestsHeartbeat(`not json`))
}
