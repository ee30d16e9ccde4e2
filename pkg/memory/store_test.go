package memory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock advancing by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func openTest(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenDir(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestCore_InitAppendReplace(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	m := s.For("MemGPT_coder")

	require.NoError(t, m.Init(ctx, "I am a coder.", "The user likes plots."))

	b, err := m.Append(ctx, BlockHuman, "The user prefers png.")
	require.NoError(t, err)
	assert.Equal(t, "The user likes plots.\nThe user prefers png.", b.Value)

	diff, err := m.Replace(ctx, BlockHuman, "likes plots", "loves charts")
	require.NoError(t, err)
	assert.Contains(t, diff, "-The user likes plots.")
	assert.Contains(t, diff, "+The user loves charts.")

	b, err = m.Block(ctx, BlockHuman)
	require.NoError(t, err)
	assert.Equal(t, "The user loves charts.\nThe user prefers png.", b.Value)
}

func TestCore_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	m := s.For("a")
	require.NoError(t, m.Init(ctx, "p", "h"))

	_, err := m.Append(ctx, "goals", "x")
	require.ErrorIs(t, err, ErrBlockNotFound)

	_, err = m.Replace(ctx, BlockPersona, "missing", "x")
	require.ErrorIs(t, err, ErrContentNotFound)

	_, err = m.Append(ctx, BlockPersona, strings.Repeat("x", DefaultBlockLimit))
	require.ErrorIs(t, err, ErrLimitExceeded)

	b, err := m.Block(ctx, BlockPersona)
	require.NoError(t, err)
	assert.Equal(t, "p", b.Value)

	require.ErrorIs(t, s.For("b").Init(ctx, strings.Repeat("x", DefaultBlockLimit+1), ""), ErrLimitExceeded)
}

func TestCore_InitKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	m := s.For("a")

	require.NoError(t, m.Init(ctx, "first", "h"))
	_, err := m.Append(ctx, BlockPersona, "learned")
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx, "second", "h"))

	b, err := m.Block(ctx, BlockPersona)
	require.NoError(t, err)
	assert.Equal(t, "first\nlearned", b.Value)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenDir(dir)
	require.NoError(t, err)
	m := s.For("a")
	require.NoError(t, m.Init(ctx, "p", "h"))
	require.NoError(t, m.Record(ctx, message.NewText("User_proxy", role.User, "hello")))
	_, err = m.Insert(ctx, "the csv has 3 columns")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	m = s.For("a")

	n, err := m.RecallCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.ArchivalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	agents, err := s.Agents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, agents)
}

func TestRecall_IsolatedPerAgent(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)

	require.NoError(t, s.For("a").Record(ctx, message.NewText("x", role.User, "secret")))

	p, err := s.For("b").SearchRecall(ctx, "secret", 0)
	require.NoError(t, err)
	assert.Zero(t, p.Total)
}

func TestRecall_SearchPages(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t, WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)))
	m := s.For("a")

	for i := range 7 {
		require.NoError(t, m.Record(ctx, message.NewText("u", role.User, "Plot number "+string(rune('0'+i)))))
	}
	require.NoError(t, m.Record(ctx, message.NewText("u", role.User, "unrelated")))
	require.NoError(t, m.Record(ctx, message.Message{Role: role.User}))

	p, err := m.SearchRecall(ctx, "plot", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Total)
	assert.Equal(t, 2, p.Pages())
	require.Len(t, p.Entries, PageSize)
	assert.Equal(t, "Plot number 0", p.Entries[0].Content)

	p, err = m.SearchRecall(ctx, "PLOT", 1)
	require.NoError(t, err)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, "Plot number 6", p.Entries[1].Content)

	n, err := m.RecallCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestRecall_SearchDate(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t, WithClock(stepClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 24*time.Hour)))
	m := s.For("a")

	for _, text := range []string{"mar 1", "mar 2", "mar 3", "mar 4"} {
		require.NoError(t, m.Record(ctx, message.NewText("u", role.User, text)))
	}

	p, err := m.SearchRecallDate(ctx, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, "mar 2", p.Entries[0].Content)
	assert.Equal(t, "mar 3", p.Entries[1].Content)
}

func TestRecall_FlattensToolTraffic(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	m := s.For("a")

	require.NoError(t, m.Record(ctx, message.New("a", role.Assistant,
		content.Text{Text: "thinking"},
		content.ToolCall{Name: "archival_memory_search", Arguments: `{"query":"csv"}`},
	)))

	p, err := m.SearchRecall(ctx, "archival_memory_search", 0)
	require.NoError(t, err)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, "thinking\narchival_memory_search({\"query\":\"csv\"})", p.Entries[0].Content)
}

func TestArchival_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t, WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)))
	m := s.For("a")

	for _, text := range []string{"The CSV has columns date and price", "User prefers seaborn", "Price column has gaps"} {
		_, err := m.Insert(ctx, text)
		require.NoError(t, err)
	}

	p, err := m.SearchArchival(ctx, "price column", 0)
	require.NoError(t, err)
	require.Equal(t, 2, p.Total)
	assert.Equal(t, "Price column has gaps", p.Entries[0].Content)

	p, err = m.SearchArchival(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)

	_, err = m.Insert(ctx, "  ")
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t, WithClock(func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }))
	m := s.For("a")
	require.NoError(t, m.Init(ctx, "I code.", "Alex."))
	require.NoError(t, m.Record(ctx, message.NewText("u", role.User, "hi")))

	out, err := m.Render(ctx)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "### Memory [last modified: 2024-05-06 07:08:09.000000]\n"))
	assert.Contains(t, out, "1 previous messages between you and the user are stored in recall memory")
	assert.Contains(t, out, "0 total memories you created are stored in archival memory")
	assert.Contains(t, out, "<persona characters=\"7/2000\">\nI code.\n</persona>\n<human characters=\"5/2000\">\nAlex.\n</human>")
}
