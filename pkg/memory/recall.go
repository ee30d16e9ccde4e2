package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/google/uuid"
)

// PageSize is the number of entries returned per search page.
const PageSize = 5

// Entry is a recall or archival memory row.
type Entry struct {
	ID        string `json:"-"`
	Role      string `json:"role,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"timestamp"`
}

// Page is one page of search results. Page is zero-based.
type Page struct {
	Entries []Entry
	Page    int
	Total   int
}

// Pages returns the number of pages available.
func (p Page) Pages() int {
	return (p.Total + PageSize - 1) / PageSize
}

// Record stores m in recall memory. Messages without content are skipped.
func (m *Memory) Record(ctx context.Context, msg message.Message) error {
	text := flatten(msg)
	if text == "" {
		return nil
	}

	_, err := m.store.db.ExecContext(ctx,
		`INSERT INTO recall (id, agent, role, sender, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), m.agent, string(msg.Role), msg.Sender, text, m.store.stamp())
	if err != nil {
		return fmt.Errorf("memory: record: %w", err)
	}
	return nil
}

// RecallCount returns the number of messages in recall memory.
func (m *Memory) RecallCount(ctx context.Context) (int, error) {
	return m.count(ctx, `SELECT COUNT(*) FROM recall WHERE agent = ?`, m.agent)
}

// SearchRecall finds messages containing query, case-insensitively, oldest
// first.
func (m *Memory) SearchRecall(ctx context.Context, query string, page int) (Page, error) {
	return m.searchRecall(ctx, `instr(lower(content), lower(?)) > 0`, page, query)
}

// SearchRecallDate finds messages stored between start and end, both
// inclusive at day granularity.
func (m *Memory) SearchRecallDate(ctx context.Context, start, end time.Time, page int) (Page, error) {
	from := start.UTC().Format("2006-01-02")
	to := end.UTC().AddDate(0, 0, 1).Format("2006-01-02")
	return m.searchRecall(ctx, `created_at >= ? AND created_at < ?`, page, from, to)
}

func (m *Memory) searchRecall(ctx context.Context, where string, page int, args ...any) (Page, error) {
	args = append([]any{m.agent}, args...)

	total, err := m.count(ctx, `SELECT COUNT(*) FROM recall WHERE agent = ? AND `+where, args...)
	if err != nil {
		return Page{}, err
	}

	rows, err := m.store.db.QueryContext(ctx,
		`SELECT id, role, sender, content, created_at FROM recall WHERE agent = ? AND `+where+
			` ORDER BY created_at, rowid LIMIT ? OFFSET ?`,
		append(args, PageSize, max(page, 0)*PageSize)...)
	if err != nil {
		return Page{}, fmt.Errorf("memory: search recall: %w", err)
	}

	entries, err := scanEntries(rows, func(r *sql.Rows, e *Entry) error {
		return r.Scan(&e.ID, &e.Role, &e.Sender, &e.Content, &e.CreatedAt)
	})
	if err != nil {
		return Page{}, fmt.Errorf("memory: search recall: %w", err)
	}

	return Page{Entries: entries, Page: max(page, 0), Total: total}, nil
}

func (m *Memory) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := m.store.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("memory: count: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows, scan func(*sql.Rows, *Entry) error) ([]Entry, error) {
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := scan(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// flatten renders a message as a single searchable string.
func flatten(msg message.Message) string {
	var parts []string
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case content.Text:
			if v.Text != "" {
				parts = append(parts, v.Text)
			}
		case content.ToolCall:
			parts = append(parts, fmt.Sprintf("%s(%s)", v.Name, v.Arguments))
		case content.ToolResult:
			parts = append(parts, v.Content)
		}
	}
	return strings.Join(parts, "\n")
}
