package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Insert stores a passage in archival memory and returns its ID.
func (m *Memory) Insert(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("memory: archival insert: empty content")
	}

	id := uuid.NewString()
	_, err := m.store.db.ExecContext(ctx,
		`INSERT INTO archival (id, agent, content, created_at) VALUES (?, ?, ?, ?)`,
		id, m.agent, text, m.store.stamp())
	if err != nil {
		return "", fmt.Errorf("memory: archival insert: %w", err)
	}
	return id, nil
}

// ArchivalCount returns the number of archived passages.
func (m *Memory) ArchivalCount(ctx context.Context) (int, error) {
	return m.count(ctx, `SELECT COUNT(*) FROM archival WHERE agent = ?`, m.agent)
}

// SearchArchival finds passages containing every word of query,
// case-insensitively, newest first. An empty query matches everything.
func (m *Memory) SearchArchival(ctx context.Context, query string, page int) (Page, error) {
	where := []string{"agent = ?"}
	args := []any{m.agent}
	for _, w := range strings.Fields(query) {
		where = append(where, "instr(lower(content), lower(?)) > 0")
		args = append(args, w)
	}
	cond := strings.Join(where, " AND ")

	total, err := m.count(ctx, `SELECT COUNT(*) FROM archival WHERE `+cond, args...)
	if err != nil {
		return Page{}, err
	}

	page = max(page, 0)
	rows, err := m.store.db.QueryContext(ctx,
		`SELECT id, content, created_at FROM archival WHERE `+cond+
			` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, PageSize, page*PageSize)...)
	if err != nil {
		return Page{}, fmt.Errorf("memory: search archival: %w", err)
	}

	entries, err := scanEntries(rows, func(r *sql.Rows, e *Entry) error {
		return r.Scan(&e.ID, &e.Content, &e.CreatedAt)
	})
	if err != nil {
		return Page{}, fmt.Errorf("memory: search archival: %w", err)
	}

	return Page{Entries: entries, Page: page, Total: total}, nil
}
