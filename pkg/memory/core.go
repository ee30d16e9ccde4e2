package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Core memory block labels.
const (
	BlockPersona = "persona"
	BlockHuman   = "human"
)

// DefaultBlockLimit is the character limit of a core memory block.
const DefaultBlockLimit = 2000

// Block is a named piece of core memory.
type Block struct {
	Label     string
	Value     string
	Limit     int
	UpdatedAt string
}

// Memory is the memory of one agent.
type Memory struct {
	store *Store
	agent string
}

// Agent returns the owning agent's name.
func (m *Memory) Agent() string { return m.agent }

// Init creates the persona and human blocks unless they already exist, so a
// restarted agent keeps what it learned.
func (m *Memory) Init(ctx context.Context, persona, human string) error {
	for _, b := range []Block{
		{Label: BlockPersona, Value: persona},
		{Label: BlockHuman, Value: human},
	} {
		if len([]rune(b.Value)) > DefaultBlockLimit {
			return fmt.Errorf("%w: %s initial value", ErrLimitExceeded, b.Label)
		}

		_, err := m.store.db.ExecContext(ctx,
			`INSERT INTO core_blocks (agent, label, value, char_limit, updated_at)
			 VALUES (?, ?, ?, ?, ?) ON CONFLICT(agent, label) DO NOTHING`,
			m.agent, b.Label, b.Value, DefaultBlockLimit, m.store.stamp())
		if err != nil {
			return fmt.Errorf("memory: init %s: %w", b.Label, err)
		}
	}
	return nil
}

// Block returns the block with label.
func (m *Memory) Block(ctx context.Context, label string) (Block, error) {
	b := Block{Label: label}
	err := m.store.db.QueryRowContext(ctx,
		`SELECT value, char_limit, updated_at FROM core_blocks WHERE agent = ? AND label = ?`,
		m.agent, label).Scan(&b.Value, &b.Limit, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, fmt.Errorf("%w: %q", ErrBlockNotFound, label)
	}
	if err != nil {
		return Block{}, fmt.Errorf("memory: read %s: %w", label, err)
	}
	return b, nil
}

// Blocks returns every block of the agent, persona first.
func (m *Memory) Blocks(ctx context.Context) ([]Block, error) {
	rows, err := m.store.db.QueryContext(ctx,
		`SELECT label, value, char_limit, updated_at FROM core_blocks WHERE agent = ?
		 ORDER BY CASE label WHEN 'persona' THEN 0 WHEN 'human' THEN 1 ELSE 2 END, label`,
		m.agent)
	if err != nil {
		return nil, fmt.Errorf("memory: read blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var blocks []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.Label, &b.Value, &b.Limit, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("memory: read blocks: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// Append adds text to the block on a new line.
func (m *Memory) Append(ctx context.Context, label, text string) (Block, error) {
	b, err := m.Block(ctx, label)
	if err != nil {
		return Block{}, err
	}

	value := text
	if b.Value != "" {
		value = b.Value + "\n" + text
	}

	return m.write(ctx, b, value)
}

// Replace swaps the first occurrence of old for replacement and returns a
// unified diff of the change. An empty replacement deletes old.
func (m *Memory) Replace(ctx context.Context, label, old, replacement string) (string, error) {
	b, err := m.Block(ctx, label)
	if err != nil {
		return "", err
	}
	if old == "" || !strings.Contains(b.Value, old) {
		return "", fmt.Errorf("%w: %q in %s", ErrContentNotFound, old, label)
	}

	value := strings.Replace(b.Value, old, replacement, 1)
	if _, err := m.write(ctx, b, value); err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(b.Value),
		B:        difflib.SplitLines(value),
		FromFile: label,
		ToFile:   label,
		Context:  1,
	})
}

func (m *Memory) write(ctx context.Context, b Block, value string) (Block, error) {
	if n := len([]rune(value)); n > b.Limit {
		return Block{}, fmt.Errorf("%w: %s would have %d characters, limit is %d", ErrLimitExceeded, b.Label, n, b.Limit)
	}

	b.Value = value
	b.UpdatedAt = m.store.stamp()

	_, err := m.store.db.ExecContext(ctx,
		`UPDATE core_blocks SET value = ?, updated_at = ? WHERE agent = ? AND label = ?`,
		b.Value, b.UpdatedAt, m.agent, b.Label)
	if err != nil {
		return Block{}, fmt.Errorf("memory: write %s: %w", b.Label, err)
	}
	return b, nil
}
