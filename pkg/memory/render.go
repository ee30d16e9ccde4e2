package memory

import (
	"context"
	"fmt"
	"strings"
)

// Render formats core memory and recall/archival sizes for the system prompt.
func (m *Memory) Render(ctx context.Context) (string, error) {
	blocks, err := m.Blocks(ctx)
	if err != nil {
		return "", err
	}
	recall, err := m.RecallCount(ctx)
	if err != nil {
		return "", err
	}
	archival, err := m.ArchivalCount(ctx)
	if err != nil {
		return "", err
	}

	modified := ""
	for _, b := range blocks {
		modified = max(modified, b.UpdatedAt)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "### Memory [last modified: %s]\n", modified)
	fmt.Fprintf(&sb, "%d previous messages between you and the user are stored in recall memory (use functions to access them)\n", recall)
	fmt.Fprintf(&sb, "%d total memories you created are stored in archival memory (use functions to access them)\n", archival)
	sb.WriteString("\nCore memory shown below (limited in size, additional information stored in archival / recall memory):\n")

	for _, b := range blocks {
		fmt.Fprintf(&sb, "<%s characters=\"%d/%d\">\n%s\n</%s>\n", b.Label, len([]rune(b.Value)), b.Limit, b.Value, b.Label)
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}
