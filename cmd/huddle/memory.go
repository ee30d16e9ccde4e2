package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/germanamz/huddle/pkg/memory"
	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the memory of memgpt agents",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List agents that have stored memory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := openMemory(opts)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				return listMemory(cmd, store)
			},
		},
		&cobra.Command{
			Use:   "show <agent>",
			Short: "Print core memory blocks and recall/archival sizes of an agent",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openMemory(opts)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				return showMemory(cmd, store.For(args[0]))
			},
		},
	)

	return cmd
}

// openMemory opens the store in --data-dir, falling back to the config.
func openMemory(opts *rootOptions) (*memory.Store, error) {
	dir := opts.dataDir
	if dir == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		dir = cfg.DataDir
	}
	return memory.OpenDir(dir)
}

func listMemory(cmd *cobra.Command, store *memory.Store) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	names, err := store.Agents(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "no agent memory stored")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "AGENT\tRECALL\tARCHIVAL")
	for _, name := range names {
		m := store.For(name)
		recall, err := m.RecallCount(ctx)
		if err != nil {
			return err
		}
		archival, err := m.ArchivalCount(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", name, recall, archival)
	}
	return w.Flush()
}

func showMemory(cmd *cobra.Command, m *memory.Memory) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	blocks, err := m.Blocks(ctx)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return fmt.Errorf("memory: no memory stored for %q", m.Agent())
	}

	header := color.New(color.FgCyan, color.Bold)
	_, _ = header.Fprintf(out, "%s\n\n", m.Agent())

	for _, b := range blocks {
		printBlock(out, b)
	}

	recall, err := m.RecallCount(ctx)
	if err != nil {
		return err
	}
	archival, err := m.ArchivalCount(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "recall messages\t%d\n", recall)
	_, _ = fmt.Fprintf(w, "archival passages\t%d\n", archival)
	return w.Flush()
}

func printBlock(out io.Writer, b memory.Block) {
	_, _ = color.New(color.FgYellow).Fprintf(out, "[%s] %d/%d chars", b.Label, len(b.Value), b.Limit)
	if b.UpdatedAt != "" {
		_, _ = color.New(color.Faint).Fprintf(out, "  updated %s", b.UpdatedAt)
	}
	_, _ = fmt.Fprintf(out, "\n%s\n\n", b.Value)
}
