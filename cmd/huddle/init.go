package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/germanamz/huddle/cmd/huddle/internal/templates"
	"github.com/spf13/cobra"
)

// DefaultTemplate is used by init when stdin is not a terminal.
const DefaultTemplate = "groupchat"

type initOptions struct {
	template string
	dir      string
	force    bool
	list     bool
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter huddle.yaml",
		Long:  "init writes huddle.yaml from an embedded template and seeds a .env file for API keys.",
		Example: `  huddle init
  huddle init --template pair --dir ./demo
  huddle init --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.list {
				return listTemplates(cmd)
			}
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "template name (see --list)")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "directory to write into")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing huddle.yaml")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list available templates")

	return cmd
}

func listTemplates(cmd *cobra.Command) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, m := range templates.List() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", m.Name, m.Description)
	}
	return w.Flush()
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	name := opts.template
	if name == "" {
		var err error
		name, err = pickTemplate(cmd)
		if err != nil {
			return err
		}
	}

	t, err := templates.Get(name)
	if err != nil {
		return err
	}

	path, err := templates.Apply(t, opts.dir, opts.force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = color.New(color.FgGreen).Fprintf(out, "Wrote %s (%s)\n", path, t.Meta.Name)
	_, _ = fmt.Fprintln(out, "Set your API keys in .env, then run: huddle run")
	return nil
}

func pickTemplate(cmd *cobra.Command) (string, error) {
	if !isTerminal(os.Stdin) {
		return DefaultTemplate, nil
	}

	opts := make([]huh.Option[string], 0, len(templates.List()))
	for _, m := range templates.List() {
		opts = append(opts, huh.NewOption(m.Name+": "+m.Description, m.Name))
	}

	name := DefaultTemplate
	sel := huh.NewSelect[string]().
		Title("Choose a template").
		Options(opts...).
		Value(&name)
	if err := huh.NewForm(huh.NewGroup(sel)).RunWithContext(cmd.Context()); err != nil {
		return "", err
	}
	return name, nil
}
