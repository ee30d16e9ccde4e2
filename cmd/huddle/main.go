// Huddle runs multi-agent conversations: a user proxy, an assistant or a
// whole group chat, optionally with memory-augmented agents, described by a
// YAML config.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
