// Package codeexec finds fenced code blocks in agent messages and runs them
// in a working directory, either on the host or inside a Docker container.
package codeexec

import (
	"regexp"
	"strings"
)

// Block is one fenced code block.
type Block struct {
	Lang string
	Code string
}

var fence = regexp.MustCompile("(?s)```[ \\t]*([\\w+-]*)[ \\t]*\\r?\\n(.*?)\\r?\\n[ \\t]*```")

// shellPrefixes mark an unlabeled block as a shell script.
var shellPrefixes = []string{
	"#!/bin/", "pip ", "pip3 ", "python ", "python3 ", "ls", "cd ", "mkdir ",
	"echo ", "cat ", "rm ", "mv ", "cp ", "apt", "brew ", "export ", "sh ", "bash ",
}

// Extract returns the fenced code blocks of text in order. Unlabeled blocks
// are classified as "sh" when they start like a shell command and "python"
// otherwise.
func Extract(text string) []Block {
	matches := fence.FindAllStringSubmatch(text, -1)

	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		lang := strings.ToLower(m[1])
		code := m[2]
		if lang == "" {
			lang = inferLang(code)
		}
		blocks = append(blocks, Block{Lang: lang, Code: code})
	}

	return blocks
}

func inferLang(code string) string {
	trimmed := strings.TrimSpace(code)
	for _, p := range shellPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return "sh"
		}
	}
	return "python"
}

// filenameHint returns the file name declared on the block's first line as
// "# filename: <name>", or "".
func filenameHint(code string) string {
	first, _, _ := strings.Cut(code, "\n")
	first = strings.TrimSpace(first)

	for _, prefix := range []string{"# filename:", "// filename:"} {
		if name, ok := strings.CutPrefix(first, prefix); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}
