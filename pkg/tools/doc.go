// Package tools groups the function-calling building blocks: the in-process
// toolbox, an MCP client that turns remote MCP servers into toolboxes, and an
// MCP server that exposes toolboxes to other MCP hosts.
package tools
