// Package chats provides a provider-agnostic data model for multi-agent
// conversations.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/huddle/pkg/chats/role]: conversation roles (system, user, assistant, tool)
//   - [github.com/germanamz/huddle/pkg/chats/content]: content parts (text, tool call, tool result)
//   - [github.com/germanamz/huddle/pkg/chats/message]: messages composed of a role, sender, and content parts
//   - [github.com/germanamz/huddle/pkg/chats/chat]: append-only conversation log
//
// No provider or API code is included; chats is the foundation layer that
// agents, the group chat manager and the model adapters build on.
package chats
