// Package role defines who a message is attributed to when a conversation is
// sent to a model.
package role

import "fmt"

// Role is the chat-completion role of a message.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	// Tool carries a function result back to the model.
	Tool Role = "tool"
)

var all = []Role{System, User, Assistant, Tool}

// Parse maps a wire role name to a Role. "function" is the legacy name for
// Tool used by older OpenAI-compatible servers.
func Parse(s string) (Role, error) {
	if s == "function" {
		return Tool, nil
	}
	for _, r := range all {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("role: unknown role %q", s)
}

// Of returns the role a message from sender has in viewer's own history.
// In multi-agent chats every agent sees its own messages as Assistant and
// everybody else's as User.
func Of(sender, viewer string) Role {
	if sender != "" && sender == viewer {
		return Assistant
	}
	return User
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := Parse(string(r))
	return err == nil && r != "function"
}

func (r Role) String() string { return string(r) }
