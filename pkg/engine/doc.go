// Package engine is the composition root that assembles huddle from
// configuration: completers with fallback, rate limiting and caching, MCP
// toolboxes, conversable and memory-augmented agents, the group chat manager,
// and the observers of the event bus. Frontends drive a conversation through
// Engine.Run, watch it on Engine.Events and answer questions for the human
// through Engine.Responder.
package engine
