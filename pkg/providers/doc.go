// Package providers groups the concrete [github.com/germanamz/huddle/pkg/modeladapter.Completer]
// implementations:
//   - [github.com/germanamz/huddle/pkg/providers/openai]: Chat Completions client for OpenAI-compatible servers
//   - [github.com/germanamz/huddle/pkg/providers/local]: completion-style local backends (llama.cpp, Ollama, web UI, LM Studio, vLLM)
//   - [github.com/germanamz/huddle/pkg/providers/local/wrapper]: prompt formatters that adapt chats and functions to completion-only models
package providers
