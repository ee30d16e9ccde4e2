// Package modeladapter defines the completion interface shared by every LLM
// backend and the wrappers layered on top of it.
//
// It contains:
//   - [Completer] interface and embeddable [ModelAdapter] base struct with HTTP helpers and auth
//   - [RateLimitedCompleter] for request throttling and 429 retry with backoff
//   - [Fallback] for provider lists tried in order
//   - [CachedCompleter] for seed-keyed response caching
//   - [TokenEstimator] and [TiktokenCounter] for context-window accounting
//   - [github.com/germanamz/huddle/pkg/modeladapter/usage]: token usage and cache hit tracker
//   - [github.com/germanamz/huddle/pkg/modeladapter/cache]: SQLite and Redis cache backends
//
// This package contains no provider-specific code; concrete adapters live in
// pkg/providers.
package modeladapter
