// Package usage tracks token consumption reported by LLM backends and how
// many calls were answered from the completion cache.
package usage

import (
	"fmt"
	"sync"
)

// TokenCount holds prompt and completion tokens.
type TokenCount struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (tc TokenCount) Total() int { return tc.InputTokens + tc.OutputTokens }

// Plus returns the sum of tc and o.
func (tc TokenCount) Plus(o TokenCount) TokenCount {
	return TokenCount{InputTokens: tc.InputTokens + o.InputTokens, OutputTokens: tc.OutputTokens + o.OutputTokens}
}

// Summary aggregates usage. Calls counts requests that reached a backend;
// CachedCalls counts replies served from the cache, which cost no tokens.
type Summary struct {
	Calls       int
	CachedCalls int
	Tokens      TokenCount
}

// Plus returns the sum of s and o.
func (s Summary) Plus(o Summary) Summary {
	return Summary{Calls: s.Calls + o.Calls, CachedCalls: s.CachedCalls + o.CachedCalls, Tokens: s.Tokens.Plus(o.Tokens)}
}

func (s Summary) String() string {
	return fmt.Sprintf("%d call(s), %d cached, %d prompt + %d completion tokens",
		s.Calls, s.CachedCalls, s.Tokens.InputTokens, s.Tokens.OutputTokens)
}

// Tracker accumulates usage. It is safe for concurrent use; the zero value
// is ready to use.
type Tracker struct {
	mu   sync.Mutex
	sum  Summary
	last TokenCount
}

// Add records one backend call.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = tc
	t.sum.Tokens = t.sum.Tokens.Plus(tc)
	t.sum.Calls++
}

// AddCached records a reply served from the cache.
func (t *Tracker) AddCached() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sum.CachedCalls++
}

// Last returns the tokens of the latest backend call; false before any.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.sum.Calls > 0
}

// Total returns the tokens of all backend calls.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sum.Tokens
}

// Count returns the number of backend calls.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sum.Calls
}

// Summary returns a snapshot of everything recorded.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sum
}

// Reset clears the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sum, t.last = Summary{}, TokenCount{}
}
