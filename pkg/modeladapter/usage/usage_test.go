package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_ZeroValue(t *testing.T) {
	var tr Tracker

	_, ok := tr.Last()
	assert.False(t, ok)
	assert.Equal(t, Summary{}, tr.Summary())
}

func TestTracker_CallsAndCache(t *testing.T) {
	var tr Tracker
	tr.Add(TokenCount{InputTokens: 120, OutputTokens: 30})
	tr.AddCached()
	tr.Add(TokenCount{InputTokens: 80, OutputTokens: 10})

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, 90, last.Total())
	assert.Equal(t, 2, tr.Count())
	assert.Equal(t, TokenCount{InputTokens: 200, OutputTokens: 40}, tr.Total())
	assert.Equal(t, Summary{Calls: 2, CachedCalls: 1, Tokens: TokenCount{InputTokens: 200, OutputTokens: 40}}, tr.Summary())

	tr.Reset()
	assert.Equal(t, Summary{}, tr.Summary())
}

func TestSummary_PlusAndString(t *testing.T) {
	a := Summary{Calls: 1, Tokens: TokenCount{InputTokens: 10, OutputTokens: 2}}
	b := Summary{Calls: 2, CachedCalls: 3, Tokens: TokenCount{InputTokens: 5, OutputTokens: 1}}

	sum := a.Plus(b)
	assert.Equal(t, Summary{Calls: 3, CachedCalls: 3, Tokens: TokenCount{InputTokens: 15, OutputTokens: 3}}, sum)
	assert.Equal(t, "3 call(s), 3 cached, 15 prompt + 3 completion tokens", sum.String())
}

func TestTracker_Concurrent(t *testing.T) {
	var tr Tracker
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(TokenCount{InputTokens: 1, OutputTokens: 1})
			tr.AddCached()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Total().Total())
	assert.Equal(t, 50, tr.Summary().CachedCalls)
}
