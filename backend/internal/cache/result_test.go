package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(maxSize int, ttl time.Duration) (*ResultCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewResultCache(maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func result(severity crisis.Severity) *crisis.Result {
	return &crisis.Result{
		OverallSeverity:  severity,
		AnalysisMetadata: crisis.AnalysisMetadata{Method: crisis.MethodPatternAnalysis},
	}
}

func TestHashKey(t *testing.T) {
	base := HashKey("hello", crisis.Metadata{})

	assert.Equal(t, base, HashKey("hello", crisis.Metadata{LanguageCode: "en-US"}), "language is normalised")
	assert.Equal(t, base, HashKey("hello", crisis.Metadata{UserID: "someone"}), "user id does not affect analysis")
	assert.NotEqual(t, base, HashKey("hello", crisis.Metadata{LanguageCode: "es"}))
	assert.NotEqual(t, base, HashKey("hello", crisis.Metadata{CulturalContext: "x"}))
	// separator keeps field boundaries distinct
	assert.NotEqual(t, HashKey("ab", crisis.Metadata{CulturalContext: "c"}), HashKey("a", crisis.Metadata{CulturalContext: "bc"}))
}

func TestResultCache_GetSet(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	_, ok := c.Get("text", crisis.Metadata{})
	assert.False(t, ok)

	r := result(crisis.SeverityHigh)
	c.Set("text", crisis.Metadata{}, r)

	got, ok := c.Get("text", crisis.Metadata{})
	require.True(t, ok)
	assert.Same(t, r, got)

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok = c.Get("text", crisis.Metadata{})
	assert.False(t, ok, "expired entries miss")

	stats := c.Stats()
	assert.Equal(t, Stats{Size: 0, MaxSize: 10, Hits: 1, Misses: 2, TTLSec: 60}, stats)
}

func TestResultCache_SkipsFailsafe(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("text", crisis.Metadata{}, crisis.Failsafe(0))
	c.Set("nil", crisis.Metadata{}, nil)

	assert.Equal(t, 0, c.Stats().Size)
}

func TestResultCache_EvictsOldest(t *testing.T) {
	c, clock := newTestCache(2, time.Hour)

	c.Set("first", crisis.Metadata{}, result(crisis.SeverityLow))
	clock.t = clock.t.Add(time.Second)
	c.Set("second", crisis.Metadata{}, result(crisis.SeverityMedium))
	clock.t = clock.t.Add(time.Second)

	// overwriting an existing key does not evict
	c.Set("second", crisis.Metadata{}, result(crisis.SeverityHigh))
	assert.Equal(t, 2, c.Stats().Size)

	c.Set("third", crisis.Metadata{}, result(crisis.SeverityHigh))
	assert.Equal(t, 2, c.Stats().Size)

	_, ok := c.Get("first", crisis.Metadata{})
	assert.False(t, ok)
	_, ok = c.Get("third", crisis.Metadata{})
	assert.True(t, ok)
}

func TestResultCache_Clear(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("text", crisis.Metadata{}, result(crisis.SeverityLow))
	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestResultCache_Concurrent(t *testing.T) {
	c := NewResultCache(50, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("text-%d", (i+j)%60)
				if _, ok := c.Get(key, crisis.Metadata{}); !ok {
					c.Set(key, crisis.Metadata{}, result(crisis.SeverityLow))
				}
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Size, 50)
	assert.Equal(t, 800, stats.Hits+stats.Misses)
}
