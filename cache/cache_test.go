package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/cache"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time         { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newMemory(max int, ttl time.Duration) (*cache.Memory[string], *clock) {
	c := &clock{now: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)}
	m := cache.NewMemory[string](max, ttl)
	m.Now = c.Now
	return m, c
}

// =============================================================================
// MEMORY
// =============================================================================

func TestMemory_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	m, _ := newMemory(10, time.Minute)

	_, ok, err := m.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "res-1", "alice"))
	v, ok, _ := m.Get(ctx, "res-1")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	require.NoError(t, m.Set(ctx, "res-1", "bob"))
	v, _, _ = m.Get(ctx, "res-1")
	assert.Equal(t, "bob", v)

	require.NoError(t, m.Remove(ctx, "res-1"))
	_, ok, _ = m.Get(ctx, "res-1")
	assert.False(t, ok)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, _ := newMemory(2, 0)

	_ = m.Set(ctx, "a", "1")
	_ = m.Set(ctx, "b", "2")
	_, _, _ = m.Get(ctx, "a") // a is now most recent
	_ = m.Set(ctx, "c", "3")

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemory_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	m, clk := newMemory(10, time.Minute)

	_ = m.Set(ctx, "a", "1")
	clk.Advance(59 * time.Second)
	_, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_PurgeDropsOnlyExpired(t *testing.T) {
	ctx := context.Background()
	m, clk := newMemory(10, time.Minute)

	_ = m.Set(ctx, "old-1", "x")
	_ = m.Set(ctx, "old-2", "x")
	clk.Advance(30 * time.Second)
	_ = m.Set(ctx, "fresh", "x")
	clk.Advance(45 * time.Second)

	assert.Equal(t, 2, m.Purge())
	assert.Equal(t, 1, m.Len())
}

// =============================================================================
// JANITOR
// =============================================================================

func TestJanitor_RunNowPurges(t *testing.T) {
	ctx := context.Background()
	m, clk := newMemory(10, time.Minute)
	_ = m.Set(ctx, "a", "1")
	clk.Advance(2 * time.Minute)

	logger, _ := logtest.NewNullLogger()
	j := cache.NewJanitor(m, logger)

	assert.Equal(t, 1, j.RunNow())
	assert.Equal(t, 0, m.Len())
}

func TestJanitor_StartStop(t *testing.T) {
	m, _ := newMemory(10, time.Minute)
	logger, hook := logtest.NewNullLogger()

	j := cache.NewJanitor(m, logger)
	j.Interval = 10 * time.Millisecond
	j.Start()
	j.Start()
	j.Stop()
	j.Stop()

	var started int
	for _, e := range hook.AllEntries() {
		if e.Message == "started" {
			started++
		}
	}
	assert.Equal(t, 1, started)
}

func TestJanitor_Disabled(t *testing.T) {
	m, _ := newMemory(10, time.Minute)
	logger, hook := logtest.NewNullLogger()

	j := cache.NewJanitor(m, logger)
	j.Enabled = false
	j.Start()
	j.Stop()

	assert.Equal(t, "disabled, not starting", hook.LastEntry().Message)
}

// =============================================================================
// REDIS
// =============================================================================

func TestRedis_NilClientIsAlwaysAMiss(t *testing.T) {
	ctx := context.Background()
	r := cache.NewRedis[[]string](nil, "guides", time.Minute)

	require.NoError(t, r.Set(ctx, "res-1", []string{"alice"}))
	_, ok, err := r.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, r.Remove(ctx, "res-1"))
	assert.False(t, r.IsAvailable())
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	r := cache.NewRedis[[]string](client, "test-guides", time.Minute)
	_ = r.Remove(ctx, "res-1")

	_, ok, err := r.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "res-1", []string{"alice", "bob"}))
	v, ok, err := r.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, v)

	require.NoError(t, r.Remove(ctx, "res-1"))
	_, ok, _ = r.Get(ctx, "res-1")
	assert.False(t, ok)
}
