package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/booking"
	"github.com/warp/tour-pricing/cache"
)

type countingGuides struct {
	calls  int
	guides map[string][]backend.Guide
}

func (c *countingGuides) ListReservationGuides(_ context.Context, id string) ([]backend.Guide, error) {
	c.calls++
	return c.guides[id], nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]backend.Guide, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, string, []backend.Guide) error {
	return errors.New("connection refused")
}
func (brokenCache) Remove(context.Context, string) error { return errors.New("connection refused") }

func TestGuideDirectory_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	src := &countingGuides{guides: map[string][]backend.Guide{
		"res-1": {{ID: "g1", Name: "Ada"}},
	}}
	logger, _ := logtest.NewNullLogger()
	dir := booking.NewGuideDirectory(src, cache.NewMemory[[]backend.Guide](10, time.Minute), logger)

	for i := 0; i < 3; i++ {
		guides, err := dir.Guides(ctx, "res-1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", guides[0].Name)
	}
	assert.Equal(t, 1, src.calls)

	dir.Invalidate(ctx, "res-1")
	_, err := dir.Guides(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestGuideDirectory_EmptyResultIsCached(t *testing.T) {
	ctx := context.Background()
	src := &countingGuides{}
	logger, _ := logtest.NewNullLogger()
	dir := booking.NewGuideDirectory(src, cache.NewMemory[[]backend.Guide](10, time.Minute), logger)

	guides, err := dir.Guides(ctx, "res-2")
	require.NoError(t, err)
	assert.NotNil(t, guides)
	assert.Empty(t, guides)

	_, _ = dir.Guides(ctx, "res-2")
	assert.Equal(t, 1, src.calls)
}

func TestGuideDirectory_CacheFailureFallsBackToSource(t *testing.T) {
	ctx := context.Background()
	src := &countingGuides{guides: map[string][]backend.Guide{"res-1": {{ID: "g1", Name: "Ada"}}}}
	logger, hook := logtest.NewNullLogger()
	dir := booking.NewGuideDirectory(src, brokenCache{}, logger)

	guides, err := dir.Guides(ctx, "res-1")
	require.NoError(t, err)
	assert.Len(t, guides, 1)
	assert.Len(t, hook.AllEntries(), 2, "read and write failures are logged")
}
