package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medinventory/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, mc.Ping(ctx))
	require.NoError(t, mc.Set(ctx, "k", []byte("v"), time.Minute))

	val, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, mc.Delete(ctx, "k"))
	_, found, err = mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, mc.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	val, _, _ := mc.Get(ctx, "k")
	val[1] = 'y'

	again, _, _ := mc.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_TTLExpiry(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()
	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 20*time.Millisecond))

	time.Sleep(40 * time.Millisecond)

	_, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_JobProgress(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()
	p := sampleProgress()

	require.NoError(t, mc.SetJobProgress(ctx, p, time.Minute))

	got, found, err := mc.GetJobProgress(ctx, p.JobID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.JobID, got.JobID)
	assert.Equal(t, p.Total, got.Total)
	assert.Equal(t, p.Step, got.Step)

	_, found, err = mc.GetJobProgress(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_JobProgressCorrupt(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, mc.Set(ctx, cache.JobProgressKey(id), []byte("{"), 0))

	_, _, err := mc.GetJobProgress(ctx, id)
	assert.Error(t, err)
}

func TestMemory_IncrWithExpiry(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := mc.IncrWithExpiry(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := mc.IncrWithExpiry(ctx, "short", 20*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	got, err := mc.IncrWithExpiry(ctx, "short", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemory_IncrConcurrent(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mc.IncrWithExpiry(ctx, "rl", time.Minute)
		}()
	}
	wg.Wait()

	got, err := mc.IncrWithExpiry(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), got)
}
