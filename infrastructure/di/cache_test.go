package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(0)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", 42, 60))
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewInMemoryCache(0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", 10))

	now = now.Add(9 * time.Second)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	c.sweep()
	assert.Empty(t, c.items)
}

func TestInMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Hour)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", 1, 60))
	require.NoError(t, c.Set(ctx, "b", 2, 60))
	require.NoError(t, c.Clear(ctx))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.NotPanics(t, c.Close)
}
