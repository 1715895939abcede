package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInvalidateDropsEveryScope(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	path := WorkflowPath("w1")

	require.NoError(t, c.Set(ctx, path, "org:o", []byte("org view"), time.Minute))
	require.NoError(t, c.Set(ctx, path, "user:u", []byte("user view"), time.Minute))
	require.NoError(t, c.Set(ctx, WorkflowPath("w10"), "user:u", []byte("other"), time.Minute))

	body, ok, err := c.Get(ctx, path, "org:o")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "org view", string(body))

	require.NoError(t, c.Invalidate(ctx, path))

	_, ok, _ = c.Get(ctx, path, "org:o")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, path, "user:u")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, WorkflowPath("w10"), "user:u")
	assert.True(t, ok, "sibling paths survive")
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "/workflows/w", "s", []byte("x"), time.Second))
	_, ok, _ := c.Get(ctx, "/workflows/w", "s")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "/workflows/w", "s")
	assert.False(t, ok)
}
