package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Count int    `json:"count"`
	Total string `json:"total"`
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "co-1", Key("co-1", "quick-info"), report{Count: 2, Total: "80"}, time.Minute))

	var got report
	found, err := m.Get(ctx, Key("co-1", "quick-info"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, report{Count: 2, Total: "80"}, got)

	found, err = m.Get(ctx, Key("co-1", "overdue"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Set(ctx, "co-1", "k", report{Count: 1}, time.Minute))
	clock = clock.Add(2 * time.Minute)

	var got report
	found, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_InvalidateGroupOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "co-1", "a", report{Count: 1}, 0))
	require.NoError(t, m.Set(ctx, "co-1", "b", report{Count: 2}, 0))
	require.NoError(t, m.Set(ctx, "co-2", "c", report{Count: 3}, 0))

	require.NoError(t, m.Invalidate(ctx, "co-1"))

	var got report
	for _, key := range []string{"a", "b"} {
		found, err := m.Get(ctx, key, &got)
		require.NoError(t, err)
		assert.False(t, found, key)
	}
	found, err := m.Get(ctx, "c", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "report:co-1:quick-info:today", Key("co-1", "quick-info", "today"))
}
