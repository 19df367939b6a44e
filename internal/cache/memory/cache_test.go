package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hkids/catalog/internal/repository"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "books:published::", []byte(`[]`), time.Minute))

	got, err := c.Get(ctx, "books:published::")
	require.NoError(t, err)
	require.Equal(t, []byte(`[]`), got)
}

func TestCache_MissReturnsSentinel(t *testing.T) {
	c := NewCache()

	_, err := c.Get(context.Background(), "absent")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))

	got, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestCache_Delete(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_DeletePrefix(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "books:published::", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "books:published:3-5:", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "sessions:1", []byte("c"), 0))

	require.NoError(t, c.DeletePrefix(ctx, "books:published:"))

	_, err := c.Get(ctx, "books:published::")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
	_, err = c.Get(ctx, "books:published:3-5:")
	require.ErrorIs(t, err, repository.ErrCacheMiss)

	got, err := c.Get(ctx, "sessions:1")
	require.NoError(t, err)
	require.Equal(t, []byte("c"), got)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("abc"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), again)
}
