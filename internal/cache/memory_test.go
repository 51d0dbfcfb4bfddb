package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemory("apptoken")

	_, err := c.Get(ctx, "spotify")
	require.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "spotify", "tok", time.Minute))
	v, err := c.Get(ctx, "spotify")
	require.NoError(t, err)
	require.Equal(t, "tok", v)

	require.NoError(t, c.Delete(ctx, "spotify"))
	_, err = c.Get(ctx, "spotify")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Expires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemory("")

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return IsNotFound(err)
	}, time.Second, 10*time.Millisecond)
}

func TestNew_DefaultsToMemory(t *testing.T) {
	t.Parallel()
	c, err := New(context.Background(), Config{Driver: "bogus"})
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
}

func TestMemory_TakeIsSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemory("state")
	require.NoError(t, c.Set(ctx, "s1", "connect", time.Minute))

	const callers = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Take(ctx, "s1"); err == nil && v == "connect" {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())

	_, err := c.Take(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}
