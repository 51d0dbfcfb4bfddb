package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/cache"
)

// slowCache adds a round trip delay to every read, like a remote cache.
type slowCache struct {
	cache.Client
	delay   time.Duration
	takeErr error
}

func (c *slowCache) Get(ctx context.Context, key string) (string, error) {
	time.Sleep(c.delay)
	return c.Client.Get(ctx, key)
}

func (c *slowCache) Take(ctx context.Context, key string) (string, error) {
	time.Sleep(c.delay)
	if c.takeErr != nil {
		return "", c.takeErr
	}
	return c.Client.Take(ctx, key)
}

func TestStateStore_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStateStore(&slowCache{Client: cache.NewMemory("test"), delay: 50 * time.Millisecond})
	state, err := store.Issue(ctx, IntentConnect)
	require.NoError(t, err)

	const callers = 4
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Consume(ctx, state, IntentConnect)
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidState)
	}
	assert.Equal(t, 1, ok)
}

func TestStateStore_CacheErrorRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	down := errors.New("redis: connection refused")
	c := &slowCache{Client: cache.NewMemory("test")}
	store := NewStateStore(c)
	state, err := store.Issue(ctx, IntentLink)
	require.NoError(t, err)

	c.takeErr = down
	require.ErrorIs(t, store.Consume(ctx, state, IntentLink), down)

	c.takeErr = nil
	require.NoError(t, store.Consume(ctx, state, IntentLink))
	require.ErrorIs(t, store.Consume(ctx, state, IntentLink), ErrInvalidState)
}
