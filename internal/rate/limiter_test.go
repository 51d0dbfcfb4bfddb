package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemoryLimiter(3, time.Minute)
	fixed := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "login:1.2.3.4:alice")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(3-i), res.Remaining)
	}

	res, err := l.Allow(ctx, "login:1.2.3.4:alice")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 50*time.Second, res.RetryAfter)

	// otra clave no comparte ventana
	res, err = l.Allow(ctx, "login:1.2.3.4:bob")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// siguiente ventana
	fixed = fixed.Add(time.Minute)
	res, err = l.Allow(ctx, "login:1.2.3.4:alice")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNoop(t *testing.T) {
	t.Parallel()
	res, err := Noop{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
