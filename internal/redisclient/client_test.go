package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestReserveIdempotencyKey(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	existing, reserved, err := c.ReserveIdempotencyKey(ctx, "abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Empty(t, existing)
	assert.True(t, mr.Exists(idempotencyPrefix+"abc"))

	_, reserved, err = c.ReserveIdempotencyKey(ctx, "abc", time.Hour)
	assert.ErrorIs(t, err, ErrInFlight)
	assert.False(t, reserved)
}

func TestCompleteIdempotencyKeyReturnsOrder(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.ReserveIdempotencyKey(ctx, "abc", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.CompleteIdempotencyKey(ctx, "abc", "order-1", time.Hour))

	existing, reserved, err := c.ReserveIdempotencyKey(ctx, "abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "order-1", existing)
}

func TestReleaseIdempotencyKey(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.ReserveIdempotencyKey(ctx, "abc", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.ReleaseIdempotencyKey(ctx, "abc"))

	_, reserved, err := c.ReserveIdempotencyKey(ctx, "abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestIdempotencyKeyExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.ReserveIdempotencyKey(ctx, "abc", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, reserved, err := c.ReserveIdempotencyKey(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestPing(t *testing.T) {
	c, mr := newTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
