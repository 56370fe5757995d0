package handoff

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewChannel(client, "")
}

func TestPublishConsumeOnce(t *testing.T) {
	ch := newTestChannel(t)
	ctx := context.Background()

	require.NoError(t, ch.Publish(ctx, 42))

	id, ok, err := ch.ConsumeOnce(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	// Read implies delete: a second consume finds nothing.
	_, ok, err = ch.ConsumeOnce(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPublishOverwritesUnreadIntent(t *testing.T) {
	ch := newTestChannel(t)
	ctx := context.Background()

	require.NoError(t, ch.Publish(ctx, 7))
	require.NoError(t, ch.Publish(ctx, 9))

	id, ok, err := ch.ConsumeOnce(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), id)
}

func TestConsumeEmptySlot(t *testing.T) {
	ch := newTestChannel(t)

	id, ok, err := ch.ConsumeOnce(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, id)
}

func TestPublishRejectsInvalidOrder(t *testing.T) {
	ch := newTestChannel(t)
	require.Error(t, ch.Publish(context.Background(), 0))
}
