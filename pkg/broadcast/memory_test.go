package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelvault/reelvault/pkg/broadcast"
)

func TestMemoryBroadcaster_DeliversToAllSubscribers(t *testing.T) {
	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	ctx := context.Background()
	s1 := b.Subscribe(ctx)
	s2 := b.Subscribe(ctx)

	require.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "activated"}))

	for _, sub := range []broadcast.Subscriber[string]{s1, s2} {
		select {
		case msg := <-sub.Receive(ctx):
			assert.Equal(t, "activated", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestMemoryBroadcaster_ContextCancellationUnsubscribes(t *testing.T) {
	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	// After cancellation the channel is eventually closed.
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-sub.Receive(context.Background()):
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBroadcaster_SlowConsumerDoesNotBlock(t *testing.T) {
	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx := context.Background()
	_ = b.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := range 10 {
			_ = b.Broadcast(ctx, broadcast.Message[int]{Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow consumer")
	}
}

func TestMemoryBroadcaster_CloseIsIdempotent(t *testing.T) {
	b := broadcast.NewMemoryBroadcaster[int](1)
	sub := b.Subscribe(context.Background())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, open := <-sub.Receive(context.Background())
	assert.False(t, open)
}
