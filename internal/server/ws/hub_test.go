package ws

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddockhq/marketsync/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubBus hands the hub a caller-controlled message channel.
type stubBus struct {
	msgs chan domain.BusMessage
}

func (b *stubBus) Publish(context.Context, string, []byte) error { return nil }

func (b *stubBus) Subscribe(context.Context, ...string) (<-chan domain.BusMessage, func(), error) {
	return b.msgs, func() {}, nil
}

func TestIsSubscribedMatchesExactAndPattern(t *testing.T) {
	c := &client{subs: map[string]bool{
		"ch:book:lst-1": true,
		"ch:auction:*":  true,
	}}

	assert.True(t, c.isSubscribed("ch:book:lst-1"))
	assert.True(t, c.isSubscribed("ch:auction:lst-9"))
	assert.False(t, c.isSubscribed("ch:book:lst-2"))
	assert.False(t, c.isSubscribed("ch:tape:lst-1"))
}

func TestHandleSubscriptionAddsAndRemoves(t *testing.T) {
	c := &client{subs: map[string]bool{}}

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"ch:quote:lst-1", "ch:tape:*"}})
	assert.True(t, c.isSubscribed("ch:quote:lst-1"))
	assert.True(t, c.isSubscribed("ch:tape:lst-7"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"ch:tape:*"}})
	assert.False(t, c.isSubscribed("ch:tape:lst-7"))
	assert.True(t, c.isSubscribed("ch:quote:lst-1"))
}

func TestRunShutdownReleasesBusForwarder(t *testing.T) {
	// More pending messages than the broadcast buffer holds, so a forwarder
	// that ignores cancellation would stay parked on the full channel.
	msgs := make(chan domain.BusMessage, 600)
	for i := 0; i < 600; i++ {
		msgs <- domain.BusMessage{Channel: "ch:book:lst-1", Payload: []byte(`{}`)}
	}
	h := NewHub(&stubBus{msgs: msgs}, discardLogger())

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}
