package extsync

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddockhq/marketsync/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSyncer counts calls and optionally blocks until released.
type fakeSyncer struct {
	calls   atomic.Int64
	block   chan struct{}
	result  domain.ExternalSyncResult
	err     error
}

func (f *fakeSyncer) Sync(ctx context.Context, externalID string) (domain.ExternalSyncResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.ExternalSyncResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func TestStartFiresImmediateSync(t *testing.T) {
	syncer := &fakeSyncer{result: domain.ExternalSyncResult{ListingID: "ext-1", BidCount: 3}}

	var mu sync.Mutex
	var got []domain.ExternalSyncResult
	p := NewPoller(syncer, "ext-1", time.Now().Add(time.Hour), func(r domain.ExternalSyncResult) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	}, discard())
	defer p.Stop()

	p.Start(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, got[0].BidCount)
}

func TestStartSkipsEndedAuction(t *testing.T) {
	syncer := &fakeSyncer{}
	p := NewPoller(syncer, "ext-1", time.Now().Add(-time.Minute), func(domain.ExternalSyncResult) {}, discard())
	defer p.Stop()

	p.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, syncer.calls.Load(), "an ended auction is never polled")
}

func TestInFlightSyncIsNotReentered(t *testing.T) {
	syncer := &fakeSyncer{block: make(chan struct{})}
	p := NewPoller(syncer, "ext-1", time.Now().Add(time.Hour), func(domain.ExternalSyncResult) {}, discard())
	defer p.Stop()

	p.Start(context.Background())
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Hide/show would normally fire an immediate sync, but one is still
	// outstanding: the trigger is a no-op, not a queued retry.
	p.SetVisible(false)
	p.SetVisible(true)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), syncer.calls.Load())

	close(syncer.block)
}

func TestVisibilityRegainResyncs(t *testing.T) {
	syncer := &fakeSyncer{}
	p := NewPoller(syncer, "ext-1", time.Now().Add(time.Hour), func(domain.ExternalSyncResult) {}, discard())
	defer p.Stop()

	p.Start(context.Background())
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	p.SetVisible(false)
	p.SetVisible(true)

	require.Eventually(t, func() bool { return syncer.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestStopDiscardsLateResult(t *testing.T) {
	syncer := &fakeSyncer{block: make(chan struct{})}

	var applied atomic.Int64
	p := NewPoller(syncer, "ext-1", time.Now().Add(time.Hour), func(domain.ExternalSyncResult) {
		applied.Add(1)
	}, discard())

	p.Start(context.Background())
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	p.Stop()
	close(syncer.block)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, applied.Load(), "a response arriving after teardown is discarded")
}

func TestTierChangeReschedulesWithoutFiring(t *testing.T) {
	syncer := &fakeSyncer{}
	p := NewPoller(syncer, "ext-1", time.Now().Add(2*time.Hour), func(domain.ExternalSyncResult) {}, discard())
	defer p.Stop()

	p.Start(context.Background())
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	p.mu.Lock()
	scheduled := p.scheduled
	p.mu.Unlock()
	require.Equal(t, time.Minute, scheduled)

	// Move the end time into the final-sprint tier and force the timer to
	// expire: the expiry must adopt the new cadence without a sync call.
	p.SetEndTime(time.Now().Add(90 * time.Second))
	p.tick()

	assert.Equal(t, int64(1), syncer.calls.Load(), "a tier change reschedules, it does not fire")
	p.mu.Lock()
	scheduled = p.scheduled
	p.mu.Unlock()
	assert.Equal(t, 5*time.Second, scheduled)

	// With the cadence settled, the next expiry fires normally.
	p.tick()
	require.Eventually(t, func() bool { return syncer.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSyncFailureDoesNotStopSchedule(t *testing.T) {
	syncer := &fakeSyncer{err: &domain.TransportError{Op: "sync", Err: context.DeadlineExceeded}}
	p := NewPoller(syncer, "ext-1", time.Now().Add(time.Hour), func(domain.ExternalSyncResult) {
		t.Fatal("failed sync must not reach onResult")
	}, discard())
	defer p.Stop()

	p.Start(context.Background())
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The failure is logged; visibility regain proves the poller still runs.
	p.SetVisible(false)
	p.SetVisible(true)
	require.Eventually(t, func() bool { return syncer.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
