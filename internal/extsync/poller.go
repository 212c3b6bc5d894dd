package extsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// DefaultSyncBudget bounds a single external sync call.
const DefaultSyncBudget = 10 * time.Second

// Syncer is the one-shot external auction sync call. Idempotent and safe to
// call repeatedly; the source offers no freshness SLA, so cadence control
// lives entirely on this side.
type Syncer interface {
	Sync(ctx context.Context, externalID string) (domain.ExternalSyncResult, error)
}

// ResultFunc receives each successful sync result.
type ResultFunc func(domain.ExternalSyncResult)

// Poller owns one timer for one auction. It fires an immediate sync on start
// and on visibility regain, reschedules (without firing) when the urgency
// tier changes, suspends while the page is hidden, and never has more than
// one sync call outstanding. Sync failures are logged and do not stop the
// schedule.
type Poller struct {
	syncer     Syncer
	externalID string
	onResult   ResultFunc
	budget     time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	ctx       context.Context
	endsAt    time.Time
	visible   bool
	inFlight  bool
	scheduled time.Duration
	timer     *time.Timer
	started   bool
	stopped   bool
}

// NewPoller creates a Poller for one external listing. onResult receives every
// successful sync; endsAt is the auction end time used for cadence.
func NewPoller(syncer Syncer, externalID string, endsAt time.Time, onResult ResultFunc, logger *slog.Logger) *Poller {
	return &Poller{
		syncer:     syncer,
		externalID: externalID,
		onResult:   onResult,
		budget:     DefaultSyncBudget,
		logger:     logger.With(slog.String("component", "ext_poller"), slog.String("external_id", externalID)),
		now:        time.Now,
		endsAt:     endsAt,
		visible:    true,
	}
}

// Start fires an immediate sync and schedules the timer. No-op when the
// auction has already ended.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true
	p.ctx = ctx

	iv := PollInterval(p.endsAt.Sub(p.now()))
	if iv == 0 {
		p.logger.Info("auction already ended, not polling")
		return
	}
	p.syncLocked()
	p.scheduleLocked(iv)
}

// Stop cancels the timer and discards the effect of any in-flight sync.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	p.cancelTimerLocked()
}

// SetVisible suspends polling entirely while the page is hidden and resumes
// with an immediate sync on visibility regain.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || visible == p.visible {
		return
	}
	p.visible = visible

	if !visible {
		p.cancelTimerLocked()
		return
	}
	if !p.started {
		return
	}
	iv := PollInterval(p.endsAt.Sub(p.now()))
	if iv == 0 {
		return
	}
	p.syncLocked()
	p.scheduleLocked(iv)
}

// SetEndTime adopts a new auction end time, e.g. after a soft-close
// extension, and resumes the schedule if it had gone terminal.
func (p *Poller) SetEndTime(endsAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endsAt = endsAt
	if p.stopped || !p.started || !p.visible || p.timer != nil {
		return
	}
	if iv := PollInterval(p.endsAt.Sub(p.now())); iv > 0 {
		p.scheduleLocked(iv)
	}
}

// tick runs on timer expiry. The interval is recomputed fresh every tick; if
// the tier changed, the timer is rescheduled at the new interval instead of
// firing, which avoids drift amplification near the 2-minute boundary.
func (p *Poller) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.timer = nil
	if p.stopped || !p.visible {
		return
	}

	iv := PollInterval(p.endsAt.Sub(p.now()))
	if iv == 0 {
		p.logger.Info("auction ended, polling stopped")
		return
	}
	if iv != p.scheduled {
		p.scheduleLocked(iv)
		return
	}
	p.syncLocked()
	p.scheduleLocked(iv)
}

// syncLocked launches a sync unless one is already outstanding: a tick that
// finds one in flight is a no-op for that tick, not a queued retry. The
// caller must hold p.mu.
func (p *Poller) syncLocked() {
	if p.inFlight {
		p.logger.Debug("sync already in flight, skipping tick")
		return
	}
	p.inFlight = true
	ctx := p.ctx

	go func() {
		callCtx, cancel := context.WithTimeout(ctx, p.budget)
		res, err := p.syncer.Sync(callCtx, p.externalID)
		cancel()

		p.mu.Lock()
		p.inFlight = false
		stopped := p.stopped
		p.mu.Unlock()

		if stopped {
			// Response after teardown is discarded, not applied.
			return
		}
		if err != nil {
			p.logger.Warn("external sync failed", slog.String("error", err.Error()))
			return
		}
		p.onResult(res)
	}()
}

// scheduleLocked arms the timer. The caller must hold p.mu.
func (p *Poller) scheduleLocked(iv time.Duration) {
	p.cancelTimerLocked()
	p.scheduled = iv
	p.timer = time.AfterFunc(iv, p.tick)
}

// cancelTimerLocked stops any pending timer. The caller must hold p.mu.
func (p *Poller) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
