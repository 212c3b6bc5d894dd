// Package tape maintains a bounded, newest-first buffer of executed trades
// for one listing.
package tape

import (
	"sync"

	"github.com/paddockhq/marketsync/internal/domain"
)

// DefaultCapacity is the tape size when none is configured.
const DefaultCapacity = 100

// Tape is the capped trade buffer. A full refresh replaces the buffer
// wholesale; an incremental event prepends and truncates. Duplicate trade ids
// are dropped so an event that fires after a refresh already included it does
// not double-count.
type Tape struct {
	mu       sync.RWMutex
	capacity int
	trades   []domain.Trade
	seen     map[string]struct{}
}

// New creates a Tape holding at most capacity trades.
func New(capacity int) *Tape {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tape{
		capacity: capacity,
		seen:     make(map[string]struct{}),
	}
}

// Replace swaps in a full trade-history refresh. The input is expected
// newest-first, as delivered by the history query, and is truncated to
// capacity.
func (t *Tape) Replace(trades []domain.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(trades) > t.capacity {
		trades = trades[:t.capacity]
	}
	t.trades = make([]domain.Trade, len(trades))
	copy(t.trades, trades)

	t.seen = make(map[string]struct{}, len(t.trades))
	for _, tr := range t.trades {
		t.seen[tr.ID] = struct{}{}
	}
}

// Push prepends a single incoming trade, evicting the oldest entry at
// capacity. Returns false if the trade id was already present.
func (t *Tape) Push(tr domain.Trade) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.seen[tr.ID]; dup {
		return false
	}

	t.trades = append([]domain.Trade{tr}, t.trades...)
	t.seen[tr.ID] = struct{}{}

	if len(t.trades) > t.capacity {
		evicted := t.trades[len(t.trades)-1]
		delete(t.seen, evicted.ID)
		t.trades = t.trades[:t.capacity]
	}
	return true
}

// Trades returns a copy of the buffer, newest first. Safe to mutate.
func (t *Tape) Trades() []domain.Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Len returns the number of buffered trades.
func (t *Tape) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.trades)
}

// Newest returns the most recent trade, or nil if the tape is empty.
func (t *Tape) Newest() *domain.Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.trades) == 0 {
		return nil
	}
	tr := t.trades[0]
	return &tr
}
