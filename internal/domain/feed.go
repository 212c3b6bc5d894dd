package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ChangeType is the kind of row-level change delivered by the feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one row-level change. Old carries the previous row image on
// UPDATE/DELETE where the source provides it; New carries the row on
// INSERT/UPDATE. Events for a single entity arrive in order but are not
// gap-free; consumers must tolerate re-deriving state from a fresh snapshot.
type ChangeEvent struct {
	Type       ChangeType
	Table      string
	Old        json.RawMessage
	New        json.RawMessage
	ReceivedAt time.Time
}

// EventHandler consumes change events for one subscription.
type EventHandler func(ctx context.Context, ev ChangeEvent)

// Subscription is a live change-feed binding for one (table, filter) pair.
type Subscription interface {
	ID() string
	Unsubscribe(ctx context.Context) error
}

// ChangeFeed is the per-row change subscription primitive. Filter is an
// equality predicate on a foreign key column, e.g. ("listing_id", "42").
type ChangeFeed interface {
	Subscribe(ctx context.Context, table, filterCol, filterVal string, h EventHandler) (Subscription, error)
}
