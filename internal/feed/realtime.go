// Package feed implements the change-feed subscription primitive on top of
// the database's realtime websocket endpoint (phoenix-style channels carrying
// postgres row changes).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/paddockhq/marketsync/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// heartbeatPeriod keeps the phoenix channel alive.
	heartbeatPeriod = 25 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// envelope is the phoenix message frame.
type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// changePayload is the postgres_changes event payload.
type changePayload struct {
	Data struct {
		Type      string          `json:"type"`
		Table     string          `json:"table"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// subscription is one live (table, filter) binding.
type subscription struct {
	id        string
	topic     string
	table     string
	filterCol string
	filterVal string
	handler   domain.EventHandler
	feed      *RealtimeFeed
}

func (s *subscription) ID() string { return s.id }

// Unsubscribe leaves the channel and stops event delivery. Idempotent.
func (s *subscription) Unsubscribe(ctx context.Context) error {
	return s.feed.unsubscribe(ctx, s)
}

// RealtimeFeed is a reconnecting change-feed client. Each Subscribe call
// joins one channel scoped to (table, filter); events for that binding are
// delivered in arrival order on the read loop goroutine. Delivery is not
// gap-free across reconnects, so consumers re-derive state from a fresh
// snapshot after any refresh trigger.
type RealtimeFeed struct {
	wsURL  string
	apiKey string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string]*subscription // keyed by topic
	refSeq int
	closed bool
	done   chan struct{}
}

// NewRealtimeFeed creates a feed client for the given realtime endpoint.
func NewRealtimeFeed(wsURL, apiKey string, logger *slog.Logger) *RealtimeFeed {
	return &RealtimeFeed{
		wsURL:  wsURL,
		apiKey: apiKey,
		logger: logger.With(slog.String("component", "realtime_feed")),
		subs:   make(map[string]*subscription),
		done:   make(chan struct{}),
	}
}

// Run connects and services the feed until ctx is cancelled, reconnecting
// with capped exponential backoff and rejoining live subscriptions after
// each reconnect.
func (f *RealtimeFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("realtime feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *RealtimeFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL+"?apikey="+f.apiKey, nil)
	if err != nil {
		return &domain.TransportError{Op: "realtime dial", Err: err}
	}

	f.mu.Lock()
	f.conn = conn
	subs := make([]*subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()
		conn.Close()
	}()

	// Rejoin live subscriptions after a reconnect.
	for _, s := range subs {
		if err := f.sendJoin(s); err != nil {
			return err
		}
	}

	go f.heartbeatLoop(ctx, conn)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return &domain.TransportError{Op: "realtime read", Err: err}
		}
		f.dispatch(ctx, env)
	}
}

// Subscribe joins a channel delivering row changes for rows where
// filterCol = filterVal in table. The handler runs on the feed's read loop.
func (f *RealtimeFeed) Subscribe(ctx context.Context, table, filterCol, filterVal string, h domain.EventHandler) (domain.Subscription, error) {
	topic := fmt.Sprintf("realtime:%s:%s=eq.%s", table, filterCol, filterVal)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, domain.ErrClosed
	}
	if _, exists := f.subs[topic]; exists {
		return nil, fmt.Errorf("feed: already subscribed to %s", topic)
	}

	sub := &subscription{
		id:        uuid.NewString(),
		topic:     topic,
		table:     table,
		filterCol: filterCol,
		filterVal: filterVal,
		handler:   h,
		feed:      f,
	}
	f.subs[topic] = sub

	if f.conn != nil {
		if err := f.sendJoin(sub); err != nil {
			delete(f.subs, topic)
			return nil, err
		}
	}
	return sub, nil
}

func (f *RealtimeFeed) unsubscribe(ctx context.Context, sub *subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, live := f.subs[sub.topic]; !live {
		return nil
	}
	delete(f.subs, sub.topic)

	if f.conn == nil {
		return nil
	}
	f.refSeq++
	env := envelope{
		Topic:   sub.topic,
		Event:   "phx_leave",
		Payload: json.RawMessage(`{}`),
		Ref:     fmt.Sprintf("%d", f.refSeq),
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := f.conn.WriteJSON(env); err != nil {
		return &domain.TransportError{Op: "leave " + sub.topic, Err: err}
	}
	return nil
}

// sendJoin writes a phx_join with the postgres_changes binding. The caller
// must hold f.mu with f.conn set.
func (f *RealtimeFeed) sendJoin(sub *subscription) error {
	f.refSeq++
	payload, _ := json.Marshal(map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]any{{
				"event":  "*",
				"schema": "public",
				"table":  sub.table,
				"filter": fmt.Sprintf("%s=eq.%s", sub.filterCol, sub.filterVal),
			}},
		},
	})
	env := envelope{
		Topic:   sub.topic,
		Event:   "phx_join",
		Payload: payload,
		Ref:     fmt.Sprintf("%d", f.refSeq),
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := f.conn.WriteJSON(env); err != nil {
		return &domain.TransportError{Op: "join " + sub.topic, Err: err}
	}
	return nil
}

func (f *RealtimeFeed) dispatch(ctx context.Context, env envelope) {
	if env.Event != "postgres_changes" {
		return
	}

	f.mu.Lock()
	sub := f.subs[env.Topic]
	f.mu.Unlock()
	if sub == nil {
		// Event for a topic that was unsubscribed while in flight.
		return
	}

	var payload changePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		f.logger.Warn("malformed change payload dropped",
			slog.String("topic", env.Topic),
			slog.String("error", err.Error()),
		)
		return
	}

	ev := domain.ChangeEvent{
		Type:       domain.ChangeType(payload.Data.Type),
		Table:      payload.Data.Table,
		Old:        payload.Data.OldRecord,
		New:        payload.Data.Record,
		ReceivedAt: time.Now().UTC(),
	}
	sub.handler(ctx, ev)
}

func (f *RealtimeFeed) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.conn != conn {
				f.mu.Unlock()
				return
			}
			f.refSeq++
			env := envelope{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage(`{}`),
				Ref:     fmt.Sprintf("%d", f.refSeq),
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(env)
			f.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close stops the feed permanently.
func (f *RealtimeFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
	if f.conn != nil {
		f.conn.Close()
	}
}
