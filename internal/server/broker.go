package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/pipeline"
)

// sessionEventsChannel is the Postgres NOTIFY channel the bridged
// broker uses.
const sessionEventsChannel = "session_events"

// pg_notify caps payloads at 8000 bytes; events larger than this have
// their payload stripped before publication. Clients reconstruct any
// stage payload from the status endpoint, so nothing is lost.
const maxNotifyPayload = 7500

// subscriberBuffer is the per-subscriber channel depth. A full buffer
// means the subscriber is too slow and loses the event.
const subscriberBuffer = 64

// PgBridge is the LISTEN/NOTIFY surface the bridged broker needs,
// satisfied by store.Postgres.
type PgBridge interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (string, error)
	Notify(ctx context.Context, channel, payload string) error
}

// Broker fans session progress events out to SSE subscribers. It
// implements pipeline.Sink.
//
// With a Postgres bridge, Publish goes through pg_notify and the Start
// loop rebroadcasts, so every replica's subscribers see events from
// every replica's pipelines. Without one, Publish broadcasts
// in-process, which matches the single-node memory and sqlite stores.
type Broker struct {
	bridge PgBridge
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan []byte]struct{}
}

// NewBroker creates an in-process broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[uuid.UUID]map[chan []byte]struct{}),
	}
}

// NewBridgedBroker creates a broker that routes events through
// Postgres LISTEN/NOTIFY. Call Start in a goroutine.
func NewBridgedBroker(bridge PgBridge, logger *slog.Logger) *Broker {
	b := NewBroker(logger)
	b.bridge = bridge
	return b
}

// sessionEvent is the wire envelope for one event on the notify channel.
type sessionEvent struct {
	SessionID uuid.UUID      `json:"session_id"`
	Event     pipeline.Event `json:"event"`
}

// Publish delivers an event to subscribers. Best-effort: failures are
// logged and swallowed, since persisted session state is the record of
// truth.
func (b *Broker) Publish(ctx context.Context, sessionID uuid.UUID, ev pipeline.Event) {
	se := sessionEvent{SessionID: sessionID, Event: ev}

	if b.bridge == nil {
		b.dispatch(se)
		return
	}

	raw, err := json.Marshal(se)
	if err != nil {
		b.logger.Warn("broker: encode event", "session_id", sessionID, "error", err)
		return
	}
	if len(raw) > maxNotifyPayload {
		se.Event.Payload = nil
		if raw, err = json.Marshal(se); err != nil {
			b.logger.Warn("broker: encode trimmed event", "session_id", sessionID, "error", err)
			return
		}
	}
	if err := b.bridge.Notify(ctx, sessionEventsChannel, string(raw)); err != nil {
		b.logger.Warn("broker: notify", "session_id", sessionID, "error", err)
	}
}

// Start runs the LISTEN loop for a bridged broker. It blocks, so call
// it in a goroutine; it returns when ctx is cancelled. A no-op without
// a bridge.
func (b *Broker) Start(ctx context.Context) {
	if b.bridge == nil {
		return
	}
	if err := b.bridge.Listen(ctx, sessionEventsChannel); err != nil {
		b.logger.Error("broker: listen", "channel", sessionEventsChannel, "error", err)
		return
	}
	b.logger.Info("broker: listening for notifications", "channel", sessionEventsChannel)

	for {
		payload, err := b.bridge.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // Shutting down.
			}
			b.logger.Warn("broker: notification error, retrying", "error", err)
			continue
		}

		var se sessionEvent
		if err := json.Unmarshal([]byte(payload), &se); err != nil {
			b.logger.Warn("broker: bad notification payload", "error", err)
			continue
		}
		b.dispatch(se)
	}
}

// Subscribe returns a channel of SSE-formatted events for one session.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe(sessionID uuid.UUID) chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	subs, ok := b.subscribers[sessionID]
	if !ok {
		subs = make(map[chan []byte]struct{})
		b.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(sessionID uuid.UUID, ch chan []byte) {
	b.mu.Lock()
	if subs, ok := b.subscribers[sessionID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// dispatch formats the event and sends it to the session's
// subscribers. Slow subscribers with a full buffer lose the event so
// one stalled client cannot block the rest.
func (b *Broker) dispatch(se sessionEvent) {
	data, err := json.Marshal(se.Event)
	if err != nil {
		b.logger.Warn("broker: encode event data", "session_id", se.SessionID, "error", err)
		return
	}
	msg := formatSSE(string(se.Event.Type), string(data))

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers[se.SessionID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// formatSSE formats a notification as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
