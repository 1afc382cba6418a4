package server

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recvWithTimeout(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerFanOutPerSession(t *testing.T) {
	b := NewBroker(testLogger())
	sessionA := uuid.New()
	sessionB := uuid.New()

	sub1 := b.Subscribe(sessionA)
	defer b.Unsubscribe(sessionA, sub1)
	sub2 := b.Subscribe(sessionA)
	defer b.Unsubscribe(sessionA, sub2)
	other := b.Subscribe(sessionB)
	defer b.Unsubscribe(sessionB, other)

	b.Publish(context.Background(), sessionA, pipeline.Event{
		Type:    pipeline.EventProgress,
		Percent: 10,
		Message: "refining exhibition theme",
	})

	for _, ch := range []chan []byte{sub1, sub2} {
		msg := string(recvWithTimeout(t, ch))
		if !strings.HasPrefix(msg, "event: progress\n") {
			t.Fatalf("unexpected SSE event: %q", msg)
		}
		if !strings.Contains(msg, "refining exhibition theme") {
			t.Fatalf("event missing message: %q", msg)
		}
	}

	// The other session's subscriber sees nothing.
	select {
	case msg := <-other:
		t.Fatalf("subscriber for another session received %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroker(testLogger())
	sessionID := uuid.New()

	ch := b.Subscribe(sessionID)
	defer b.Unsubscribe(sessionID, ch)

	// Publish more events than the buffer holds without reading any.
	// Publish must not block and the overflow is dropped.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(context.Background(), sessionID, pipeline.Event{
			Type:    pipeline.EventProgress,
			Percent: i,
		})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("expected buffer to hold exactly %d events, got %d", subscriberBuffer, got)
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(testLogger())
	sessionID := uuid.New()

	ch := b.Subscribe(sessionID)
	b.Unsubscribe(sessionID, ch)

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}

	// Publishing after the last unsubscribe must not panic.
	b.Publish(context.Background(), sessionID, pipeline.Event{Type: pipeline.EventProgress})
}

func TestFormatSSE(t *testing.T) {
	got := string(formatSSE("stage_complete", `{"percent":30}`))
	want := "event: stage_complete\ndata: {\"percent\":30}\n\n"
	if got != want {
		t.Fatalf("formatSSE = %q, want %q", got, want)
	}
}
