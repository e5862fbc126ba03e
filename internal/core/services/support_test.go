package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

// sentEvent is one captured emission; connID is empty for broadcasts.
type sentEvent struct {
	connID  string
	event   string
	payload any
}

type fakeSender struct {
	events []sentEvent
}

func (f *fakeSender) SendTo(_ context.Context, connID, event string, payload any) {
	f.events = append(f.events, sentEvent{connID: connID, event: event, payload: payload})
}

func (f *fakeSender) Broadcast(_ context.Context, event string, payload any) {
	f.events = append(f.events, sentEvent{event: event, payload: payload})
}

func (f *fakeSender) reset() {
	f.events = nil
}

// eventsFor returns the events targeted at one connection.
func (f *fakeSender) eventsFor(connID string) []sentEvent {
	var out []sentEvent
	for _, e := range f.events {
		if e.connID == connID {
			out = append(out, e)
		}
	}
	return out
}

// count returns how many times event was emitted to connID ("" = broadcast).
func (f *fakeSender) count(connID, event string) int {
	n := 0
	for _, e := range f.events {
		if e.connID == connID && e.event == event {
			n++
		}
	}
	return n
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
