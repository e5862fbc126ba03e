package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"signalhub/internal/core/domain"
)

type fakeClient struct {
	id   string
	sent [][]byte
}

func (c *fakeClient) ID() string { return c.id }
func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}
func (c *fakeClient) Close() {}

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSendToFramesEnvelope(t *testing.T) {
	h := newTestHub()
	c := &fakeClient{id: "c1"}
	h.Register(c)

	h.SendTo(context.Background(), "c1", domain.EvtError, domain.ErrorMessage{Code: "x", Message: "y"})
	if len(c.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(c.sent))
	}

	var env domain.Envelope
	if err := json.Unmarshal(c.sent[0], &env); err != nil {
		t.Fatalf("frame is not an envelope: %v", err)
	}
	if env.Event != domain.EvtError {
		t.Errorf("event = %q", env.Event)
	}
	var msg domain.ErrorMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil || msg.Code != "x" {
		t.Errorf("data = %s (err %v)", env.Data, err)
	}
}

func TestSendToUnknownConnectionDropped(t *testing.T) {
	h := newTestHub()
	// Must not panic or block.
	h.SendTo(context.Background(), "ghost", domain.EvtError, domain.ErrorMessage{})
}

func TestBroadcastReachesEveryClientOnce(t *testing.T) {
	h := newTestHub()
	clients := []*fakeClient{{id: "c1"}, {id: "c2"}, {id: "c3"}}
	for _, c := range clients {
		h.Register(c)
	}
	h.Unregister(clients[1])

	h.Broadcast(context.Background(), domain.EvtUsersUpdate, []domain.UserEntry{})

	if got := len(clients[0].sent); got != 1 {
		t.Errorf("c1 received %d frames, want 1", got)
	}
	if got := len(clients[1].sent); got != 0 {
		t.Errorf("unregistered c2 received %d frames, want 0", got)
	}
	if got := len(clients[2].sent); got != 1 {
		t.Errorf("c3 received %d frames, want 1", got)
	}
}
