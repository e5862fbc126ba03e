package services

import (
	"context"
	"encoding/json"
	"testing"

	"signalhub/internal/core/domain"
)

func newRelayFixture(t *testing.T) (*RelayService, *CallService, *fakeSender) {
	t.Helper()
	log := testLogger(t)
	sender := &fakeSender{}
	ids := NewIdentityRegistry()
	presence := NewPresenceBroadcaster(log, ids, sender)
	friends := NewFriendService(log, ids, sender)
	messages := NewMessageService(log, ids, sender)
	calls := NewCallService(log, ids, sender)
	relay := NewRelayService(log, ids, presence, friends, messages, calls, sender)
	return relay, calls, sender
}

func send(t *testing.T, relay *RelayService, connID, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	relay.HandleEvent(context.Background(), connID, raw)
}

func lastError(sender *fakeSender, connID string) (domain.ErrorMessage, bool) {
	for i := len(sender.events) - 1; i >= 0; i-- {
		e := sender.events[i]
		if e.connID == connID && e.event == domain.EvtError {
			return e.payload.(domain.ErrorMessage), true
		}
	}
	return domain.ErrorMessage{}, false
}

// Two registrations, a private message, a history fetch.
func TestRegisterChatAndHistoryScenario(t *testing.T) {
	relay, _, sender := newRelayFixture(t)

	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alice", Avatar: "😀"})
	send(t, relay, "c2", domain.EvtRegister, domain.RegisterPayload{Username: "bob", Avatar: "🐱"})

	// Every registration broadcasts the full snapshot; the second one
	// must list both entries.
	if sender.count("", domain.EvtUsersUpdate) != 2 {
		t.Fatalf("users-update broadcasts = %d, want 2", sender.count("", domain.EvtUsersUpdate))
	}
	last := sender.events[len(sender.events)-1]
	users := last.payload.([]domain.UserEntry)
	if len(users) != 2 {
		t.Fatalf("final snapshot = %+v, want 2 entries", users)
	}

	sender.reset()
	send(t, relay, "c1", domain.EvtPrivateMessage, domain.PrivateMessagePayload{To: "bob", Message: "hi"})
	if sender.count("c2", domain.EvtPrivateMessage) != 1 {
		t.Error("bob should receive exactly one private-message event")
	}
	delivered := sender.eventsFor("c2")[0].payload.(domain.MessageRecord)
	if delivered.Message != "hi" || delivered.From != "alice" {
		t.Errorf("delivered record = %+v", delivered)
	}

	sender.reset()
	send(t, relay, "c1", domain.EvtGetPrivateMessages, domain.HistoryRequest{With: "bob"})
	got := sender.eventsFor("c1")
	if len(got) != 1 || got[0].event != domain.EvtPrivateMessageHistory {
		t.Fatalf("history reply = %+v", got)
	}
	hist := got[0].payload.(domain.HistoryPayload)
	if hist.With != "bob" || len(hist.Messages) != 1 || hist.Messages[0].Message != "hi" {
		t.Errorf("history payload = %+v", hist)
	}
}

func TestAnonymousPublicChat(t *testing.T) {
	relay, _, sender := newRelayFixture(t)

	send(t, relay, "c9", domain.EvtChatMessage, map[string]string{"message": "who am i"})
	if sender.count("", domain.EvtChatMessage) != 1 {
		t.Fatal("public chat should broadcast")
	}
	msg := sender.events[0].payload.(domain.ChatMessage)
	if msg.Username != AnonymousName {
		t.Errorf("unregistered sender attributed as %q, want %q", msg.Username, AnonymousName)
	}
}

func TestCallOfflineTargetScenario(t *testing.T) {
	relay, calls, sender := newRelayFixture(t)
	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alice"})
	sender.reset()

	send(t, relay, "c1", domain.EvtCallUser, domain.CallOfferPayload{To: "bob", Offer: testOffer})

	errMsg, ok := lastError(sender, "c1")
	if !ok || errMsg.Code != "target-offline" {
		t.Fatalf("expected target-offline rejection, got %+v (ok=%v)", errMsg, ok)
	}
	if calls.Negotiating("alice") {
		t.Error("alice should remain idle after failed initiate")
	}
	// No relay landed anywhere else.
	for _, e := range sender.events {
		if e.connID != "c1" {
			t.Errorf("unexpected event delivered: %+v", e)
		}
	}
}

func TestDisconnectUnwindThroughRelay(t *testing.T) {
	relay, calls, sender := newRelayFixture(t)
	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alice"})
	send(t, relay, "c2", domain.EvtRegister, domain.RegisterPayload{Username: "bob"})
	send(t, relay, "c1", domain.EvtCallUser, domain.CallOfferPayload{To: "bob", Offer: testOffer})
	sender.reset()

	relay.HandleDisconnect(context.Background(), "c1")

	if calls.Negotiating("bob") {
		t.Error("bob left negotiating after alice's disconnect")
	}
	if sender.count("c2", domain.EvtCallEnded) != 1 {
		t.Errorf("bob should get exactly one call-ended, got %d", sender.count("c2", domain.EvtCallEnded))
	}
	// The presence broadcast no longer lists alice.
	if sender.count("", domain.EvtUsersUpdate) != 1 {
		t.Fatal("disconnect should republish presence once")
	}
	for _, e := range sender.events {
		if e.event != domain.EvtUsersUpdate {
			continue
		}
		for _, u := range e.payload.([]domain.UserEntry) {
			if u.Username == "alice" {
				t.Error("stale presence entry for disconnected user")
			}
		}
	}

	// A second disconnect for the same connection is a no-op.
	sender.reset()
	relay.HandleDisconnect(context.Background(), "c1")
	if len(sender.events) != 0 {
		t.Errorf("duplicate disconnect emitted events: %+v", sender.events)
	}
}

// Re-registering under a new name displaces the old binding, and no
// disconnect will ever fire for the displaced name. The open negotiation
// must be released at that moment or the peer dangles forever.
func TestRenameReleasesOpenNegotiation(t *testing.T) {
	relay, calls, sender := newRelayFixture(t)
	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alice"})
	send(t, relay, "c2", domain.EvtRegister, domain.RegisterPayload{Username: "bob"})
	send(t, relay, "c1", domain.EvtCallUser, domain.CallOfferPayload{To: "bob", Offer: testOffer})
	sender.reset()

	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alicia"})

	if calls.Negotiating("bob") {
		t.Error("bob left negotiating after peer's rename")
	}
	if calls.Negotiating("alice") || calls.Negotiating("alicia") {
		t.Error("renamed party still negotiating")
	}
	if sender.count("c2", domain.EvtCallEnded) != 1 {
		t.Errorf("bob received %d call-ended events, want 1", sender.count("c2", domain.EvtCallEnded))
	}

	// The later disconnect finds nothing left to unwind: still exactly
	// one termination event in total.
	relay.HandleDisconnect(context.Background(), "c1")
	if sender.count("c2", domain.EvtCallEnded) != 1 {
		t.Errorf("disconnect after rename duplicated termination: %d events", sender.count("c2", domain.EvtCallEnded))
	}

	// Re-registering under the same name is not a rename and must not
	// touch an open negotiation.
	send(t, relay, "c3", domain.EvtRegister, domain.RegisterPayload{Username: "carol"})
	send(t, relay, "c4", domain.EvtRegister, domain.RegisterPayload{Username: "dave"})
	send(t, relay, "c3", domain.EvtCallUser, domain.CallOfferPayload{To: "dave", Offer: testOffer})
	send(t, relay, "c3", domain.EvtRegister, domain.RegisterPayload{Username: "carol", Avatar: "🦊"})
	if !calls.Negotiating("carol") || !calls.Negotiating("dave") {
		t.Error("same-name re-registration must keep the negotiation open")
	}
}

func TestFriendRequestFlowThroughRelay(t *testing.T) {
	relay, _, sender := newRelayFixture(t)
	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alice"})
	send(t, relay, "c2", domain.EvtRegister, domain.RegisterPayload{Username: "bob"})
	sender.reset()

	send(t, relay, "c1", domain.EvtSendFriendRequest, domain.FriendActionPayload{Username: "bob"})
	if sender.count("c2", domain.EvtFriendRequestReceived) != 1 {
		t.Fatal("bob should be notified of the request")
	}

	// Duplicate is rejected to the requester, not re-delivered.
	send(t, relay, "c1", domain.EvtSendFriendRequest, domain.FriendActionPayload{Username: "bob"})
	if errMsg, ok := lastError(sender, "c1"); !ok || errMsg.Code != "duplicate-request" {
		t.Errorf("expected duplicate-request rejection, got %+v (ok=%v)", errMsg, ok)
	}

	sender.reset()
	send(t, relay, "c2", domain.EvtAcceptFriendRequest, domain.FriendActionPayload{Username: "alice"})
	if sender.count("c1", domain.EvtFriendsUpdate) != 1 || sender.count("c2", domain.EvtFriendsUpdate) != 1 {
		t.Error("both parties should get friends-update on accept")
	}

	// get-friends resyncs both lists to the requester.
	sender.reset()
	send(t, relay, "c1", domain.EvtGetFriends, struct{}{})
	if sender.count("c1", domain.EvtFriendsUpdate) != 1 || sender.count("c1", domain.EvtFriendRequestsUpdate) != 1 {
		t.Errorf("resync events = %+v", sender.eventsFor("c1"))
	}
}

func TestRejectionsForUnregisteredAndUnknown(t *testing.T) {
	relay, _, sender := newRelayFixture(t)

	send(t, relay, "c1", domain.EvtPrivateMessage, domain.PrivateMessagePayload{To: "bob", Message: "hi"})
	if errMsg, ok := lastError(sender, "c1"); !ok || errMsg.Code != "not-registered" {
		t.Errorf("expected not-registered rejection, got %+v (ok=%v)", errMsg, ok)
	}

	sender.reset()
	send(t, relay, "c1", "no-such-event", struct{}{})
	if errMsg, ok := lastError(sender, "c1"); !ok || errMsg.Code != "unknown-event" {
		t.Errorf("expected unknown-event rejection, got %+v (ok=%v)", errMsg, ok)
	}

	sender.reset()
	relay.HandleEvent(context.Background(), "c1", []byte("{not json"))
	if _, ok := lastError(sender, "c1"); !ok {
		t.Error("malformed envelope should be rejected")
	}
}

func TestScreenShareRejectThroughRelay(t *testing.T) {
	relay, calls, sender := newRelayFixture(t)
	send(t, relay, "c1", domain.EvtRegister, domain.RegisterPayload{Username: "alice"})
	send(t, relay, "c2", domain.EvtRegister, domain.RegisterPayload{Username: "bob"})
	send(t, relay, "c1", domain.EvtScreenShare, domain.CallOfferPayload{To: "bob", Offer: testOffer})
	sender.reset()

	send(t, relay, "c2", domain.EvtScreenShareRejected, domain.CallControlPayload{})
	if calls.Negotiating("alice") || calls.Negotiating("bob") {
		t.Error("rejection should return both sides to idle")
	}
	if sender.count("c1", domain.EvtScreenShareStopped) != 1 {
		t.Error("initiator should get the termination event")
	}
}
