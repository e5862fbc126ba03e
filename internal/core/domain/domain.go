package domain

import (
	"strings"
	"time"
)

// Identity binds a live connection to a chosen display name.
// The binding exists only while the owning connection is open.
type Identity struct {
	ConnID string
	Name   string
	Avatar string
}

// FriendRequest is one outstanding request from From to To. At most one
// request per ordered (From, To) pair may be pending at a time.
type FriendRequest struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	SentAt time.Time `json:"sent_at"`
}

// MessageRecord is one private message as stored and as delivered.
type MessageRecord struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Avatar    string    `json:"avatar"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CallKind distinguishes the two negotiation flavours.
type CallKind string

const (
	KindVoice  CallKind = "voice"
	KindScreen CallKind = "screen"
)

// NegotiationPhase tracks how far a signaling exchange has progressed.
// There is no server-observed "active" phase: once the answer is relayed
// the media flows peer to peer and the server only sees the teardown.
type NegotiationPhase string

const (
	PhaseOffered  NegotiationPhase = "offered"
	PhaseAnswered NegotiationPhase = "answered"
)

// Negotiation is one in-progress call or screen share between two
// identities, tracked by display name. Each identity appears in at most
// one open negotiation.
type Negotiation struct {
	Initiator string
	Responder string
	Kind      CallKind
	Phase     NegotiationPhase
	StartedAt time.Time
}

// Peer returns the other participant's name, or false when name is not
// part of this negotiation.
func (n *Negotiation) Peer(name string) (string, bool) {
	switch name {
	case n.Initiator:
		return n.Responder, true
	case n.Responder:
		return n.Initiator, true
	}
	return "", false
}

// ConversationKey builds the canonical key for the unordered pair (a, b),
// so that history(a, b) and history(b, a) address the same log.
func ConversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "\x00" + b
}
