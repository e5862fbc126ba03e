package domain

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"
)

// Inbound event names (client → server).
const (
	EvtRegister            = "register"
	EvtChatMessage         = "chat-message"
	EvtPrivateMessage      = "private-message"
	EvtGetPrivateMessages  = "get-private-messages"
	EvtGetFriends          = "get-friends"
	EvtAddFriend           = "add-friend" // legacy alias of send-friend-request
	EvtSendFriendRequest   = "send-friend-request"
	EvtAcceptFriendRequest = "accept-friend-request"
	EvtDeclineFriendReq    = "decline-friend-request"
	EvtCancelFriendRequest = "cancel-friend-request"
	EvtRemoveFriend        = "remove-friend"
	EvtCallUser            = "call-user"
	EvtMakeAnswer          = "make-answer"
	EvtScreenShare         = "screen-share"
	EvtScreenShareAnswer   = "screen-share-answer"
	EvtScreenShareRejected = "screen-share-rejected"
	EvtIceCandidate        = "ice-candidate"
	EvtEndCall             = "end-call"
	EvtStopScreenShare     = "stop-screen-share"
)

// Outbound event names (server → client).
const (
	EvtUsersUpdate           = "users-update"
	EvtPrivateMessageNotify  = "private-message-notify"
	EvtPrivateMessageHistory = "private-messages-history"
	EvtFriendsUpdate         = "friends-update"
	EvtFriendRequestsUpdate  = "friend-requests-update"
	EvtFriendRequestReceived = "friend-request-received"
	EvtFriendRequestAccepted = "friend-request-accepted"
	EvtCallMade              = "call-made"
	EvtAnswerMade            = "answer-made"
	EvtCallEnded             = "call-ended"
	EvtScreenShareIncoming   = "screen-share-incoming"
	EvtScreenShareAnswerOut  = "screen-share-answer"
	EvtScreenShareStopped    = "screen-share-stopped"
	EvtError                 = "error"
)

// Envelope frames every message on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RegisterPayload binds the connection to a display name.
type RegisterPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// UserEntry is one row of the public presence snapshot.
type UserEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ChatMessage is a public-channel message, broadcast and never stored.
type ChatMessage struct {
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PrivateMessagePayload asks the server to store and route one message.
type PrivateMessagePayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// MessageNotify is the lightweight ping sent alongside delivery.
type MessageNotify struct {
	From string `json:"from"`
}

// HistoryRequest fetches the conversation with one peer.
type HistoryRequest struct {
	With string `json:"with"`
}

// HistoryPayload replays a conversation, oldest first.
type HistoryPayload struct {
	With     string          `json:"with"`
	Messages []MessageRecord `json:"messages"`
}

// FriendActionPayload names the peer of any friend-graph mutation.
type FriendActionPayload struct {
	Username string `json:"username"`
}

// FriendsUpdate carries a user's full friend list.
type FriendsUpdate struct {
	Friends []string `json:"friends"`
}

// FriendRequestsUpdate carries a user's full pending-request queue.
type FriendRequestsUpdate struct {
	Requests []FriendRequest `json:"requests"`
}

// FriendNotice names the counterpart of a request-received or
// request-accepted notification.
type FriendNotice struct {
	Username string `json:"username"`
}

// CallOfferPayload initiates a negotiation with an online user.
type CallOfferPayload struct {
	To    string                    `json:"to"`
	Offer webrtc.SessionDescription `json:"offer"`
}

// IncomingCall is relayed to the negotiation target.
type IncomingCall struct {
	From     string                    `json:"from"` // initiator connection id
	Username string                    `json:"username"`
	Avatar   string                    `json:"avatar"`
	Kind     CallKind                  `json:"kind"`
	Offer    webrtc.SessionDescription `json:"offer"`
}

// CallAnswerPayload accepts an offer; the broker resolves the peer from
// its own state, so To is informational only.
type CallAnswerPayload struct {
	To     string                    `json:"to,omitempty"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// AnswerRelay carries the answer back to the initiator.
type AnswerRelay struct {
	From   string                    `json:"from"` // responder connection id
	Answer webrtc.SessionDescription `json:"answer"`
}

// IceCandidatePayload forwards one ICE candidate to the current peer.
type IceCandidatePayload struct {
	To        string                  `json:"to,omitempty"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// IceCandidateRelay is the relayed form delivered to the peer.
type IceCandidateRelay struct {
	From      string                  `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// CallControlPayload ends or rejects the sender's open negotiation.
type CallControlPayload struct {
	To string `json:"to,omitempty"`
}

// CallTerminated tells the surviving peer the negotiation is over.
type CallTerminated struct {
	From string `json:"from,omitempty"`
}

// ErrorMessage is the wire-safe rejection sent back to a requester.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
