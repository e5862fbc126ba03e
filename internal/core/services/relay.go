package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signalhub/internal/core/domain"
)

var tracer = otel.Tracer("relay-service")

// AnonymousName is attributed to public chat from unregistered connections.
const AnonymousName = "anonymous"

// RelayService dispatches every inbound event to the owning component.
// It is the single serialization point of the core: one mutex guards the
// identity registry, friend graph, message store and negotiation broker
// together, so no handler ever observes a half-applied mutation. Nothing
// under the lock blocks on I/O; every operation completes in memory.
type RelayService struct {
	mu       sync.Mutex
	ids      *IdentityRegistry
	presence *PresenceBroadcaster
	friends  *FriendService
	messages *MessageService
	calls    *CallService
	sender   eventSender
	log      *slog.Logger
}

// eventSender is the slice of the hub the relay uses directly for error
// rejections and history replies.
type eventSender interface {
	SendTo(ctx context.Context, connID string, event string, payload any)
}

func NewRelayService(
	log *slog.Logger,
	ids *IdentityRegistry,
	presence *PresenceBroadcaster,
	friends *FriendService,
	messages *MessageService,
	calls *CallService,
	sender eventSender,
) *RelayService {
	return &RelayService{
		log:      log,
		ids:      ids,
		presence: presence,
		friends:  friends,
		messages: messages,
		calls:    calls,
		sender:   sender,
	}
}

// HandleEvent processes one framed client event start to finish under the
// core lock. Rejections go back to the requester as an error event; no
// condition here is fatal to the process.
func (s *RelayService) HandleEvent(ctx context.Context, connID string, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.ErrorContext(ctx, "relay - handle event - malformed envelope", "conn_id", connID, "err", err)
		s.reject(ctx, connID, err)
		return
	}

	ctx, span := tracer.Start(ctx, "RelayService.HandleEvent", trace.WithAttributes(
		attribute.String("relay.event", env.Event),
		attribute.String("relay.conn_id", connID),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dispatch(ctx, connID, env); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event rejected")
		s.log.WarnContext(ctx, "relay - handle event - rejected",
			"conn_id", connID, "event", env.Event, "err", err)
		s.reject(ctx, connID, err)
		return
	}
	span.SetStatus(codes.Ok, "handled")
}

// HandleDisconnect is the system-generated event fired exactly once per
// connection close. It competes for the same lock as client events: the
// negotiation unwind reads identity state, so it must not interleave.
func (s *RelayService) HandleDisconnect(ctx context.Context, connID string) {
	ctx, span := tracer.Start(ctx, "RelayService.HandleDisconnect", trace.WithAttributes(
		attribute.String("relay.conn_id", connID),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ids.ResolveByConn(connID)
	if ok {
		s.calls.Unwind(ctx, id.Name)
	}
	if _, removed := s.ids.Unregister(connID); !removed {
		return
	}
	s.presence.Publish(ctx)
	s.log.InfoContext(ctx, "relay - handle disconnect - identity released",
		"conn_id", connID, "username", id.Name)
}

func (s *RelayService) dispatch(ctx context.Context, connID string, env domain.Envelope) error {
	switch env.Event {
	case domain.EvtRegister:
		var p domain.RegisterPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		// A rename displaces the connection's previous name. Any
		// negotiation keyed by that name would otherwise dangle with no
		// disconnect left to unwind it, so release the peer now.
		if prev, ok := s.ids.ResolveByConn(connID); ok && prev.Name != p.Username {
			s.calls.Unwind(ctx, prev.Name)
		}
		s.ids.Register(connID, p.Username, p.Avatar)
		s.presence.Publish(ctx)
		s.log.InfoContext(ctx, "relay - register - identity bound",
			"conn_id", connID, "username", p.Username)
		return nil

	case domain.EvtChatMessage:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		username, avatar := AnonymousName, ""
		if id, ok := s.ids.ResolveByConn(connID); ok {
			username, avatar = id.Name, id.Avatar
		}
		s.messages.BroadcastPublic(ctx, username, avatar, p.Message)
		return nil

	case domain.EvtPrivateMessage:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		var p domain.PrivateMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		s.messages.RecordAndRoute(ctx, id, p.To, p.Message)
		return nil

	case domain.EvtGetPrivateMessages:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		var p domain.HistoryRequest
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		s.sender.SendTo(ctx, connID, domain.EvtPrivateMessageHistory, domain.HistoryPayload{
			With:     p.With,
			Messages: s.messages.History(id.Name, p.With),
		})
		return nil

	case domain.EvtGetFriends:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		s.friends.SyncTo(ctx, id)
		return nil

	case domain.EvtSendFriendRequest, domain.EvtAddFriend:
		return s.withPeer(ctx, connID, env.Data, func(id *domain.Identity, peer string) error {
			return s.friends.SendRequest(ctx, id.Name, peer)
		})

	case domain.EvtAcceptFriendRequest:
		return s.withPeer(ctx, connID, env.Data, func(id *domain.Identity, peer string) error {
			s.friends.Accept(ctx, id.Name, peer)
			return nil
		})

	case domain.EvtDeclineFriendReq:
		return s.withPeer(ctx, connID, env.Data, func(id *domain.Identity, peer string) error {
			s.friends.Decline(ctx, id.Name, peer)
			return nil
		})

	case domain.EvtCancelFriendRequest:
		return s.withPeer(ctx, connID, env.Data, func(id *domain.Identity, peer string) error {
			s.friends.Cancel(ctx, id.Name, peer)
			return nil
		})

	case domain.EvtRemoveFriend:
		return s.withPeer(ctx, connID, env.Data, func(id *domain.Identity, peer string) error {
			s.friends.RemoveFriend(ctx, id.Name, peer)
			return nil
		})

	case domain.EvtCallUser, domain.EvtScreenShare:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		var p domain.CallOfferPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		kind := domain.KindVoice
		if env.Event == domain.EvtScreenShare {
			kind = domain.KindScreen
		}
		return s.calls.Initiate(ctx, id, p.To, kind, p.Offer)

	case domain.EvtMakeAnswer, domain.EvtScreenShareAnswer:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		var p domain.CallAnswerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return s.calls.Answer(ctx, id, p.Answer)

	case domain.EvtIceCandidate:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		var p domain.IceCandidatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		s.calls.RelayCandidate(ctx, id, p.Candidate)
		return nil

	case domain.EvtEndCall, domain.EvtStopScreenShare, domain.EvtScreenShareRejected:
		id, err := s.requireIdentity(connID)
		if err != nil {
			return err
		}
		s.calls.End(ctx, id)
		return nil
	}
	return domain.ErrUnknownEvent
}

// withPeer factors the common shape of friend-graph events: resolve the
// requester's identity, decode the peer name, run the mutation.
func (s *RelayService) withPeer(
	ctx context.Context,
	connID string,
	data json.RawMessage,
	fn func(id *domain.Identity, peer string) error,
) error {
	id, err := s.requireIdentity(connID)
	if err != nil {
		return err
	}
	var p domain.FriendActionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	return fn(id, p.Username)
}

func (s *RelayService) requireIdentity(connID string) (*domain.Identity, error) {
	id, ok := s.ids.ResolveByConn(connID)
	if !ok {
		return nil, domain.ErrNotRegistered
	}
	return id, nil
}

func (s *RelayService) reject(ctx context.Context, connID string, err error) {
	s.sender.SendTo(ctx, connID, domain.EvtError, domain.ErrorMessage{
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrTargetOffline):
		return "target-offline"
	case errors.Is(err, domain.ErrAlreadyInCall):
		return "already-in-call"
	case errors.Is(err, domain.ErrNotInCall):
		return "not-in-call"
	case errors.Is(err, domain.ErrAlreadyFriends):
		return "already-friends"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate-request"
	case errors.Is(err, domain.ErrNotRegistered):
		return "not-registered"
	case errors.Is(err, domain.ErrUnknownEvent):
		return "unknown-event"
	}
	return "bad-payload"
}
