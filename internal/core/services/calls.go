package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"

	"signalhub/internal/core/contracts"
	"signalhub/internal/core/domain"
)

// CallService is the signaling state machine for calls and screen shares.
// It tracks at most one open negotiation per identity, relays the
// offer/answer/ICE/termination events between the two participants, and
// unwinds cleanly when either side disconnects mid-negotiation.
//
// The server never touches media. Offers, answers and candidates are
// relayed verbatim; once the answer lands, traffic flows peer to peer and
// the only thing left for the broker is the teardown.
type CallService struct {
	// Both participant names key the same *Negotiation, so a busy check
	// is a single map lookup for either role.
	negotiations map[string]*domain.Negotiation
	ids          *IdentityRegistry
	sender       contracts.EventSender
	log          *slog.Logger
}

func NewCallService(
	log *slog.Logger,
	ids *IdentityRegistry,
	sender contracts.EventSender,
) *CallService {
	return &CallService{
		negotiations: make(map[string]*domain.Negotiation),
		ids:          ids,
		sender:       sender,
		log:          log,
	}
}

// Initiate opens a negotiation from caller to targetName and relays the
// offer. Fails fast when the target is offline or either party is already
// negotiating: there is no call-waiting, the second caller just gets a
// rejection.
func (s *CallService) Initiate(
	ctx context.Context,
	caller *domain.Identity,
	targetName string,
	kind domain.CallKind,
	offer webrtc.SessionDescription,
) error {
	target, ok := s.ids.ResolveByName(targetName)
	if !ok {
		return domain.ErrTargetOffline
	}
	if _, busy := s.negotiations[caller.Name]; busy {
		return domain.ErrAlreadyInCall
	}
	if _, busy := s.negotiations[targetName]; busy {
		return domain.ErrAlreadyInCall
	}
	n := &domain.Negotiation{
		Initiator: caller.Name,
		Responder: targetName,
		Kind:      kind,
		Phase:     domain.PhaseOffered,
		StartedAt: time.Now(),
	}
	s.negotiations[caller.Name] = n
	s.negotiations[targetName] = n

	s.sender.SendTo(ctx, target.ConnID, incomingEvent(kind), domain.IncomingCall{
		From:     caller.ConnID,
		Username: caller.Name,
		Avatar:   caller.Avatar,
		Kind:     kind,
		Offer:    offer,
	})
	s.log.InfoContext(ctx, "calls - initiate - offer relayed",
		"initiator", caller.Name, "responder", targetName, "kind", string(kind))
	return nil
}

// Answer relays the responder's acceptance to the initiator. A responder
// with no open negotiation gets ErrNotInCall. A peer that vanished between
// offer and answer is a recoverable race: its disconnect already tore the
// negotiation down and notified us, so the relay is silently dropped.
func (s *CallService) Answer(
	ctx context.Context,
	responder *domain.Identity,
	answer webrtc.SessionDescription,
) error {
	n, ok := s.negotiations[responder.Name]
	if !ok {
		return domain.ErrNotInCall
	}
	peerName, _ := n.Peer(responder.Name)
	n.Phase = domain.PhaseAnswered
	peer, ok := s.ids.ResolveByName(peerName)
	if !ok {
		s.log.WarnContext(ctx, "calls - answer - peer gone, dropped",
			"responder", responder.Name, "peer", peerName)
		return nil
	}
	s.sender.SendTo(ctx, peer.ConnID, answerEvent(n.Kind), domain.AnswerRelay{
		From:   responder.ConnID,
		Answer: answer,
	})
	s.log.InfoContext(ctx, "calls - answer - relayed",
		"responder", responder.Name, "peer", peerName)
	return nil
}

// RelayCandidate forwards one ICE candidate to the sender's current peer.
// Candidates are inherently best effort and unordered; a candidate arriving
// after the peer left is dropped, not an error.
func (s *CallService) RelayCandidate(
	ctx context.Context,
	from *domain.Identity,
	candidate webrtc.ICECandidateInit,
) {
	n, ok := s.negotiations[from.Name]
	if !ok {
		return
	}
	peerName, _ := n.Peer(from.Name)
	peer, ok := s.ids.ResolveByName(peerName)
	if !ok {
		return
	}
	s.sender.SendTo(ctx, peer.ConnID, domain.EvtIceCandidate, domain.IceCandidateRelay{
		From:      from.ConnID,
		Candidate: candidate,
	})
}

// End closes the party's open negotiation, rejection and hang-up both
// land here. Both sides return to idle and the connected peer gets one
// termination event. Ending while idle is a no-op.
func (s *CallService) End(ctx context.Context, party *domain.Identity) {
	s.teardown(ctx, party.Name)
}

// Unwind is the disconnect path: the registry is unregistering name's
// connection, so the surviving peer must be released and told. A
// negotiation must never be left dangling on one side.
func (s *CallService) Unwind(ctx context.Context, name string) {
	s.teardown(ctx, name)
}

// Negotiating reports whether name is a participant in an open negotiation.
func (s *CallService) Negotiating(name string) bool {
	_, ok := s.negotiations[name]
	return ok
}

// PeerOf returns the open-negotiation peer of name, if any.
func (s *CallService) PeerOf(name string) (string, bool) {
	n, ok := s.negotiations[name]
	if !ok {
		return "", false
	}
	return n.Peer(name)
}

func (s *CallService) teardown(ctx context.Context, name string) {
	n, ok := s.negotiations[name]
	if !ok {
		return
	}
	peerName, _ := n.Peer(name)
	delete(s.negotiations, name)
	delete(s.negotiations, peerName)
	if peer, ok := s.ids.ResolveByName(peerName); ok {
		s.sender.SendTo(ctx, peer.ConnID, endedEvent(n.Kind), domain.CallTerminated{})
	}
	s.log.InfoContext(ctx, "calls - teardown - negotiation closed",
		"party", name, "peer", peerName, "kind", string(n.Kind), "phase", string(n.Phase))
}

func incomingEvent(kind domain.CallKind) string {
	if kind == domain.KindScreen {
		return domain.EvtScreenShareIncoming
	}
	return domain.EvtCallMade
}

func answerEvent(kind domain.CallKind) string {
	if kind == domain.KindScreen {
		return domain.EvtScreenShareAnswerOut
	}
	return domain.EvtAnswerMade
}

func endedEvent(kind domain.CallKind) string {
	if kind == domain.KindScreen {
		return domain.EvtScreenShareStopped
	}
	return domain.EvtCallEnded
}
