package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"signalhub/internal/core/contracts"
	"signalhub/internal/core/domain"
)

// FriendService maintains the symmetric friend graph and the pending
// request queue. Friendships are keyed by display name and survive both
// parties going offline for the lifetime of the process.
//
// Invariants held on every mutation: A is in B's set iff B is in A's set,
// and at most one pending request exists per ordered (from, to) pair.
type FriendService struct {
	edges   map[string]map[string]struct{}
	pending []*domain.FriendRequest
	ids     *IdentityRegistry
	sender  contracts.EventSender
	log     *slog.Logger
}

func NewFriendService(
	log *slog.Logger,
	ids *IdentityRegistry,
	sender contracts.EventSender,
) *FriendService {
	return &FriendService{
		edges:  make(map[string]map[string]struct{}),
		ids:    ids,
		sender: sender,
		log:    log,
	}
}

// SendRequest enqueues a request from → to and notifies the recipient if
// online. Fails when the edge already exists or an identical request is
// still pending.
func (s *FriendService) SendRequest(ctx context.Context, from, to string) error {
	if s.hasEdge(from, to) {
		return domain.ErrAlreadyFriends
	}
	if s.findRequest(from, to) >= 0 {
		return domain.ErrDuplicateRequest
	}
	s.pending = append(s.pending, &domain.FriendRequest{
		From:   from,
		To:     to,
		SentAt: time.Now(),
	})
	s.notifyRequests(ctx, to)
	if target, ok := s.ids.ResolveByName(to); ok {
		s.sender.SendTo(ctx, target.ConnID, domain.EvtFriendRequestReceived, domain.FriendNotice{Username: from})
	}
	s.log.InfoContext(ctx, "friends - send request - queued", "from", from, "to", to)
	return nil
}

// Accept removes the matching pending request, adds the symmetric edge and
// notifies both parties. Removing an absent request is not an error: the
// edge is added regardless.
func (s *FriendService) Accept(ctx context.Context, to, from string) {
	s.removeRequest(from, to)
	s.addEdge(from, to)
	s.notifyFriends(ctx, from)
	s.notifyFriends(ctx, to)
	s.notifyRequests(ctx, to)
	if requester, ok := s.ids.ResolveByName(from); ok {
		s.sender.SendTo(ctx, requester.ConnID, domain.EvtFriendRequestAccepted, domain.FriendNotice{Username: to})
	}
	s.log.InfoContext(ctx, "friends - accept request - edge added", "from", from, "to", to)
}

// Decline drops the pending request from → to. No-op when absent.
func (s *FriendService) Decline(ctx context.Context, to, from string) {
	if !s.removeRequest(from, to) {
		return
	}
	s.notifyRequests(ctx, to)
	s.log.InfoContext(ctx, "friends - decline request - removed", "from", from, "to", to)
}

// Cancel withdraws the sender's own pending request. No-op when absent.
func (s *FriendService) Cancel(ctx context.Context, from, to string) {
	if !s.removeRequest(from, to) {
		return
	}
	s.notifyRequests(ctx, to)
	s.log.InfoContext(ctx, "friends - cancel request - removed", "from", from, "to", to)
}

// RemoveFriend deletes the edge symmetrically, whichever side asks.
// Idempotent; both online parties get their updated lists.
func (s *FriendService) RemoveFriend(ctx context.Context, a, b string) {
	delete(s.edges[a], b)
	delete(s.edges[b], a)
	s.notifyFriends(ctx, a)
	s.notifyFriends(ctx, b)
	s.log.InfoContext(ctx, "friends - remove friend - edge removed", "a", a, "b", b)
}

// Friends returns name's friend set sorted for stable output.
func (s *FriendService) Friends(name string) []string {
	set := s.edges[name]
	out := make([]string, 0, len(set))
	for friend := range set {
		out = append(out, friend)
	}
	sort.Strings(out)
	return out
}

// PendingFor returns the requests addressed to name, oldest first.
func (s *FriendService) PendingFor(name string) []domain.FriendRequest {
	out := make([]domain.FriendRequest, 0)
	for _, req := range s.pending {
		if req.To == name {
			out = append(out, *req)
		}
	}
	return out
}

// SyncTo replays the full friend list and request queue to one identity,
// used on reconnect.
func (s *FriendService) SyncTo(ctx context.Context, id *domain.Identity) {
	s.sender.SendTo(ctx, id.ConnID, domain.EvtFriendsUpdate, domain.FriendsUpdate{Friends: s.Friends(id.Name)})
	s.sender.SendTo(ctx, id.ConnID, domain.EvtFriendRequestsUpdate, domain.FriendRequestsUpdate{Requests: s.PendingFor(id.Name)})
}

func (s *FriendService) hasEdge(a, b string) bool {
	_, ok := s.edges[a][b]
	return ok
}

func (s *FriendService) addEdge(a, b string) {
	if s.edges[a] == nil {
		s.edges[a] = make(map[string]struct{})
	}
	if s.edges[b] == nil {
		s.edges[b] = make(map[string]struct{})
	}
	s.edges[a][b] = struct{}{}
	s.edges[b][a] = struct{}{}
}

func (s *FriendService) findRequest(from, to string) int {
	for i, req := range s.pending {
		if req.From == from && req.To == to {
			return i
		}
	}
	return -1
}

func (s *FriendService) removeRequest(from, to string) bool {
	i := s.findRequest(from, to)
	if i < 0 {
		return false
	}
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
	return true
}

func (s *FriendService) notifyFriends(ctx context.Context, name string) {
	id, ok := s.ids.ResolveByName(name)
	if !ok {
		return
	}
	s.sender.SendTo(ctx, id.ConnID, domain.EvtFriendsUpdate, domain.FriendsUpdate{Friends: s.Friends(name)})
}

func (s *FriendService) notifyRequests(ctx context.Context, name string) {
	id, ok := s.ids.ResolveByName(name)
	if !ok {
		return
	}
	s.sender.SendTo(ctx, id.ConnID, domain.EvtFriendRequestsUpdate, domain.FriendRequestsUpdate{Requests: s.PendingFor(name)})
}
