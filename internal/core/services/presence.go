package services

import (
	"context"
	"log/slog"

	"signalhub/internal/core/contracts"
	"signalhub/internal/core/domain"
)

// PresenceBroadcaster republishes the full online-user list to every
// connection whenever registry membership changes. No diffing: the
// snapshot is cheap and idempotent to recompute.
type PresenceBroadcaster struct {
	ids    *IdentityRegistry
	sender contracts.EventSender
	log    *slog.Logger
}

func NewPresenceBroadcaster(
	log *slog.Logger,
	ids *IdentityRegistry,
	sender contracts.EventSender,
) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		log:    log,
		ids:    ids,
		sender: sender,
	}
}

func (p *PresenceBroadcaster) Publish(ctx context.Context) {
	users := p.ids.Snapshot()
	p.sender.Broadcast(ctx, domain.EvtUsersUpdate, users)
	p.log.InfoContext(ctx, "presence - publish - snapshot broadcast", "online", len(users))
}
