package services

import (
	"context"
	"log/slog"
	"time"

	"signalhub/internal/core/contracts"
	"signalhub/internal/core/domain"
)

// MessageService owns the append-only private conversation logs, keyed by
// the unordered participant pair, and routes records to whoever is online.
// All history is process memory: nothing survives a restart.
type MessageService struct {
	logs   map[string][]domain.MessageRecord
	ids    *IdentityRegistry
	sender contracts.EventSender
	log    *slog.Logger
}

func NewMessageService(
	log *slog.Logger,
	ids *IdentityRegistry,
	sender contracts.EventSender,
) *MessageService {
	return &MessageService{
		logs:   make(map[string][]domain.MessageRecord),
		ids:    ids,
		sender: sender,
		log:    log,
	}
}

// RecordAndRoute stamps, stores and delivers one private message. The
// record is stored even when the recipient is offline; it shows up on
// their next history fetch. The sender always gets an echo, and an online
// recipient additionally gets a lightweight notify event.
func (s *MessageService) RecordAndRoute(
	ctx context.Context,
	from *domain.Identity,
	toName, text string,
) domain.MessageRecord {
	rec := domain.MessageRecord{
		From:      from.Name,
		To:        toName,
		Avatar:    from.Avatar,
		Message:   text,
		Timestamp: time.Now(),
	}
	key := domain.ConversationKey(from.Name, toName)
	s.logs[key] = append(s.logs[key], rec)

	if target, ok := s.ids.ResolveByName(toName); ok {
		s.sender.SendTo(ctx, target.ConnID, domain.EvtPrivateMessage, rec)
		s.sender.SendTo(ctx, target.ConnID, domain.EvtPrivateMessageNotify, domain.MessageNotify{From: from.Name})
	}
	s.sender.SendTo(ctx, from.ConnID, domain.EvtPrivateMessage, rec)
	s.log.InfoContext(ctx, "messages - record and route - stored", "from", from.Name, "to", toName)
	return rec
}

// History returns the full conversation between a and b, oldest first.
// The key is unordered, so History(a, b) and History(b, a) are identical.
func (s *MessageService) History(a, b string) []domain.MessageRecord {
	records := s.logs[domain.ConversationKey(a, b)]
	out := make([]domain.MessageRecord, len(records))
	copy(out, records)
	return out
}

// BroadcastPublic relays a general-channel message to every connection.
// Public chat is ephemeral: it is never written to any log.
func (s *MessageService) BroadcastPublic(
	ctx context.Context,
	username, avatar, text string,
) domain.ChatMessage {
	msg := domain.ChatMessage{
		Username:  username,
		Avatar:    avatar,
		Message:   text,
		Timestamp: time.Now(),
	}
	s.sender.Broadcast(ctx, domain.EvtChatMessage, msg)
	return msg
}
