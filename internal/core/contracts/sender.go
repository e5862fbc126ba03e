package contracts

import "context"

// EventSender is the connection abstraction the core relays through.
// Delivery is best effort: sends to unknown or closed connections are
// silently dropped, the counterpart's own disconnect handling covers it.
type EventSender interface {
	// SendTo delivers a named event to one specific connection.
	SendTo(ctx context.Context, connID string, event string, payload any)
	// Broadcast delivers a named event to every open connection.
	Broadcast(ctx context.Context, event string, payload any)
}
