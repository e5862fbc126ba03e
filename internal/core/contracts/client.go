package contracts

import "context"

// Client represents the minimal interface the hub needs to talk to one
// WebSocket connection.
type Client interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
