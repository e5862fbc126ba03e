package ws

import (
	"context"
	"errors"
	"sync"
)

// RuntimeClient decouples event producers from the socket: sends go into
// a buffered channel drained by a single write loop, so a slow reader
// never blocks the core while it holds its lock.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	out    chan []byte
	once   sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, id string, buffer int) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     id,
		out:    make(chan []byte, buffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string { return c.id }

// Send queues data for the write loop. A full buffer drops the frame
// rather than stalling the caller; delivery here is best effort. The
// channel is never closed, senders race only against ctx cancellation.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return errors.New("client closed")
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
