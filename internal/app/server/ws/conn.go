package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket wraps a gorilla connection with lifecycle context and the
// deadlines every write must respect.
type WebSocket struct {
	*websocket.Conn
	ctx          context.Context
	cancel       context.CancelFunc
	readLimit    int64
	writeTimeout time.Duration
}

func NewWebSocket(
	parent context.Context,
	conn *websocket.Conn,
	readLimit int64,
	writeTimeout time.Duration,
) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{
		Conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		readLimit:    readLimit,
		writeTimeout: writeTimeout,
	}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.Conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

// ReadLoop pumps inbound frames to onMsg until the connection breaks.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer w.Close()

	// Bounded reads protect against memory exhaustion.
	w.Conn.SetReadLimit(w.readLimit)

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("ws - read loop - unexpected close", "err", err)
			}
			break
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
