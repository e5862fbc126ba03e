package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signalhub/internal/app/hub"
	"signalhub/internal/app/server/ws"
	"signalhub/internal/config"
	"signalhub/internal/core/services"
	"signalhub/pkg/logging"
)

type WSHandler struct {
	hub   *hub.Hub
	relay *services.RelayService
	cfg   config.TransportConfig
}

func NewWSHandler(h *hub.Hub, relay *services.RelayService, cfg config.TransportConfig) *WSHandler {
	return &WSHandler{
		hub:   h,
		relay: relay,
		cfg:   cfg,
	}
}

// Handler upgrades the request, assigns the connection its id, and pumps
// inbound frames into the relay until the socket closes. The close path
// fires the relay's disconnect handling exactly once.
func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	// The session must outlive the HTTP request context.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - failed", "err", err)
		cancel()
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("relay.conn_id", connID))

	conn.SetCloseHandler(func(code int, text string) error {
		log.InfoContext(ctx, "ws handler - socket closed", logging.Conn(connID))
		cancel()
		return nil
	})

	socket := ws.NewWebSocket(ctx, conn, s.cfg.ReadLimit, s.cfg.WriteTimeout)
	client := ws.NewClient(ctx, socket, connID, s.cfg.SendBuffer)
	s.hub.Register(client)
	defer s.relay.HandleDisconnect(sessionCtx, connID)
	defer s.hub.Unregister(client)
	log.InfoContext(ctx, "ws handler - connection established", logging.Conn(connID))

	ctx = logging.WithContext(ctx, log.With(logging.Conn(connID)))
	socket.ReadLoop(func(data []byte) {
		s.relay.HandleEvent(ctx, connID, data)
	})
}
