package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"signalhub/internal/app/hub"
	"signalhub/internal/app/server/handlers"
	"signalhub/internal/config"
	"signalhub/internal/core/services"
	"signalhub/pkg/middleware"
)

// Server wires the websocket endpoint and the static asset dir behind the
// shared middleware chain.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(
	cfg *config.Config,
	log *slog.Logger,
	h *hub.Hub,
	relay *services.RelayService,
) *Server {
	mux := http.NewServeMux()

	wsHandler := handlers.NewWSHandler(h, relay, *cfg.Transport)
	mux.Handle("/ws", http.HandlerFunc(wsHandler.Handler))
	mux.Handle("/", http.FileServer(http.Dir(cfg.Static.Dir)))

	chain := middleware.TracerMiddleware(cfg.Service.Name)(
		middleware.RequestLogger(log)(mux),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.Service.Addr,
			Handler:     chain,
			ReadTimeout: 15 * time.Second,
			// No WriteTimeout: it would sever long-lived websocket sessions.
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info("server - start - listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
