package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"kaidash/pkg/provider"
	"kaidash/pkg/session"
	"kaidash/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	session *session.Session
	logger  *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	router  chi.Router

	// lifecycle guards httpSrv, sub and closed.
	lifecycle sync.Mutex
	httpSrv   *http.Server
	sub       session.Subscriber
	closed    bool
}

func NewServer(s *session.Session, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		session: s,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		router:  chi.NewRouter(),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/providers", s.handleProviders)
		r.Get("/format", s.handleFormat)
		r.Post("/connect/{kind}", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Post("/refresh", s.handleRefresh)
	})
	s.router.Get("/ws", s.handleWS)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. Calling Start after Shutdown
// returns nil without listening.
func (s *Server) Start(port int) error {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return nil
	}
	if s.httpSrv != nil {
		s.lifecycle.Unlock()
		return errors.New("server already started")
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpSrv = srv
	s.listen()
	s.lifecycle.Unlock()

	s.logger.Info("API server listening", zap.Int("port", port))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and drops the session subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	s.closed = true
	srv, sub := s.httpSrv, s.sub
	s.sub = nil
	s.lifecycle.Unlock()

	if sub != nil {
		s.session.Unsubscribe(sub)
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) status() map[string]interface{} {
	return map[string]interface{}{
		"connection": s.session.State(),
		"snapshot":   s.session.Snapshot(),
		"history":    s.session.History(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Providers())
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("raw")
	cfg := s.session.Config()
	formatted, err := utils.FormatUnits(raw, int32(cfg.UnitDecimals), " "+cfg.UnitSymbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"raw": raw, "formatted": formatted})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	kind, err := provider.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_provider", err)
		return
	}
	if err := s.session.Connect(r.Context(), kind); err != nil {
		reason := session.Reason(err)
		writeError(w, connectStatus(reason), reason, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func connectStatus(reason string) int {
	switch reason {
	case "missing":
		return http.StatusNotFound
	case "rejected", "no_accounts":
		return http.StatusForbidden
	case "timeout":
		return http.StatusGatewayTimeout
	case "superseded", "cancelled":
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Refresh(r.Context()); err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			writeError(w, http.StatusConflict, "not_connected", err)
			return
		}
		writeError(w, http.StatusBadGateway, "query_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.status(),
	})
	s.mu.Unlock()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// listen subscribes before returning so no event after it is missed. The
// forwarding goroutine exits when Shutdown unsubscribes.
func (s *Server) listen() {
	sub := s.session.Subscribe()
	s.sub = sub
	go func() {
		for event := range sub {
			s.broadcast(event)
		}
	}()
}

func (s *Server) broadcast(event session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error(), "reason": reason})
}
