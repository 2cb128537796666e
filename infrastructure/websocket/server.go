package websocket

import (
	"chat-signal/auth"
	"chat-signal/contract"
	"chat-signal/observability"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type ServerConfig struct {
	Addr            string
	JWTSecret       []byte
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	Client          ClientOptions
}

// Server exposes the signaling endpoint and the operational routes:
//
//	GET /ws       authenticated websocket upgrade
//	GET /health   liveness and number of reachable users
//	GET /metrics  Prometheus scrape endpoint
type Server struct {
	log      *slog.Logger
	cfg      ServerConfig
	registry contract.IRegistry
	router   *EventRouter
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*Client
	wg      sync.WaitGroup
}

func NewServer(log *slog.Logger, cfg ServerConfig, registry contract.IRegistry, router *EventRouter, metrics *observability.Metrics) *Server {
	s := &Server{
		log:      log.With("component", "websocket_server"),
		cfg:      cfg,
		registry: registry,
		router:   router,
		metrics:  metrics,
		clients:  make(map[uuid.UUID]*Client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 4 * 1024,
		CheckOrigin:     s.checkOrigin(),
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", auth.Handshake(s.cfg.JWTSecret, http.HandlerFunc(s.serveWs)))
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// ListenAndServe blocks until ctx is canceled, then stops accepting
// connections, closes the open ones and waits for their in-flight events.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Signaling server listening", "addr", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.closeClients()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.log.Warn("Shutdown timeout reached with connections still open")
	}
	return err
}

// serveWs upgrades an authenticated request. The HTTP handler goroutine
// becomes the read loop of the connection; events of one connection are
// therefore handled one at a time, in arrival order.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Failed to upgrade connection", "user_id", userID, "error", err)
		return
	}

	client := NewClient(conn, userID, s.cfg.Client, s.log)
	s.track(client)
	defer s.untrack(client)

	go client.WritePump()

	// In-flight events outlive the request that carried them
	ctx := context.WithoutCancel(r.Context())
	client.ReadPump(func(data []byte) {
		s.router.HandleMessage(ctx, client, data)
	})

	if userID, ok := s.registry.Unregister(client); ok {
		s.log.Debug("Connection closed", "user_id", userID, "conn_id", client.ID())
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"online": len(s.registry.Online()),
	})
}

func (s *Server) checkOrigin() func(r *http.Request) bool {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		// gorilla falls back to a same-host check
		return nil
	}
	if lo.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(origins, origin)
	}
}

func (s *Server) track(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wg.Add(1)
	s.clients[c.ID()] = c
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.ID())
	s.wg.Done()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := lo.Values(s.clients)
	s.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
