package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"coop-platformer/internal/config"
	"coop-platformer/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server bundles the HTTP router, the WebSocket hub and the room manager.
//
// IMPORTANT: Background listeners do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
type Server struct {
	manager     *game.Manager
	hub         *Hub
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer wires the full production stack: origin policy, hub, manager,
// metrics observers and router.
func NewServer(cfg config.AppConfig) *Server {
	origins := NewOriginPolicy(cfg.Server.Env, cfg.Server.AllowedOrigins)

	hub := NewHub(origins)
	manager := game.NewManager(cfg.Game, hub)
	hub.SetHandler(manager)

	manager.SetTickObserver(RecordTick)
	manager.SetStatsObserver(UpdateRoomStats)

	s := &Server{
		manager:     manager,
		hub:         hub,
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}
	s.router = NewRouter(RouterConfig{
		Manager:     manager,
		Hub:         hub,
		Env:         cfg.Server.Env,
		Origins:     origins,
		RateLimiter: s.rateLimiter,
		StartedAt:   time.Now(),
	})
	return s
}

// Manager returns the room manager.
func (s *Server) Manager() *game.Manager { return s.manager }

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler { return s.router }

// Start opens the listener. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("🌐 Game server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the HTTP listener, then stops every room loop and the
// rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.manager.Shutdown()
	s.rateLimiter.Stop()
	return err
}
