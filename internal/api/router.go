package api

import (
	"encoding/json"
	"net/http"
	"time"

	"coop-platformer/internal/game"
	"coop-platformer/internal/render"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// ManagerInterface defines the room manager methods used by the API.
// This interface enables mocking for tests without spinning up room loops.
// Keep this minimal - only include methods the API layer actually calls.
type ManagerInterface interface {
	// Stats returns the current room and player totals
	Stats() (rooms, players int)
	// TickRate returns the configured simulation frequency
	TickRate() int
	// Room returns a room by code, or nil
	Room(code string) *game.Room
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Manager: mockManager,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Manager is the room manager (required)
	Manager ManagerInterface

	// Hub handles WebSocket upgrades on /ws. Optional: if nil the route
	// responds 503, which lets HTTP-only tests skip hub construction.
	Hub *Hub

	// Env is the runtime mode ("development", "production")
	Env string

	// Origins decides CORS admission. If nil, all origins are allowed.
	Origins *OriginPolicy

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool

	// StartedAt feeds the health endpoint's uptime. Zero means "now".
	StartedAt time.Time
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if cfg.Origins == nil {
				return true
			}
			return cfg.Origins.Allow(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Game Server Running"})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		rooms, players := 0, 0
		tickRate := 0
		if cfg.Manager != nil {
			rooms, players = cfg.Manager.Stats()
			tickRate = cfg.Manager.TickRate()
		}
		var origins []string
		if cfg.Origins != nil {
			origins = cfg.Origins.Allowed
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "ok",
			"env":            cfg.Env,
			"uptime":         time.Since(startedAt).Round(time.Second).String(),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"rooms":          rooms,
			"players":        players,
			"tickRate":       tickRate,
			"allowedOrigins": origins,
		})
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Hub == nil {
			http.Error(w, "WebSocket unavailable", http.StatusServiceUnavailable)
			return
		}
		cfg.Hub.HandleWebSocket(w, req)
	})

	// Debug room renderer. Development only: production never exposes room
	// internals over plain HTTP.
	if cfg.Env != "production" {
		r.Get("/debug/rooms/{code}.png", func(w http.ResponseWriter, req *http.Request) {
			handleRoomImage(cfg.Manager, w, req)
		})
	}

	return r
}

func handleRoomImage(m ManagerInterface, w http.ResponseWriter, req *http.Request) {
	if m == nil {
		http.NotFound(w, req)
		return
	}
	room := m.Room(chi.URLParam(req, "code"))
	if room == nil {
		http.NotFound(w, req)
		return
	}
	snap := room.LatestSnapshot()
	if snap == nil {
		http.Error(w, "room has no snapshot yet", http.StatusConflict)
		return
	}
	png, err := render.RenderSnapshot(snap)
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
