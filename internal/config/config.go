// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server and simulation settings.
//
// IMPORTANT: When changing defaults, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP/WebSocket server settings.
type ServerConfig struct {
	Port           int      // HTTP listen port
	Env            string   // "development" or "production"
	AllowedOrigins []string // Exact origins allowed by CORS and the WS upgrader
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 4000,
		Env:  "development",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
// Environment variables take precedence over defaults.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if env := os.Getenv("NODE_ENV"); env != "" {
		cfg.Env = env
	}
	if urls := os.Getenv("CLIENT_URL"); urls != "" {
		for _, origin := range strings.Split(urls, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return cfg
}

// IsProduction reports whether the server runs in production mode.
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// GameConfig holds per-room simulation settings.
type GameConfig struct {
	TickRate        int           // Simulation frequency in Hz
	DisconnectGrace time.Duration // Reconnect window before a player is dropped
	RespawnDelay    time.Duration // Delay between a party wipe and the round reset
	World2BaseY     int           // Initial ground height for world 2
}

// DefaultGame returns the default simulation configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:        60,
		DisconnectGrace: 15 * time.Second,
		RespawnDelay:    1800 * time.Millisecond,
		World2BaseY:     820,
	}
}

// GameFromEnv returns simulation configuration with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if ms := getEnvInt("DISCONNECT_GRACE_MS", 0); ms > 0 {
		cfg.DisconnectGrace = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("RESPAWN_DELAY_MS", 0); ms > 0 {
		cfg.RespawnDelay = time.Duration(ms) * time.Millisecond
	}
	if y := getEnvInt("WORLD2_BASE_Y", 0); y > 0 {
		cfg.World2BaseY = y
	}

	return cfg
}

// TickInterval returns the driver period, floored at 10ms.
func (c GameConfig) TickInterval() time.Duration {
	ms := 1000 / c.TickRate
	if ms < 10 {
		ms = 10
	}
	return time.Duration(ms) * time.Millisecond
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server ServerConfig
	Game   GameConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server: ServerFromEnv(),
		Game:   GameFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
