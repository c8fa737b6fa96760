package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"coop-platformer/internal/api"
	"coop-platformer/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  COOP PLATFORMER - GAME SERVER")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	cfg := config.Load()

	log.Printf("⚙️ Env: %s | Tick rate: %d Hz | Grace: %s | Respawn: %s",
		cfg.Server.Env, cfg.Game.TickRate, cfg.Game.DisconnectGrace, cfg.Game.RespawnDelay)
	if len(cfg.Server.AllowedOrigins) > 0 {
		log.Printf("🌍 Allowed origins: %v", cfg.Server.AllowedOrigins)
	} else if cfg.Server.IsProduction() {
		log.Println("⚠️ WARNING: production mode with no CLIENT_URL configured")
	}

	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		api.StartDebugServer("127.0.0.1:6060")
	}

	server := api.NewServer(cfg)

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Shutdown error: %v", err)
	}
	log.Println("👋 Goodbye!")
}
