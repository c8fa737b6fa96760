package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the game server
var (
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_rooms_active",
		Help: "Number of active game rooms",
	})

	playersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_players_connected",
		Help: "Number of players across all rooms",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Duration of one simulation tick",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
	})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent to clients",
	})

	connectionRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Total rejected connections by reason",
	}, []string{"reason"})
)

// RecordTick records the duration of one simulation tick.
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// UpdateRoomStats updates the room and player gauges.
func UpdateRoomStats(rooms, players int) {
	roomsActive.Set(float64(rooms))
	playersConnected.Set(float64(players))
}

// UpdateWSConnections updates the active WebSocket connections gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the outbound message counter.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordConnectionRejected records a rejected connection with the given reason.
func RecordConnectionRejected(reason string) {
	connectionRejectedTotal.WithLabelValues(reason).Inc()
}

// StartDebugServer starts a localhost-only server with pprof and Prometheus
// metrics. Never exposed publicly: bound to 127.0.0.1 and separate from the
// game port.
func StartDebugServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Printf("🔍 Debug server listening on %s (pprof + metrics)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Debug server error: %v", err)
		}
	}()
}
