package game

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"coop-platformer/internal/config"
)

// Manager owns the global rooms table. It parses inbound envelopes at the
// transport edge into typed commands and forwards them to the owning room
// goroutine; the table lock covers create/lookup/delete only.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	cfg       config.GameConfig
	transport Transport
	onTick    func(time.Duration)
	onStats   func(rooms, players int)
}

// NewManager creates a room manager on top of a transport.
func NewManager(cfg config.GameConfig, t Transport) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		cfg:       cfg,
		transport: t,
	}
}

// SetTickObserver installs a per-room tick duration callback (metrics).
func (m *Manager) SetTickObserver(fn func(time.Duration)) { m.onTick = fn }

// SetStatsObserver installs a callback fired on room create/destroy with the
// current room and player totals (metrics).
func (m *Manager) SetStatsObserver(fn func(rooms, players int)) { m.onStats = fn }

// TickRate returns the configured simulation frequency.
func (m *Manager) TickRate() int { return m.cfg.TickRate }

// Stats returns the current room and player totals.
func (m *Manager) Stats() (rooms, players int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		players += r.PlayerCount()
	}
	return len(m.rooms), players
}

// Room returns a room by code, or nil.
func (m *Manager) Room(code string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[normalizeRoomCode(code)]
}

// Shutdown stops every room loop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		r.Stop()
	}
	m.rooms = make(map[string]*Room)
}

// HandleEvent routes one inbound envelope. Unknown rooms and unbound
// connections are validation errors or silent drops per the protocol;
// they never mutate room state.
func (m *Manager) HandleEvent(c Conn, event string, data map[string]interface{}) {
	switch event {
	case EventCreateRoom:
		m.createRoom(c, data)
	case EventJoinRoom:
		m.joinRoom(c, data)
	case EventSetPlayerName:
		m.forward(c, setNameCmd{conn: c, name: stringField(data, "name")})
	case EventSetWorld:
		m.forward(c, setWorldCmd{conn: c, world: NormalizeWorld(data["world"])})
	case EventSetLevel:
		sel := data["level"]
		if sel == nil {
			sel = data["world"]
		}
		m.forward(c, setWorldCmd{conn: c, world: NormalizeWorld(sel)})
	case EventSelectHero:
		m.forward(c, selectHeroCmd{conn: c, hero: stringField(data, "hero")})
	case EventSetReady:
		m.forward(c, setReadyCmd{conn: c, ready: boolField(data, "ready")})
	case EventStartGameNow:
		m.forward(c, startCmd{conn: c})
	case EventPlayerInput, EventPlayerMove:
		cmd := inputCmd{conn: c, frame: ParseInputFrame(data)}
		cmd.canvasHeight, cmd.hasCanvas = CanvasHeight(data)
		m.forward(c, cmd)
	default:
		log.Printf("❓ Unknown event %q ignored", event)
	}
}

// HandleDisconnect forwards a transport-level disconnect to the bound room.
func (m *Manager) HandleDisconnect(c Conn) {
	m.forward(c, disconnectCmd{conn: c})
}

func (m *Manager) createRoom(c Conn, data map[string]interface{}) {
	code := normalizeRoomCode(stringField(data, "roomCode"))
	hostID := stringField(data, "hostId")
	maxPlayers := intField(data, "maxPlayers")

	if code == "" || hostID == "" {
		c.Send(EventCreateDenied, denial{Message: "Invalid room code"})
		return
	}
	if maxPlayers < 1 || maxPlayers > 4 {
		c.Send(EventCreateDenied, denial{Message: "maxPlayers must be between 1 and 4"})
		return
	}

	world := World1
	if sel, ok := data["world"]; ok {
		world = NormalizeWorld(sel)
	} else if sel, ok := data["level"]; ok {
		world = NormalizeWorld(sel)
	}

	cmd := createCmd{
		conn:   c,
		hostID: hostID,
		name:   stringField(data, "playerName"),
		world:  world,
	}
	cmd.canvasHeight, cmd.hasCanvas = CanvasHeight(data)

	m.mu.Lock()
	if _, exists := m.rooms[code]; exists {
		m.mu.Unlock()
		c.Send(EventCreateDenied, denial{Message: "Room code already in use"})
		return
	}
	room := NewRoom(code, maxPlayers, m.cfg, m.transport, m.removeRoom)
	room.SetTickObserver(m.onTick)
	m.rooms[code] = room
	m.mu.Unlock()

	go room.Run()
	room.enqueue(cmd)
	m.publishStats()
}

func (m *Manager) joinRoom(c Conn, data map[string]interface{}) {
	code := normalizeRoomCode(stringField(data, "roomCode"))
	playerID := stringField(data, "playerId")

	m.mu.Lock()
	room := m.rooms[code]
	m.mu.Unlock()

	if room == nil {
		c.Send(EventJoinDenied, denial{Message: "Room not found"})
		return
	}
	if playerID == "" {
		c.Send(EventJoinDenied, denial{Message: "Missing playerId"})
		return
	}
	room.enqueue(joinCmd{conn: c, playerID: playerID, name: stringField(data, "name")})
	m.publishStats()
}

// forward routes a command by the connection's room binding. Unbound
// connections and vanished rooms are silently ignored.
func (m *Manager) forward(c Conn, cmd command) {
	code, _ := c.Binding()
	if code == "" {
		return
	}
	m.mu.Lock()
	room := m.rooms[code]
	m.mu.Unlock()
	if room == nil {
		return
	}
	room.enqueue(cmd)
}

// removeRoom is handed to each room as its onEmpty callback.
func (m *Manager) removeRoom(code string) {
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()
	log.Printf("🗑️ Room %s destroyed", code)
	m.publishStats()
}

func (m *Manager) publishStats() {
	if m.onStats == nil {
		return
	}
	rooms, players := m.Stats()
	m.onStats(rooms, players)
}

func normalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return strings.TrimSpace(v)
}

func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
