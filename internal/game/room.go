package game

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"coop-platformer/internal/config"
)

// LobbyPlayer is a player's pre-game state. Hero is empty until chosen.
type LobbyPlayer struct {
	Hero  string
	Ready bool
	Name  string
}

// Room is one bounded multiplayer session. All fields below the channel pair
// are owned exclusively by the room goroutine: commands from the transport
// and tick steps observe a total order, so no locking is needed inside.
type Room struct {
	code      string
	cfg       config.GameConfig
	transport Transport
	onEmpty   func(code string)
	onTick    func(d time.Duration)

	commands chan command
	done     chan struct{}
	stopOnce sync.Once

	maxPlayers  int
	hostID      string
	started     bool
	world       int
	world2BaseY float64

	playerOrder []string
	players     map[string]*LobbyPlayer
	conns       map[string]map[Conn]struct{}
	graceTimers map[string]*time.Timer

	runtime       *WorldRuntime
	sim           map[string]*PlayerState
	inputs        map[string]InputFrame
	keyCollected  bool
	playersAtDoor []int
	gameStatus    string
	deadUntil     time.Time
	lastStep      time.Time

	simOrder []*PlayerState
	scratch  []collidable

	// Published for cross-goroutine readers (health endpoint, renderer).
	playerCount atomic.Int32
	latest      atomic.Pointer[Snapshot]
}

// NewRoom builds an empty lobby. The caller starts the loop with Run.
func NewRoom(code string, maxPlayers int, cfg config.GameConfig, t Transport, onEmpty func(string)) *Room {
	return &Room{
		code:        code,
		cfg:         cfg,
		transport:   t,
		onEmpty:     onEmpty,
		commands:    make(chan command, 64),
		done:        make(chan struct{}),
		maxPlayers:  maxPlayers,
		world:       World1,
		world2BaseY: float64(cfg.World2BaseY),
		players:     make(map[string]*LobbyPlayer),
		conns:       make(map[string]map[Conn]struct{}),
		graceTimers: make(map[string]*time.Timer),
		sim:         make(map[string]*PlayerState),
		inputs:      make(map[string]InputFrame),
		gameStatus:  StatusWaiting,
		scratch:     make([]collidable, 0, 64),
	}
}

// SetTickObserver installs a per-step duration callback (metrics).
// Must be called before Run.
func (r *Room) SetTickObserver(fn func(time.Duration)) { r.onTick = fn }

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// PlayerCount returns the current lobby size. Safe from any goroutine.
func (r *Room) PlayerCount() int { return int(r.playerCount.Load()) }

// LatestSnapshot returns the most recently published snapshot, or nil before
// the first emit. Safe from any goroutine.
func (r *Room) LatestSnapshot() *Snapshot { return r.latest.Load() }

// Run drives the room: one goroutine multiplexing the tick timer and the
// inbound command channel. Commands are processed between ticks; a tick is
// never interrupted.
func (r *Room) Run() {
	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case cmd := <-r.commands:
			r.handle(cmd)
		case <-ticker.C:
			r.step(time.Now())
		case <-r.done:
			return
		}
	}
}

// Stop terminates the room loop. Pending grace timers become no-ops.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// enqueue hands a command to the room goroutine, dropping it if the room is
// already stopped.
func (r *Room) enqueue(cmd command) {
	select {
	case r.commands <- cmd:
	case <-r.done:
	}
}

// handle dispatches one command. A panicking handler aborts that command
// only; the room and its tick loop keep running.
func (r *Room) handle(cmd command) {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("⚠️ Room %s: %T aborted: %v", r.code, cmd, err)
		}
	}()

	switch c := cmd.(type) {
	case createCmd:
		r.handleCreate(c)
	case joinCmd:
		r.handleJoin(c)
	case setWorldCmd:
		r.handleSetWorld(c)
	case setNameCmd:
		r.handleSetName(c)
	case selectHeroCmd:
		r.handleSelectHero(c)
	case setReadyCmd:
		r.handleSetReady(c)
	case startCmd:
		r.handleStart(c)
	case inputCmd:
		r.handleInput(c)
	case disconnectCmd:
		r.handleDisconnect(c)
	case graceExpiredCmd:
		r.handleGraceExpired(c.playerID)
	}
}

// =============================================================================
// LOBBY COMMANDS
// =============================================================================

func (r *Room) handleCreate(c createCmd) {
	r.hostID = c.hostID
	r.world = c.world
	if c.hasCanvas {
		r.storeCanvasHeight(c.canvasHeight)
	}

	name := SanitizeName(c.name)
	if name == "" {
		name = "Player 1"
	}
	r.players[c.hostID] = &LobbyPlayer{Name: name}
	r.playerOrder = append(r.playerOrder, c.hostID)
	r.playerCount.Store(int32(len(r.players)))

	r.attachConn(c.conn, c.hostID)
	c.conn.Send(EventJoinSuccess, joinSuccessPayload{
		RoomCode:    r.code,
		PlayerID:    c.hostID,
		PlayerIndex: 1,
		Message:     fmt.Sprintf("Created room %s", r.code),
	})

	log.Printf("🏠 Room %s created by %s (max %d)", r.code, c.hostID, r.maxPlayers)
	r.emitRoomState()
	r.emitGameState()
}

func (r *Room) handleJoin(c joinCmd) {
	if _, ok := r.players[c.playerID]; ok {
		r.reconnect(c)
		return
	}
	if r.started {
		c.conn.Send(EventJoinDenied, denial{Message: "Game already started"})
		return
	}
	if len(r.players) >= r.maxPlayers {
		c.conn.Send(EventJoinDenied, denial{Message: "Room is full"})
		return
	}

	name := SanitizeName(c.name)
	if name == "" {
		name = fmt.Sprintf("Player %d", len(r.playerOrder)+1)
	}
	r.players[c.playerID] = &LobbyPlayer{Name: name}
	r.playerOrder = append(r.playerOrder, c.playerID)
	r.playerCount.Store(int32(len(r.players)))

	r.attachConn(c.conn, c.playerID)
	c.conn.Send(EventJoinSuccess, joinSuccessPayload{
		RoomCode:    r.code,
		PlayerID:    c.playerID,
		PlayerIndex: r.slotOf(c.playerID),
		Message:     fmt.Sprintf("Joined room %s", r.code),
	})

	log.Printf("👤 %s joined room %s (%d/%d)", c.playerID, r.code, len(r.players), r.maxPlayers)
	r.emitRoomState()
	r.emitGameState()
}

// reconnect keeps the LobbyPlayer and slot, detaches any stale sockets for
// that player, and cancels the pending grace timer.
func (r *Room) reconnect(c joinCmd) {
	r.cancelGrace(c.playerID)

	for stale := range r.conns[c.playerID] {
		r.transport.Leave(r.code, stale)
		stale.Bind("", "")
	}
	r.conns[c.playerID] = make(map[Conn]struct{})

	r.attachConn(c.conn, c.playerID)
	c.conn.Send(EventJoinSuccess, joinSuccessPayload{
		RoomCode:    r.code,
		PlayerID:    c.playerID,
		PlayerIndex: r.slotOf(c.playerID),
		Message:     fmt.Sprintf("Reconnected to room %s", r.code),
	})

	log.Printf("🔄 %s reconnected to room %s", c.playerID, r.code)
	r.emitRoomState()
	r.emitGameState()
}

func (r *Room) attachConn(c Conn, playerID string) {
	set, ok := r.conns[playerID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[playerID] = set
	}
	set[c] = struct{}{}
	c.Bind(r.code, playerID)
	r.transport.Join(r.code, c)
}

func (r *Room) handleSetWorld(c setWorldCmd) {
	_, playerID := c.conn.Binding()
	if playerID != r.hostID {
		return
	}
	// World can only change before the match starts.
	if r.started {
		return
	}

	r.world = c.world
	r.runtime = NewWorldRuntime(r.world, r.world2BaseY)
	r.resetRound(StatusWaiting)
	r.inputs = make(map[string]InputFrame)

	r.emitRoomState()
	r.emitGameState()
}

func (r *Room) handleSetName(c setNameCmd) {
	_, playerID := c.conn.Binding()
	lp, ok := r.players[playerID]
	if !ok {
		return
	}
	name := SanitizeName(c.name)
	if name == "" {
		return
	}
	lp.Name = name
	if ps, ok := r.sim[playerID]; ok {
		ps.Name = name
	}
	r.emitRoomState()
}

func (r *Room) handleSelectHero(c selectHeroCmd) {
	_, playerID := c.conn.Binding()
	lp, ok := r.players[playerID]
	if !ok {
		return
	}
	for id, other := range r.players {
		if id != playerID && other.Hero == c.hero {
			c.conn.Send(EventHeroDenied, denial{Message: "Hero already taken"})
			return
		}
	}
	lp.Hero = c.hero
	lp.Ready = false
	r.emitRoomState()
}

func (r *Room) handleSetReady(c setReadyCmd) {
	_, playerID := c.conn.Binding()
	lp, ok := r.players[playerID]
	if !ok {
		return
	}
	if lp.Hero == "" {
		c.conn.Send(EventReadyDenied, denial{Message: "Pick a hero first"})
		return
	}
	lp.Ready = c.ready
	r.emitRoomState()
}

func (r *Room) handleStart(c startCmd) {
	_, playerID := c.conn.Binding()
	if playerID != r.hostID {
		c.conn.Send(EventStartDenied, denial{Message: "Only the host can start"})
		return
	}
	for _, lp := range r.players {
		if lp.Hero == "" {
			c.conn.Send(EventStartDenied, denial{Message: "Everyone must pick a hero"})
			return
		}
	}
	for _, lp := range r.players {
		if !lp.Ready {
			c.conn.Send(EventStartDenied, denial{Message: "Everyone must be ready"})
			return
		}
	}

	r.runtime = NewWorldRuntime(r.world, r.world2BaseY)
	r.resetRound(StatusPlaying)
	r.started = true
	r.lastStep = time.Time{}

	log.Printf("🎮 Room %s: match started in world %d with %d players", r.code, r.world, len(r.players))
	r.transport.Broadcast(r.code, EventStartGame, nil)
	r.emitRoomState()
	r.emitGameState()
}

func (r *Room) handleInput(c inputCmd) {
	if !r.started {
		return
	}
	_, playerID := c.conn.Binding()
	if _, ok := r.players[playerID]; !ok {
		return
	}
	r.inputs[playerID] = c.frame
	if c.hasCanvas && r.world == World2 {
		r.storeCanvasHeight(c.canvasHeight)
	}
}

// storeCanvasHeight syncs the world 2 ground height with a reported client
// viewport. Live players are translated so they stay planted on the floor.
func (r *Room) storeCanvasHeight(height float64) {
	baseY := clamp(math.Round(height)-80, World2BaseYMin, World2BaseYMax)
	if math.Abs(baseY-r.world2BaseY) < 2 {
		return
	}
	r.world2BaseY = baseY

	if r.world != World2 || r.runtime == nil {
		return
	}
	oldGroundY := r.runtime.GroundY
	r.runtime = NewWorldRuntime(World2, baseY)
	delta := r.runtime.GroundY - oldGroundY
	for _, ps := range r.sim {
		if ps.Dead {
			continue
		}
		ps.Y += delta
		ps.prevY += delta
	}
	r.emitGameState()
}

// =============================================================================
// DISCONNECT & GRACE
// =============================================================================

func (r *Room) handleDisconnect(c disconnectCmd) {
	_, playerID := c.conn.Binding()
	set, ok := r.conns[playerID]
	if !ok {
		return
	}
	delete(set, c.conn)
	r.transport.Leave(r.code, c.conn)
	c.conn.Bind("", "")

	if len(set) == 0 {
		r.armGrace(playerID)
	}
}

// armGrace schedules removal after the reconnect window. Re-arming cancels
// the previous timer, so the grace period is idempotent per player.
func (r *Room) armGrace(playerID string) {
	r.cancelGrace(playerID)
	r.graceTimers[playerID] = time.AfterFunc(r.cfg.DisconnectGrace, func() {
		r.enqueue(graceExpiredCmd{playerID: playerID})
	})
	log.Printf("⏳ %s lost connection to room %s, %s grace", playerID, r.code, r.cfg.DisconnectGrace)
}

func (r *Room) cancelGrace(playerID string) {
	if t, ok := r.graceTimers[playerID]; ok {
		t.Stop()
		delete(r.graceTimers, playerID)
	}
}

func (r *Room) handleGraceExpired(playerID string) {
	delete(r.graceTimers, playerID)
	if _, ok := r.players[playerID]; !ok {
		return
	}
	if len(r.conns[playerID]) > 0 {
		return
	}
	r.removePlayer(playerID)
}

func (r *Room) removePlayer(playerID string) {
	delete(r.players, playerID)
	delete(r.sim, playerID)
	delete(r.inputs, playerID)
	delete(r.conns, playerID)
	for i, id := range r.playerOrder {
		if id == playerID {
			r.playerOrder = append(r.playerOrder[:i], r.playerOrder[i+1:]...)
			break
		}
	}
	r.playerCount.Store(int32(len(r.players)))
	log.Printf("👋 %s removed from room %s after grace expiry", playerID, r.code)

	if len(r.players) == 0 {
		log.Printf("🏚️ Room %s empty, shutting down", r.code)
		if r.onEmpty != nil {
			r.onEmpty(r.code)
		}
		r.Stop()
		return
	}

	if playerID == r.hostID {
		r.hostID = r.playerOrder[0]
		log.Printf("👑 Room %s: host transferred to %s", r.code, r.hostID)
	}
	r.emitRoomState()
	r.emitGameState()
}

// =============================================================================
// SIMULATION
// =============================================================================

// step runs one fixed-rate simulation tick.
func (r *Room) step(now time.Time) {
	if !r.started || r.runtime == nil {
		return
	}
	begin := time.Now()

	nominal := time.Second / time.Duration(r.cfg.TickRate)
	elapsed := nominal
	if !r.lastStep.IsZero() {
		elapsed = now.Sub(r.lastStep)
	}
	r.lastStep = now
	dtScale := clamp(elapsed.Seconds()*float64(r.cfg.TickRate), 0.5, 2.5)

	r.runtime.Update(dtScale)

	r.simOrder = r.simOrder[:0]
	for _, playerID := range r.playerOrder {
		r.simOrder = append(r.simOrder, r.ensurePlayerState(playerID))
	}
	for _, ps := range r.simOrder {
		if ps.Dead {
			continue
		}
		fell := ps.Step(r.inputs[ps.PlayerID], r.runtime, r.simOrder, dtScale, r.scratch)
		if fell && r.gameStatus != StatusDead {
			r.gameStatus = StatusDead
			r.deadUntil = now.Add(r.cfg.RespawnDelay)
		}
	}

	r.evaluate(now)
	r.emitGameState()

	if r.onTick != nil {
		r.onTick(time.Since(begin))
	}
}

// ensurePlayerState lazily creates the simulation entity for a player and
// repairs non-finite coordinates in-place.
func (r *Room) ensurePlayerState(playerID string) *PlayerState {
	if ps, ok := r.sim[playerID]; ok {
		ps.repair(r.runtime)
		return ps
	}
	lp := r.players[playerID]
	ps := NewPlayerState(r.slotOf(playerID), playerID, lp.Hero, lp.Name, r.runtime)
	r.sim[playerID] = ps
	return ps
}

// evaluate applies the post-step round invariants. Order matters: respawn,
// key pickup, hazards, then door completion.
func (r *Room) evaluate(now time.Time) {
	if r.gameStatus == StatusDead {
		if !r.deadUntil.IsZero() && !now.Before(r.deadUntil) {
			r.resetRound(StatusPlaying)
		}
		return
	}

	if !r.keyCollected {
		for _, ps := range r.simOrder {
			if !ps.Dead && ps.Bounds().Intersects(r.runtime.Key) {
				r.keyCollected = true
				log.Printf("🔑 Room %s: key collected by slot %d", r.code, ps.Slot)
				break
			}
		}
	}

	if r.runtime.ID == World2 {
		for _, ps := range r.simOrder {
			if ps.Dead {
				continue
			}
			for _, hazard := range r.runtime.DangerButtons {
				if ps.Bounds().Intersects(hazard) {
					r.gameStatus = StatusDead
					r.deadUntil = now.Add(r.cfg.RespawnDelay)
					return
				}
			}
		}
	}

	if r.keyCollected {
		atDoor := r.playersAtDoor[:0]
		for _, ps := range r.simOrder {
			if !ps.Dead && ps.Bounds().Intersects(r.runtime.Door) {
				atDoor = append(atDoor, ps.Slot)
			}
		}
		r.playersAtDoor = atDoor
		if len(atDoor) == len(r.players) {
			if r.gameStatus != StatusWon {
				log.Printf("🏆 Room %s: round won", r.code)
			}
			r.gameStatus = StatusWon
			return
		}
	} else {
		r.playersAtDoor = r.playersAtDoor[:0]
	}
	r.gameStatus = StatusPlaying
}

// resetRound rebuilds the world runtime from its blueprint and reseats every
// player at spawn.
func (r *Room) resetRound(status string) {
	r.runtime = NewWorldRuntime(r.world, r.world2BaseY)
	r.keyCollected = false
	r.playersAtDoor = nil
	r.gameStatus = status
	r.deadUntil = time.Time{}

	r.sim = make(map[string]*PlayerState, len(r.players))
	for i, playerID := range r.playerOrder {
		lp := r.players[playerID]
		r.sim[playerID] = NewPlayerState(i+1, playerID, lp.Hero, lp.Name, r.runtime)
	}
}

func (r *Room) slotOf(playerID string) int {
	for i, id := range r.playerOrder {
		if id == playerID {
			return i + 1
		}
	}
	return 0
}

// =============================================================================
// BROADCAST
// =============================================================================

func (r *Room) emitRoomState() {
	r.transport.Broadcast(r.code, EventRoomState, r.roomState())
}

func (r *Room) emitGameState() {
	snap := r.buildSnapshot()
	r.latest.Store(snap)
	r.transport.Broadcast(r.code, EventGameState, snap)
}
