package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"coop-platformer/internal/config"
)

// fakeConn records sends and carries the binding scratch, standing in for a
// websocket client. Tests drive room handlers synchronously, so no locking.
type fakeConn struct {
	roomCode string
	playerID string
	events   []sentEvent
}

type sentEvent struct {
	event string
	data  interface{}
}

func (c *fakeConn) Send(event string, data interface{}) {
	c.events = append(c.events, sentEvent{event: event, data: data})
}

func (c *fakeConn) Bind(roomCode, playerID string) {
	c.roomCode, c.playerID = roomCode, playerID
}

func (c *fakeConn) Binding() (string, string) { return c.roomCode, c.playerID }

func (c *fakeConn) lastEvent(name string) (interface{}, bool) {
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].event == name {
			return c.events[i].data, true
		}
	}
	return nil, false
}

func (c *fakeConn) denialMessage(t *testing.T, event string) string {
	t.Helper()
	data, ok := c.lastEvent(event)
	if !ok {
		t.Fatalf("No %s event sent; got %v", event, c.events)
	}
	return data.(denial).Message
}

type fakeTransport struct {
	mu         sync.Mutex
	broadcasts []sentEvent
}

func (tr *fakeTransport) Join(string, Conn)  {}
func (tr *fakeTransport) Leave(string, Conn) {}
func (tr *fakeTransport) Broadcast(roomCode, event string, data interface{}) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.broadcasts = append(tr.broadcasts, sentEvent{event: event, data: data})
}

func (tr *fakeTransport) sawEvent(name string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, b := range tr.broadcasts {
		if b.event == name {
			return true
		}
	}
	return false
}

func testCfg() config.GameConfig {
	return config.GameConfig{
		TickRate:        60,
		DisconnectGrace: 15 * time.Second,
		RespawnDelay:    1800 * time.Millisecond,
		World2BaseY:     820,
	}
}

// lobbyRoom builds a room with the given players in the lobby. The first
// player is the host. Handlers run synchronously on the test goroutine.
func lobbyRoom(maxPlayers int, playerIDs ...string) (*Room, *fakeTransport, []*fakeConn) {
	tr := &fakeTransport{}
	r := NewRoom("ROOM1", maxPlayers, testCfg(), tr, nil)
	conns := make([]*fakeConn, len(playerIDs))
	for i, id := range playerIDs {
		c := &fakeConn{}
		conns[i] = c
		if i == 0 {
			r.handle(createCmd{conn: c, hostID: id, name: id, world: World1})
		} else {
			r.handle(joinCmd{conn: c, playerID: id, name: id})
		}
	}
	return r, tr, conns
}

// startedRoom runs the full lobby flow and starts the match.
func startedRoom(t *testing.T, world int, playerIDs ...string) (*Room, *fakeTransport, []*fakeConn) {
	t.Helper()
	r, tr, conns := lobbyRoom(4, playerIDs...)
	r.world = world
	for i, c := range conns {
		r.handle(selectHeroCmd{conn: c, hero: fmt.Sprintf("hero%d", i+1)})
		r.handle(setReadyCmd{conn: c, ready: true})
	}
	r.handle(startCmd{conn: conns[0]})
	if !r.started {
		t.Fatal("Match did not start")
	}
	return r, tr, conns
}

// =============================================================================
// LOBBY
// =============================================================================

func TestCreateAssignsHost(t *testing.T) {
	r, _, conns := lobbyRoom(4, "host-1")

	if r.hostID != "host-1" {
		t.Errorf("hostID = %q, want host-1", r.hostID)
	}
	if r.PlayerCount() != 1 {
		t.Errorf("PlayerCount = %d, want 1", r.PlayerCount())
	}
	data, ok := conns[0].lastEvent(EventJoinSuccess)
	if !ok {
		t.Fatal("Create did not acknowledge with joinSuccess")
	}
	payload := data.(joinSuccessPayload)
	if payload.PlayerIndex != 1 || payload.RoomCode != "ROOM1" {
		t.Errorf("joinSuccess = %+v, want slot 1 in ROOM1", payload)
	}
}

func TestJoinAssignsSequentialSlots(t *testing.T) {
	_, _, conns := lobbyRoom(4, "p1", "p2", "p3")

	data, _ := conns[2].lastEvent(EventJoinSuccess)
	if got := data.(joinSuccessPayload).PlayerIndex; got != 3 {
		t.Errorf("Third player slot = %d, want 3", got)
	}
}

func TestJoinDefaultName(t *testing.T) {
	r, _, _ := lobbyRoom(4, "p1")
	c := &fakeConn{}
	r.handle(joinCmd{conn: c, playerID: "p2", name: "   "})

	if got := r.players["p2"].Name; got != "Player 2" {
		t.Errorf("Default name = %q, want %q", got, "Player 2")
	}
}

func TestJoinFullRoomDenied(t *testing.T) {
	r, _, _ := lobbyRoom(2, "p1", "p2")
	c := &fakeConn{}
	r.handle(joinCmd{conn: c, playerID: "p3"})

	if got := c.denialMessage(t, EventJoinDenied); got != "Room is full" {
		t.Errorf("Denial = %q, want %q", got, "Room is full")
	}
	if r.PlayerCount() != 2 {
		t.Errorf("PlayerCount = %d after denied join, want 2", r.PlayerCount())
	}
}

func TestJoinAfterStartDenied(t *testing.T) {
	r, _, _ := startedRoom(t, World1, "p1")
	c := &fakeConn{}
	r.handle(joinCmd{conn: c, playerID: "p2"})

	if got := c.denialMessage(t, EventJoinDenied); got != "Game already started" {
		t.Errorf("Denial = %q, want %q", got, "Game already started")
	}
}

func TestHeroUniqueness(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1", "p2")
	r.handle(selectHeroCmd{conn: conns[0], hero: "knight"})
	r.handle(selectHeroCmd{conn: conns[1], hero: "knight"})

	if got := conns[1].denialMessage(t, EventHeroDenied); got != "Hero already taken" {
		t.Errorf("Denial = %q, want %q", got, "Hero already taken")
	}
	if r.players["p2"].Hero != "" {
		t.Error("Denied hero selection must not stick")
	}

	// Switching heroes clears the ready flag.
	r.handle(setReadyCmd{conn: conns[0], ready: true})
	r.handle(selectHeroCmd{conn: conns[0], hero: "mage"})
	if r.players["p1"].Ready {
		t.Error("Changing hero must clear ready")
	}
}

func TestReadyRequiresHero(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1")
	r.handle(setReadyCmd{conn: conns[0], ready: true})

	if got := conns[0].denialMessage(t, EventReadyDenied); got != "Pick a hero first" {
		t.Errorf("Denial = %q, want %q", got, "Pick a hero first")
	}
	if r.players["p1"].Ready {
		t.Error("Ready must be rejected without a hero")
	}
}

func TestStartGating(t *testing.T) {
	r, tr, conns := lobbyRoom(4, "p1", "p2")

	// Non-host cannot start.
	r.handle(startCmd{conn: conns[1]})
	if got := conns[1].denialMessage(t, EventStartDenied); got != "Only the host can start" {
		t.Errorf("Denial = %q, want %q", got, "Only the host can start")
	}

	// Host blocked until everyone picked a hero.
	r.handle(startCmd{conn: conns[0]})
	if got := conns[0].denialMessage(t, EventStartDenied); got != "Everyone must pick a hero" {
		t.Errorf("Denial = %q, want %q", got, "Everyone must pick a hero")
	}

	r.handle(selectHeroCmd{conn: conns[0], hero: "knight"})
	r.handle(selectHeroCmd{conn: conns[1], hero: "mage"})
	r.handle(setReadyCmd{conn: conns[0], ready: true})

	// And until everyone is ready.
	r.handle(startCmd{conn: conns[0]})
	if got := conns[0].denialMessage(t, EventStartDenied); got != "Everyone must be ready" {
		t.Errorf("Denial = %q, want %q", got, "Everyone must be ready")
	}

	r.handle(setReadyCmd{conn: conns[1], ready: true})
	r.handle(startCmd{conn: conns[0]})
	if !r.started {
		t.Fatal("Start should succeed once everyone is ready")
	}
	if !tr.sawEvent(EventStartGame) {
		t.Error("startGame was not broadcast")
	}
	if r.gameStatus != StatusPlaying {
		t.Errorf("gameStatus = %q, want playing", r.gameStatus)
	}
	if len(r.sim) != 2 {
		t.Errorf("Simulation has %d players, want 2", len(r.sim))
	}
}

func TestSetWorldHostOnlyBeforeStart(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1", "p2")

	r.handle(setWorldCmd{conn: conns[1], world: World2})
	if r.world != World1 {
		t.Error("Non-host setWorld must be ignored")
	}

	r.handle(setWorldCmd{conn: conns[0], world: World2})
	if r.world != World2 {
		t.Error("Host setWorld before start must apply")
	}

	r2, _, conns2 := startedRoom(t, World1, "p1")
	r2.handle(setWorldCmd{conn: conns2[0], world: World2})
	if r2.world != World1 {
		t.Error("setWorld after start must be ignored")
	}
}

func TestSetNamePropagatesToSim(t *testing.T) {
	r, _, conns := startedRoom(t, World1, "p1")

	r.handle(setNameCmd{conn: conns[0], name: "  Zoe  "})
	if r.players["p1"].Name != "Zoe" || r.sim["p1"].Name != "Zoe" {
		t.Errorf("Name = %q / %q, want Zoe in lobby and sim", r.players["p1"].Name, r.sim["p1"].Name)
	}

	r.handle(setNameCmd{conn: conns[0], name: "   "})
	if r.players["p1"].Name != "Zoe" {
		t.Error("Empty sanitized name must be ignored")
	}
}

// =============================================================================
// RECONNECT & HOST ELECTION
// =============================================================================

func TestReconnectKeepsSlot(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1", "p2")

	fresh := &fakeConn{}
	r.handle(joinCmd{conn: fresh, playerID: "p1"})

	data, ok := fresh.lastEvent(EventJoinSuccess)
	if !ok {
		t.Fatal("Reconnect did not acknowledge")
	}
	if got := data.(joinSuccessPayload).PlayerIndex; got != 1 {
		t.Errorf("Reconnect slot = %d, want the original slot 1", got)
	}
	if conns[0].playerID != "" {
		t.Error("Stale connection must be unbound on reconnect")
	}
	if r.PlayerCount() != 2 {
		t.Errorf("PlayerCount = %d after reconnect, want 2", r.PlayerCount())
	}
}

func TestGraceExpiryRemovesAndElectsHost(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1", "p2")

	r.handle(disconnectCmd{conn: conns[0]})
	if _, ok := r.players["p1"]; !ok {
		t.Fatal("Player must survive the grace window")
	}

	r.handle(graceExpiredCmd{playerID: "p1"})
	if _, ok := r.players["p1"]; ok {
		t.Error("Player must be removed after grace expiry")
	}
	if r.hostID != "p2" {
		t.Errorf("hostID = %q, want transferred to p2", r.hostID)
	}
	if r.PlayerCount() != 1 {
		t.Errorf("PlayerCount = %d, want 1", r.PlayerCount())
	}
}

func TestGraceExpiryIgnoredAfterReconnect(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1")

	r.handle(disconnectCmd{conn: conns[0]})
	fresh := &fakeConn{}
	r.handle(joinCmd{conn: fresh, playerID: "p1"})

	// A stale timer firing after the reconnect must be a no-op.
	r.handle(graceExpiredCmd{playerID: "p1"})
	if _, ok := r.players["p1"]; !ok {
		t.Error("Reconnected player must not be removed by a stale grace expiry")
	}
}

func TestLastPlayerRemovalShutsRoomDown(t *testing.T) {
	var emptied string
	tr := &fakeTransport{}
	r := NewRoom("ROOM1", 4, testCfg(), tr, func(code string) { emptied = code })
	c := &fakeConn{}
	r.handle(createCmd{conn: c, hostID: "p1", world: World1})

	r.handle(disconnectCmd{conn: c})
	r.handle(graceExpiredCmd{playerID: "p1"})

	if emptied != "ROOM1" {
		t.Errorf("onEmpty called with %q, want ROOM1", emptied)
	}
	select {
	case <-r.done:
	default:
		t.Error("Room loop must stop when the last player leaves")
	}
}

// =============================================================================
// SIMULATION & ROUND FLOW
// =============================================================================

func TestInputIgnoredBeforeStart(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1")
	r.handle(inputCmd{conn: conns[0], frame: InputFrame{Right: true}})

	if len(r.inputs) != 0 {
		t.Error("Input before start must be dropped")
	}
}

func TestKeyLatchAndWin(t *testing.T) {
	r, _, _ := startedRoom(t, World1, "p1")
	now := time.Now()

	// Stand on the key platform, overlapping the key.
	ps := r.sim["p1"]
	ps.X, ps.Y = 1950, 520
	ps.prevY = ps.Y

	r.step(now)
	if !r.keyCollected {
		t.Fatal("Touching the key must latch keyCollected")
	}
	if r.gameStatus != StatusPlaying {
		t.Errorf("gameStatus = %q after key pickup, want playing", r.gameStatus)
	}

	// Walk away: the key stays collected.
	ps.X = 2000
	r.step(now.Add(17 * time.Millisecond))
	if !r.keyCollected {
		t.Error("keyCollected must never unlatch during a round")
	}

	// Reach the door with the key.
	ps.X, ps.Y = 3035, 545
	ps.prevY = ps.Y
	r.step(now.Add(34 * time.Millisecond))
	if r.gameStatus != StatusWon {
		t.Errorf("gameStatus = %q with everyone at the door, want won", r.gameStatus)
	}
	snap := r.LatestSnapshot()
	if len(snap.PlayersAtDoor) != 1 || snap.PlayersAtDoor[0] != 1 {
		t.Errorf("PlayersAtDoor = %v, want [1]", snap.PlayersAtDoor)
	}
}

func TestDoorRequiresEveryone(t *testing.T) {
	r, _, _ := startedRoom(t, World1, "p1", "p2")
	now := time.Now()

	r.keyCollected = true
	ps := r.sim["p1"]
	ps.X, ps.Y = 3035, 545
	ps.prevY = ps.Y

	r.step(now)
	if r.gameStatus != StatusPlaying {
		t.Errorf("gameStatus = %q with one of two at the door, want playing", r.gameStatus)
	}
	if snap := r.LatestSnapshot(); len(snap.PlayersAtDoor) != 1 {
		t.Errorf("PlayersAtDoor = %v, want one slot", snap.PlayersAtDoor)
	}
}

func TestDoorWithoutKeyIsPlaying(t *testing.T) {
	r, _, _ := startedRoom(t, World1, "p1")
	now := time.Now()

	ps := r.sim["p1"]
	ps.X, ps.Y = 3035, 545
	ps.prevY = ps.Y

	r.step(now)
	if r.gameStatus != StatusPlaying {
		t.Errorf("gameStatus = %q at door without key, want playing", r.gameStatus)
	}
}

func TestHazardDeathAndRespawn(t *testing.T) {
	r, _, _ := startedRoom(t, World2, "p1")
	now := time.Now()

	// Stand on the first danger button.
	ps := r.sim["p1"]
	ps.X = 600
	r.keyCollected = true // death must reset this

	r.step(now)
	if r.gameStatus != StatusDead {
		t.Fatalf("gameStatus = %q on a hazard, want dead", r.gameStatus)
	}

	// Before the respawn delay the round stays dead.
	r.step(now.Add(500 * time.Millisecond))
	if r.gameStatus != StatusDead {
		t.Errorf("gameStatus = %q before respawn delay, want dead", r.gameStatus)
	}

	// After the delay the round resets from its blueprint.
	r.step(now.Add(2 * time.Second))
	if r.gameStatus != StatusPlaying {
		t.Errorf("gameStatus = %q after respawn delay, want playing", r.gameStatus)
	}
	if r.keyCollected {
		t.Error("Round reset must clear keyCollected")
	}
	if got := r.sim["p1"].X; got != 100 {
		t.Errorf("Respawned X = %v, want spawn at 100", got)
	}
}

func TestFallOutDeathResets(t *testing.T) {
	r, _, _ := startedRoom(t, World1, "p1")
	now := time.Now()

	ps := r.sim["p1"]
	ps.X = 550 // over the first gap
	ps.Y = r.runtime.GroundY + 400
	ps.OnGround = false

	r.step(now)
	if r.gameStatus != StatusDead {
		t.Fatalf("gameStatus = %q after fall-out, want dead", r.gameStatus)
	}
	if !r.sim["p1"].Dead {
		t.Error("Fallen player must be flagged dead")
	}

	r.step(now.Add(2 * time.Second))
	if r.gameStatus != StatusPlaying || r.sim["p1"].Dead {
		t.Errorf("After respawn: status=%q dead=%v, want a live round", r.gameStatus, r.sim["p1"].Dead)
	}
}

func TestTickScaleClamped(t *testing.T) {
	r, _, conns := startedRoom(t, World2, "p1")
	now := time.Now()

	r.handle(inputCmd{conn: conns[0], frame: InputFrame{Right: true}})
	r.lastStep = now.Add(-10 * time.Second) // stalled driver
	r.step(now)

	// MoveSpeed 5 at the 2.5x dtScale ceiling: one tick moves 12.5 at most.
	if got := r.sim["p1"].X; got != 112.5 {
		t.Errorf("X = %v after stalled tick, want 112.5 (dtScale capped at 2.5)", got)
	}
}

func TestCanvasHeightRebuildsWorld2(t *testing.T) {
	r, _, conns := startedRoom(t, World2, "p1")

	oldY := r.sim["p1"].Y
	r.handle(inputCmd{conn: conns[0], frame: InputFrame{}, canvasHeight: 1000, hasCanvas: true})

	if r.runtime.GroundY != 920 {
		t.Errorf("GroundY = %v after canvas sync, want 920", r.runtime.GroundY)
	}
	if got := r.sim["p1"].Y; got != oldY+100 {
		t.Errorf("Player Y = %v, want translated to %v", got, oldY+100)
	}

	// Tiny viewport jitter below the threshold is ignored.
	r.handle(inputCmd{conn: conns[0], frame: InputFrame{}, canvasHeight: 1001, hasCanvas: true})
	if r.runtime.GroundY != 920 {
		t.Errorf("GroundY = %v after 1px jitter, want unchanged 920", r.runtime.GroundY)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	r, _, _ := startedRoom(t, World1, "p1")
	r.step(time.Now())

	snap := r.LatestSnapshot()
	if snap == nil {
		t.Fatal("No snapshot published after a tick")
	}
	before := snap.Players["p1"].X
	r.sim["p1"].X = 4242
	if snap.Players["p1"].X != before {
		t.Error("Snapshot must be a value copy, not a live view")
	}
	if snap.PlayersAtDoor == nil {
		t.Error("PlayersAtDoor must serialize as an empty array, not null")
	}
}

func TestRoomStateHeroNullUntilPicked(t *testing.T) {
	r, _, conns := lobbyRoom(4, "p1")

	state := r.roomState()
	if state.Players["p1"].Hero != nil {
		t.Errorf("Hero = %v before selection, want null", state.Players["p1"].Hero)
	}

	r.handle(selectHeroCmd{conn: conns[0], hero: "knight"})
	state = r.roomState()
	if state.Players["p1"].Hero != "knight" {
		t.Errorf("Hero = %v, want knight", state.Players["p1"].Hero)
	}
}
