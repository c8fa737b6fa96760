package game

// Game status values carried by every snapshot.
const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"
	StatusDead    = "dead"
	StatusWon     = "won"
)

// Snapshot is the immutable per-tick view broadcast as gameState. Value
// copies only; once built it is never mutated, so the broadcast fan-out and
// the debug renderer can read it without touching room-owned state.
type Snapshot struct {
	Players          map[string]PlayerState `json:"players"`
	KeyCollected     bool                   `json:"keyCollected"`
	PlayersAtDoor    []int                  `json:"playersAtDoor"`
	GameStatus       string                 `json:"gameStatus"`
	World            int                    `json:"world"`
	Key              Rect                   `json:"key"`
	Door             Rect                   `json:"door"`
	DangerButtons    []Rect                 `json:"dangerButtons"`
	MovingPlatforms  []MovingPlatform       `json:"movingPlatforms"`
	FallingPlatforms []FallingPlatform      `json:"fallingPlatforms"`

	// Renderer-only context, not part of the wire payload.
	Platforms []Rect  `json:"-"`
	GroundY   float64 `json:"-"`
	Width     float64 `json:"-"`
}

// buildSnapshot copies the current simulation state out of the room.
func (r *Room) buildSnapshot() *Snapshot {
	snap := &Snapshot{
		Players:       make(map[string]PlayerState, len(r.sim)),
		KeyCollected:  r.keyCollected,
		PlayersAtDoor: append([]int(nil), r.playersAtDoor...),
		GameStatus:    r.gameStatus,
		World:         r.world,
	}
	if snap.PlayersAtDoor == nil {
		snap.PlayersAtDoor = []int{}
	}

	for id, ps := range r.sim {
		snap.Players[id] = *ps
	}

	w := r.runtime
	if w == nil {
		return snap
	}
	snap.Key = w.Key
	snap.Door = w.Door
	snap.DangerButtons = append([]Rect(nil), w.DangerButtons...)
	snap.MovingPlatforms = append([]MovingPlatform(nil), w.MovingPlatforms...)
	snap.FallingPlatforms = append([]FallingPlatform(nil), w.FallingPlatforms...)
	snap.Platforms = append([]Rect(nil), w.Platforms...)
	snap.GroundY = w.GroundY
	snap.Width = w.Width
	return snap
}
