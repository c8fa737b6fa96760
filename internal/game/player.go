package game

import "math"

// Player collider size in pixels. Fixed for every hero.
const (
	PlayerWidth  = 45.0
	PlayerHeight = 55.0
)

// slotColors maps the 1-based player slot to a stable display color.
var slotColors = []string{"#ff6b6b", "#4ecdc4", "#ffeaa7", "#6c5ce7"}

// PlayerState is the per-tick simulation entity for one player. It is owned
// by the room goroutine; snapshots copy it out for broadcast.
type PlayerState struct {
	Slot     int    `json:"id"`
	PlayerID string `json:"playerId"`
	Hero     string `json:"hero"`
	Name     string `json:"name"`

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	OnGround    bool   `json:"onGround"`
	FacingRight bool   `json:"facingRight"`
	AnimFrame   int    `json:"animFrame"`
	Color       string `json:"color"`
	Dead        bool   `json:"dead"`

	// StandingOnPlayer is the slot of the player below, or nil.
	StandingOnPlayer *int `json:"standingOnPlayer"`

	// prevY is scratch for one-way stacking classification.
	prevY float64
}

// NewPlayerState seats a player at their slot-indexed spawn point.
func NewPlayerState(slot int, playerID, hero, name string, w *WorldRuntime) *PlayerState {
	return &PlayerState{
		Slot:        slot,
		PlayerID:    playerID,
		Hero:        hero,
		Name:        name,
		X:           w.SpawnX(slot),
		Y:           w.SpawnY(),
		Width:       PlayerWidth,
		Height:      PlayerHeight,
		OnGround:    true,
		FacingRight: true,
		Color:       SlotColor(slot),
	}
}

// SlotColor returns the deterministic display color for a slot.
func SlotColor(slot int) string {
	idx := slot - 1
	if idx < 0 || idx >= len(slotColors) {
		idx = 0
	}
	return slotColors[idx]
}

// Bounds returns the player's current AABB.
func (p *PlayerState) Bounds() Rect {
	return Rect{X: p.X, Y: p.Y, W: p.Width, H: p.Height}
}

// Respawn reseats the player at spawn with zeroed motion state.
func (p *PlayerState) Respawn(w *WorldRuntime) {
	p.X = w.SpawnX(p.Slot)
	p.Y = w.SpawnY()
	p.VX = 0
	p.VY = 0
	p.OnGround = true
	p.FacingRight = true
	p.AnimFrame = 0
	p.Dead = false
	p.StandingOnPlayer = nil
	p.prevY = p.Y
}

// repair reseats a player whose coordinates went non-finite. The round keeps
// running; the bad frame never reaches a snapshot.
func (p *PlayerState) repair(w *WorldRuntime) {
	if isFinite(p.X) && isFinite(p.Y) && isFinite(p.VX) && isFinite(p.VY) {
		return
	}
	p.X = w.SpawnX(p.Slot)
	p.Y = w.SpawnY()
	p.VX = 0
	p.VY = 0
}

// Step advances one player by one tick: input integration, horizontal then
// vertical motion with collision resolution, moving-platform carry, and the
// fall-out check. Returns true when the player fell out of the world.
//
// others are the remaining players for one-way stacking; the step resolves
// only the receiver, never its collision partners.
func (p *PlayerState) Step(in InputFrame, w *WorldRuntime, others []*PlayerState, dtScale float64, scratch []collidable) bool {
	p.applyInput(in, w, dtScale)

	solids := w.collidables(scratch[:0])

	p.stepHorizontal(w, solids, dtScale)
	p.stepVertical(w, solids, dtScale)

	if w.HasGlobalFloor && p.Y+p.Height >= w.GroundY {
		p.Y = w.GroundY - p.Height
		p.VY = 0
		p.OnGround = true
	}

	p.carryByMovingPlatforms(w)

	if p.Y > w.GroundY+300 {
		p.Dead = true
		return true
	}

	p.resolveAgainstPlayers(w, others)
	return false
}

func (p *PlayerState) applyInput(in InputFrame, w *WorldRuntime, dtScale float64) {
	switch {
	case in.Left:
		p.VX = -w.MoveSpeed
		p.FacingRight = false
		p.AnimFrame = (p.AnimFrame + 1) % 4
	case in.Right:
		p.VX = w.MoveSpeed
		p.FacingRight = true
		p.AnimFrame = (p.AnimFrame + 1) % 4
	default:
		if w.StopOnRelease && p.OnGround {
			p.VX = 0
		} else {
			if w.Friction != 1 {
				p.VX *= math.Pow(w.Friction, dtScale)
			}
			if p.VX > -0.1 && p.VX < 0.1 {
				p.VX = 0
			}
		}
		p.AnimFrame = 0
	}

	if in.Jump && p.OnGround {
		p.VY = w.JumpForce
		p.OnGround = false
	}
}

func (p *PlayerState) stepHorizontal(w *WorldRuntime, solids []collidable, dtScale float64) {
	p.X += p.VX * dtScale
	p.X = clamp(p.X, 0, w.Width-p.Width)

	for i := range solids {
		plat := solids[i].rect
		if !p.Bounds().Intersects(plat) {
			continue
		}
		if p.VX > 0 {
			p.X = plat.X - p.Width
			p.VX = 0
		} else if p.VX < 0 {
			p.X = plat.Right()
			p.VX = 0
		}
	}
}

func (p *PlayerState) stepVertical(w *WorldRuntime, solids []collidable, dtScale float64) {
	p.prevY = p.Y

	p.VY += w.Gravity * dtScale
	if p.VY > w.MaxFallSpeed {
		p.VY = w.MaxFallSpeed
	}
	p.Y += p.VY * dtScale
	p.OnGround = false
	p.StandingOnPlayer = nil

	prevBottom := p.prevY + p.Height
	for i := range solids {
		plat := solids[i].rect
		if !p.Bounds().Intersects(plat) {
			continue
		}
		currBottom := p.Y + p.Height
		if p.VY >= 0 && prevBottom <= plat.Y && currBottom >= plat.Y {
			// Landing: snap flush on top.
			p.Y = plat.Y - p.Height
			p.VY = 0
			p.OnGround = true
			if fp := solids[i].falling; fp != nil && !fp.Falling {
				fp.Falling = true
				fp.FallTimer = 0
			}
		} else if p.VY < 0 && p.prevY >= plat.Bottom() && p.Y <= plat.Bottom() {
			// Head bump on the underside.
			p.Y = plat.Bottom()
			p.VY = 0
		}
	}
}

// carryByMovingPlatforms drags a grounded player along with the platform
// directly under their feet.
func (p *PlayerState) carryByMovingPlatforms(w *WorldRuntime) {
	if !p.OnGround {
		return
	}
	bottom := p.Y + p.Height
	for i := range w.MovingPlatforms {
		mp := &w.MovingPlatforms[i]
		if bottom < mp.Y-8 || bottom > mp.Y+10 {
			continue
		}
		if p.X+p.Width <= mp.X || p.X >= mp.Right() {
			continue
		}
		p.X += mp.DeltaX
		p.X = clamp(p.X, 0, w.Width-p.Width)
	}
}

// resolveAgainstPlayers applies one-way stacking: only the receiver moves,
// which keeps the pairwise resolution from oscillating when each participant
// resolves the pair on its own turn.
func (p *PlayerState) resolveAgainstPlayers(w *WorldRuntime, others []*PlayerState) {
	for _, other := range others {
		if other == p || other.Dead {
			continue
		}
		if !p.Bounds().Intersects(other.Bounds()) {
			continue
		}

		overlapLeft := p.X + p.Width - other.X
		overlapRight := other.X + other.Width - p.X
		overlapTop := p.Y + p.Height - other.Y
		overlapBottom := other.Y + other.Height - p.Y

		minH := overlapLeft
		if overlapRight < minH {
			minH = overlapRight
		}
		minV := overlapTop
		if overlapBottom < minV {
			minV = overlapBottom
		}

		if minH < minV {
			// Side collision: push only self out by the full depth.
			if overlapLeft < overlapRight {
				p.X -= overlapLeft
			} else {
				p.X += overlapRight
			}
			p.X = clamp(p.X, 0, w.Width-p.Width)
			p.VX = 0
			continue
		}

		prevBottom := p.prevY + p.Height
		otherBottom := other.Y + other.Height
		switch {
		case p.VY >= 0 && p.Y < other.Y && prevBottom <= other.Y+12 && p.Y+p.Height >= other.Y:
			p.landOn(other)
		case p.VY < 0 && p.prevY >= other.prevY+other.Height-8 && p.Y <= otherBottom:
			// Rising into the player above: stop under them.
			p.Y = otherBottom
			p.VY = 0
		default:
			// The lower player is never pushed down.
			p.landOn(other)
		}
	}
}

func (p *PlayerState) landOn(other *PlayerState) {
	p.Y = other.Y - p.Height
	p.VY = 0
	p.OnGround = true
	slot := other.Slot
	p.StandingOnPlayer = &slot
}
