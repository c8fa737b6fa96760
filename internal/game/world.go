package game

// World identifiers. World 1 is a static parkour run, world 2 is a flat
// floor littered with danger buttons and a dynamic ground height.
const (
	World1 = 1
	World2 = 2
)

// MovingPlatform patrols horizontally between StartX and EndX. DeltaX is the
// displacement of the last update and is what carries grounded players.
type MovingPlatform struct {
	Rect
	StartX    float64 `json:"startX"`
	EndX      float64 `json:"endX"`
	Speed     float64 `json:"speed"`
	Direction float64 `json:"direction"`
	DeltaX    float64 `json:"deltaX"`
}

// FallingPlatform stays put until stepped on, then drops after a short delay.
type FallingPlatform struct {
	Rect
	OriginalY float64 `json:"originalY"`
	Falling   bool    `json:"falling"`
	FallTimer float64 `json:"fallTimer"`
}

// fallDelayTicks is how many ticks a triggered platform holds before dropping.
const fallDelayTicks = 30

// fallSpeed is the per-tick descent of a dropping platform.
const fallSpeed = 8.0

// WorldRuntime is the mutable per-round copy of a blueprint. The simulator
// owns it exclusively; blueprints are never handed out directly.
type WorldRuntime struct {
	ID             int
	Width          float64
	GroundY        float64
	HasGlobalFloor bool
	StopOnRelease  bool

	Gravity      float64
	MoveSpeed    float64
	JumpForce    float64
	MaxFallSpeed float64
	Friction     float64

	Platforms        []Rect
	MovingPlatforms  []MovingPlatform
	FallingPlatforms []FallingPlatform

	Key           Rect
	Door          Rect
	DangerButtons []Rect
}

// world1Platforms is the parkour run. The first platform is the spawn ledge,
// the key rests on the platform at x=1880 and the door stands on the long
// ledge ending at x=3280.
var world1Platforms = []Rect{
	{X: 0, Y: 600, W: 500, H: 40},
	{X: 600, Y: 600, W: 300, H: 40},
	{X: 1000, Y: 560, W: 200, H: 20},
	{X: 1300, Y: 500, W: 180, H: 20},
	{X: 1580, Y: 560, W: 200, H: 20},
	{X: 1880, Y: 575, W: 220, H: 20},
	{X: 2200, Y: 520, W: 180, H: 20},
	{X: 2480, Y: 560, W: 200, H: 20},
	{X: 2760, Y: 600, W: 520, H: 40},
	{X: 3400, Y: 560, W: 200, H: 20},
	{X: 3700, Y: 500, W: 200, H: 20},
	{X: 4000, Y: 440, W: 200, H: 20},
	{X: 4300, Y: 500, W: 200, H: 20},
	{X: 4600, Y: 560, W: 240, H: 20},
	{X: 4940, Y: 600, W: 300, H: 40},
	{X: 5400, Y: 560, W: 200, H: 20},
	{X: 5700, Y: 600, W: 300, H: 40},
}

// World 2 hazard layout: 31 buttons on the floor, one every 240px.
const (
	world2Width        = 8200
	world2HazardCount  = 31
	world2HazardStartX = 600
	world2HazardStepX  = 240
	world2HazardW      = 46
	world2HazardH      = 18
)

// World2BaseYMin and World2BaseYMax bound the dynamic ground height a client
// viewport may request.
const (
	World2BaseYMin = 500
	World2BaseYMax = 1400
)

// NewWorldRuntime builds a fresh mutable runtime for the given world.
// Unknown ids fall back to world 1. baseY only affects world 2.
func NewWorldRuntime(worldID int, baseY float64) *WorldRuntime {
	if worldID == World2 {
		return newWorld2Runtime(baseY)
	}
	return newWorld1Runtime()
}

func newWorld1Runtime() *WorldRuntime {
	platforms := make([]Rect, len(world1Platforms))
	copy(platforms, world1Platforms)

	return &WorldRuntime{
		ID:             World1,
		Width:          6000,
		GroundY:        600,
		HasGlobalFloor: false,
		StopOnRelease:  false,

		Gravity:      1.0,
		MoveSpeed:    5,
		JumpForce:    -14,
		MaxFallSpeed: 12,
		Friction:     1, // horizontal velocity persists until blocked

		Platforms: platforms,
		Key:       Rect{X: 1950, Y: 535, W: 40, H: 40},
		Door:      Rect{X: 3030, Y: 525, W: 55, H: 75},
	}
}

func newWorld2Runtime(baseY float64) *WorldRuntime {
	baseY = clamp(baseY, World2BaseYMin, World2BaseYMax)

	hazards := make([]Rect, 0, world2HazardCount)
	for i := 0; i < world2HazardCount; i++ {
		hazards = append(hazards, Rect{
			X: world2HazardStartX + float64(i*world2HazardStepX),
			Y: baseY - world2HazardH,
			W: world2HazardW,
			H: world2HazardH,
		})
	}

	return &WorldRuntime{
		ID:             World2,
		Width:          world2Width,
		GroundY:        baseY,
		HasGlobalFloor: true,
		StopOnRelease:  true,

		Gravity:      1.0,
		MoveSpeed:    5,
		JumpForce:    -14,
		MaxFallSpeed: 12,
		Friction:     0.8,

		Platforms:     []Rect{{X: 0, Y: baseY, W: world2Width, H: 100}},
		Key:           Rect{X: 4000, Y: baseY - 140, W: 40, H: 40},
		Door:          Rect{X: 8000, Y: baseY - 75, W: 55, H: 75},
		DangerButtons: hazards,
	}
}

// SpawnY returns the y coordinate players spawn at: planted on the floor for
// floor worlds, on top of the first platform otherwise.
func (w *WorldRuntime) SpawnY() float64 {
	if w.HasGlobalFloor || len(w.Platforms) == 0 {
		return w.GroundY - PlayerHeight
	}
	return w.Platforms[0].Y - PlayerHeight
}

// SpawnX returns the slot-indexed start position.
func (w *WorldRuntime) SpawnX(slot int) float64 {
	return clamp(100+float64(slot-1)*50, 0, w.Width-PlayerWidth)
}

// Update advances the world's dynamic pieces by one tick.
func (w *WorldRuntime) Update(dtScale float64) {
	for i := range w.MovingPlatforms {
		mp := &w.MovingPlatforms[i]
		oldX := mp.X
		mp.X += mp.Speed * mp.Direction * dtScale
		if mp.X <= mp.StartX {
			mp.X = mp.StartX
			mp.Direction = 1
		} else if mp.X >= mp.EndX {
			mp.X = mp.EndX
			mp.Direction = -1
		}
		mp.DeltaX = mp.X - oldX
	}

	for i := range w.FallingPlatforms {
		fp := &w.FallingPlatforms[i]
		if !fp.Falling {
			continue
		}
		fp.FallTimer++
		if fp.FallTimer > fallDelayTicks {
			fp.Y += fallSpeed * dtScale
		}
	}
}

// collidables appends every solid box a player can hit this tick. Falling
// platforms stop colliding once they have dropped out of the playfield.
func (w *WorldRuntime) collidables(buf []collidable) []collidable {
	for i := range w.Platforms {
		buf = append(buf, collidable{rect: w.Platforms[i]})
	}
	for i := range w.MovingPlatforms {
		buf = append(buf, collidable{rect: w.MovingPlatforms[i].Rect})
	}
	for i := range w.FallingPlatforms {
		fp := &w.FallingPlatforms[i]
		if fp.Y < w.GroundY+300 {
			buf = append(buf, collidable{rect: fp.Rect, falling: fp})
		}
	}
	return buf
}

// collidable pairs a solid box with the falling platform it belongs to, if any.
type collidable struct {
	rect    Rect
	falling *FallingPlatform
}

// NormalizeWorld maps the accepted wire spellings of a world selector to a
// world id. Anything unrecognized selects world 1.
func NormalizeWorld(v interface{}) int {
	switch val := v.(type) {
	case float64:
		if int(val) == World2 {
			return World2
		}
	case int:
		if val == World2 {
			return World2
		}
	case string:
		switch val {
		case "2", "map2", "world2":
			return World2
		}
	}
	return World1
}
