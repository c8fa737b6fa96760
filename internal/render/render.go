// Package render rasterizes room snapshots into PNG images for the debug
// endpoint. It reads only immutable snapshots and never touches live room
// state.
package render

import (
	"bytes"
	"fmt"

	"coop-platformer/internal/game"

	"github.com/fogleman/gg"
)

const (
	imageWidth  = 1200
	imageHeight = 400
	worldMargin = 40.0
)

// RenderSnapshot draws a top-down side view of the room: platforms, hazards,
// the key, the door and every player, scaled to fit a fixed-size image.
func RenderSnapshot(snap *game.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	dc := gg.NewContext(imageWidth, imageHeight)

	// Background
	dc.SetHexColor("#1a1a2e")
	dc.Clear()

	worldW := snap.Width
	if worldW <= 0 {
		worldW = 6000
	}
	worldH := snap.GroundY + 200
	if worldH <= 0 {
		worldH = 800
	}
	scale := min((imageWidth-2*worldMargin)/worldW, (imageHeight-2*worldMargin)/worldH)

	tx := func(x float64) float64 { return worldMargin + x*scale }
	ty := func(y float64) float64 { return worldMargin + y*scale }
	drawRect := func(r game.Rect, hex string) {
		dc.SetHexColor(hex)
		dc.DrawRectangle(tx(r.X), ty(r.Y), r.W*scale, r.H*scale)
		dc.Fill()
	}

	// Ground line
	dc.SetHexColor("#3d3d5c")
	dc.DrawRectangle(tx(0), ty(snap.GroundY), worldW*scale, 4)
	dc.Fill()

	for _, p := range snap.Platforms {
		drawRect(p, "#5c5c8a")
	}
	for _, mp := range snap.MovingPlatforms {
		drawRect(mp.Rect, "#8a5cb8")
	}
	for _, fp := range snap.FallingPlatforms {
		color := "#b8865c"
		if fp.Falling {
			color = "#d6452e"
		}
		drawRect(fp.Rect, color)
	}
	for _, hz := range snap.DangerButtons {
		drawRect(hz, "#e63946")
	}

	if !snap.KeyCollected {
		drawRect(snap.Key, "#ffd700")
	}
	doorColor := "#6c757d"
	if snap.KeyCollected {
		doorColor = "#2ecc71"
	}
	drawRect(snap.Door, doorColor)

	for id, ps := range snap.Players {
		color := ps.Color
		if ps.Dead {
			color = "#555555"
		}
		drawRect(game.Rect{X: ps.X, Y: ps.Y, W: ps.Width, H: ps.Height}, color)

		dc.SetHexColor("#ffffff")
		label := ps.Name
		if label == "" {
			label = id
		}
		dc.DrawStringAnchored(label, tx(ps.X+ps.Width/2), ty(ps.Y)-6, 0.5, 0.5)
	}

	// Status banner
	dc.SetHexColor("#ffffff")
	dc.DrawString(fmt.Sprintf("world %d: %s", snap.World, snap.GameStatus), 10, 20)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
