package drawable

import (
	"math"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// Placement is where an item sits: its position expressed in a coordinate system relative to an origin.
type Placement struct {
	Position [2]float64
	System   viewport.CoordinateSystem
	Origin   [2]float64
}

// Anchor returns the placement's position in common space.
func (p Placement) Anchor(vp viewport.Viewport) [2]float64 {
	return vp.ProjectPosition(p.Position, p.System, p.Origin)
}

// Shape produces the outline an item covers for a given viewport.
type Shape interface {
	// Outline returns the closed polygon covered by the shape, in common space.
	//
	// Parameters:
	//   - p: the item's placement
	//   - vp: the viewport the outline is built for
	//   - padding: extra margin in pixels, ignored by world-sized shapes
	//
	// Returns:
	//   - [][2]float64: the polygon vertices in order, without repeating the first vertex
	Outline(p Placement, vp viewport.Viewport, padding float64) [][2]float64
}

// Rect is a screen-aligned rectangle sized in pixels, such as a text label or billboard.
// Offset moves the rectangle relative to the anchor; a zero offset centers it.
type Rect struct {
	Width, Height    float64
	OffsetX, OffsetY float64
}

func (r Rect) Outline(p Placement, vp viewport.Viewport, padding float64) [][2]float64 {
	a := vp.Project(p.Anchor(vp))
	cx, cy := a[0]+r.OffsetX, a[1]+r.OffsetY
	hw, hh := r.Width/2+padding, r.Height/2+padding
	corners := [4][2]float64{
		{cx - hw, cy - hh},
		{cx + hw, cy - hh},
		{cx + hw, cy + hh},
		{cx - hw, cy + hh},
	}
	out := make([][2]float64, 0, 4)
	for _, c := range corners {
		out = append(out, vp.Unproject(c))
	}
	return out
}

// Circle is a disc sized in pixels around the anchor, such as a point marker.
type Circle struct {
	Radius   float64
	Segments int
}

func (c Circle) Outline(p Placement, vp viewport.Viewport, padding float64) [][2]float64 {
	segments := c.Segments
	if segments < 3 {
		segments = 16
	}
	a := vp.Project(p.Anchor(vp))
	r := c.Radius + padding
	out := make([][2]float64, 0, segments)
	for i := 0; i < segments; i++ {
		sin, cos := math.Sincos(2 * math.Pi * float64(i) / float64(segments))
		out = append(out, vp.Unproject([2]float64{a[0] + cos*r, a[1] + sin*r}))
	}
	return out
}

// Polygon is a world-sized outline whose vertices are offsets from the item's position,
// expressed in the item's coordinate system.
type Polygon struct {
	Points [][2]float64
}

func (g Polygon) Outline(p Placement, vp viewport.Viewport, _ float64) [][2]float64 {
	out := make([][2]float64, 0, len(g.Points))
	for _, pt := range g.Points {
		pos := [2]float64{p.Position[0] + pt[0], p.Position[1] + pt[1]}
		out = append(out, vp.ProjectPosition(pos, p.System, p.Origin))
	}
	return out
}
