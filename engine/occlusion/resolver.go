// Package occlusion implements the screen-space occlusion effects: channel bounds and mini-viewport
// resolution, the identity render pass that fills one identity map per channel, and the per-frame
// Effect that partitions items into channels and publishes the maps to the shading stage.
package occlusion

import (
	"errors"
	"math"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// ErrUnsupportedProjection is returned for viewports that cannot be sampled through a flat buffer.
var ErrUnsupportedProjection = errors.New("occlusion: projection is not planar")

const (
	// BorderPixels is the unused frame kept around every identity map.
	BorderPixels = 1
	// DefaultMaxScale caps the pixels-per-unit of a planar mini-viewport.
	DefaultMaxScale = 1 << 20
)

// BoundsPolicy chooses the world region a channel's identity map covers.
type BoundsPolicy struct {
	// Fitted restricts the region to the members' screen extent instead of the whole viewport.
	Fitted bool
	// Resolution is the quantization cell as a fraction of the viewport's larger world extent.
	// Zero disables quantization.
	Resolution float64
}

// BoundsFullViewport covers the whole visible region every frame.
var BoundsFullViewport = BoundsPolicy{}

// BoundsFitted covers the union of the members' screen bounds, snapped outwards to a grid.
//
// Parameters:
//   - resolution: the grid cell as a fraction of the viewport's world extent, 0 for no snapping
//
// Returns:
//   - BoundsPolicy: the fitted policy
func BoundsFitted(resolution float64) BoundsPolicy {
	return BoundsPolicy{Fitted: true, Resolution: math.Max(0, resolution)}
}

// Member is one item of a channel together with the values cached for change detection.
type Member struct {
	Item         drawable.Drawable
	ScreenBounds common.Bounds
	Revision     uint64
	Priority     float64
	HasPriority  bool
}

// NewMember captures an item's screen bounds, revision and priority for vp.
//
// Parameters:
//   - item: the drawable
//   - vp: the active viewport
//
// Returns:
//   - Member: the captured member
func NewMember(item drawable.Drawable, vp viewport.Viewport) Member {
	p, ok := item.Priority()
	return Member{
		Item:         item,
		ScreenBounds: item.ScreenBounds(vp),
		Revision:     item.Revision(),
		Priority:     p,
		HasPriority:  ok,
	}
}

// ComputeChannelBounds returns the world region a channel's identity map must cover.
//
// Parameters:
//   - members: the channel members with cached screen bounds
//   - vp: the active viewport
//   - policy: the bounds policy
//
// Returns:
//   - common.Bounds: the world bounds, degenerate when nothing is on screen
func ComputeChannelBounds(members []Member, vp viewport.Viewport, policy BoundsPolicy) common.Bounds {
	if vp == nil {
		return common.Bounds{}
	}
	if !policy.Fitted {
		return vp.Bounds()
	}

	var screen common.Bounds
	for _, m := range members {
		screen = screen.Union(m.ScreenBounds)
	}
	screen = screen.Intersect(common.Bounds{0, 0, float64(vp.Width()), float64(vp.Height())})
	if !screen.Valid() {
		return common.Bounds{}
	}

	world := common.BoundsOf(
		vp.Unproject([2]float64{screen[0], screen[1]}),
		vp.Unproject([2]float64{screen[2], screen[1]}),
		vp.Unproject([2]float64{screen[0], screen[3]}),
		vp.Unproject([2]float64{screen[2], screen[3]}),
	)
	if policy.Resolution > 0 {
		full := vp.Bounds()
		world = world.Quantize(policy.Resolution * math.Max(full.Width(), full.Height()))
	}
	return world
}

// MiniViewport is the projection of a channel's world bounds onto its identity map. Its pixel
// coordinates are texel coordinates of the map.
type MiniViewport struct {
	viewport.Viewport

	bounds      common.Bounds
	texelMatrix [16]float32
}

// BuildMiniViewport fits worldBounds into a width x height target, leaving BorderPixels free on
// every side. Planar viewports get an axis-aligned fit of scale
// min(maxScale, innerWidth/boundsWidth, innerHeight/boundsHeight) centered on the bounds.
// Geospatial viewports keep the parent's bearing and its zoom, reduced by the ratio between the
// target interior and the parent size.
//
// Parameters:
//   - worldBounds: the region to cover
//   - vp: the active viewport
//   - width, height: the target size in pixels
//   - maxScale: the upper bound on pixels per unit, non-positive selects DefaultMaxScale
//
// Returns:
//   - *MiniViewport: the projection, nil when the bounds or the target are degenerate
//   - error: ErrUnsupportedProjection for non-planar viewports
func BuildMiniViewport(worldBounds common.Bounds, vp viewport.Viewport, width, height int, maxScale float64) (*MiniViewport, error) {
	if vp == nil {
		return nil, nil
	}
	if !vp.Planar() {
		return nil, ErrUnsupportedProjection
	}
	innerW, innerH := float64(width-2*BorderPixels), float64(height-2*BorderPixels)
	if !worldBounds.Valid() || innerW < 1 || innerH < 1 {
		return nil, nil
	}
	if maxScale <= 0 {
		maxScale = DefaultMaxScale
	}

	cx, cy := worldBounds.Center()
	var scale, bearing float64
	switch vp.Family() {
	case viewport.FamilyWebMercator:
		bearing = vp.Bearing()
		scale = vp.PixelsPerUnit() * math.Min(innerW/float64(vp.Width()), innerH/float64(vp.Height()))
	default:
		scale = math.Min(maxScale, math.Min(innerW/worldBounds.Width(), innerH/worldBounds.Height()))
	}
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return nil, nil
	}

	mini := &MiniViewport{
		Viewport: viewport.NewViewport(
			viewport.WithID(vp.ID()+"/mini"),
			viewport.WithFamily(vp.Family()),
			viewport.WithSize(width, height),
			viewport.WithCenter(cx, cy),
			viewport.WithZoom(math.Log2(scale)),
			viewport.WithBearing(bearing),
		),
		bounds: worldBounds,
	}
	common.ScaleTranslate2D(mini.texelMatrix[:],
		cx, cy, mini.PixelsPerUnit(), -bearing*math.Pi/180,
		float64(width)/2, float64(height)/2,
	)
	return mini, nil
}

// WorldBounds returns the region the mini-viewport was fitted to.
func (m *MiniViewport) WorldBounds() common.Bounds {
	return m.bounds
}

// TexelMatrix returns the matrix mapping common space to texel coordinates.
func (m *MiniViewport) TexelMatrix() [16]float32 {
	return m.texelMatrix
}

// TexCoord maps a common-space point to normalized [0, 1] texture coordinates.
//
// Parameters:
//   - p: the common-space point
//
// Returns:
//   - [2]float64: the texture coordinate
func (m *MiniViewport) TexCoord(p [2]float64) [2]float64 {
	px := m.Project(p)
	return [2]float64{px[0] / float64(m.Width()), px[1] / float64(m.Height())}
}

// Interior returns the texel rectangle inside the border.
func (m *MiniViewport) Interior() common.Bounds {
	return common.Bounds{
		BorderPixels, BorderPixels,
		float64(m.Width() - BorderPixels), float64(m.Height() - BorderPixels),
	}
}

// TextureBounds returns the world bounds projected into texel space.
func (m *MiniViewport) TextureBounds() common.Bounds {
	b := m.bounds
	return common.BoundsOf(
		m.Project([2]float64{b[0], b[1]}),
		m.Project([2]float64{b[2], b[1]}),
		m.Project([2]float64{b[0], b[3]}),
		m.Project([2]float64{b[2], b[3]}),
	)
}
