// Package viewport provides the screen projections that drawables are rendered through.
// A Viewport is an immutable snapshot; the Controller owns the mutable view state and
// produces a fresh Viewport whenever it changes.
package viewport

import (
	"math"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
)

type viewportImpl struct {
	id      string
	family  ProjectionFamily
	width   int
	height  int
	center  [2]float64
	zoom    float64
	bearing float64

	scale          float64
	viewProjection [16]float32
}

// Viewport defines a projection from common space to a width x height pixel surface.
// Common space is y-down for every family: cartesian units for orthographic views and
// mercator world units (TileSize wide at zoom 0) for geospatial views.
type Viewport interface {
	// ID returns the viewport identifier.
	//
	// Returns:
	//   - string: the identifier, "default" unless configured
	ID() string

	// Family returns the projection family.
	//
	// Returns:
	//   - ProjectionFamily: the family
	Family() ProjectionFamily

	// Planar reports whether the projection is flat. Non-planar viewports cannot be
	// sampled through a flat offscreen buffer.
	//
	// Returns:
	//   - bool: true for orthographic and web mercator viewports
	Planar() bool

	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Center returns the common-space position at the middle of the surface.
	Center() [2]float64

	// Zoom returns the zoom level. One common unit spans 2^zoom pixels.
	Zoom() float64

	// Bearing returns the map rotation in degrees, clockwise.
	Bearing() float64

	// PixelsPerUnit returns how many pixels one common unit spans.
	PixelsPerUnit() float64

	// ProjectPosition converts a position expressed in a coordinate system into common space.
	//
	// Parameters:
	//   - pos: the position
	//   - system: how pos is expressed
	//   - origin: the coordinate origin for cartesian and meter-offset systems
	//
	// Returns:
	//   - [2]float64: the common-space position
	ProjectPosition(pos [2]float64, system CoordinateSystem, origin [2]float64) [2]float64

	// Project maps a common-space position to pixels (origin top-left).
	//
	// Parameters:
	//   - p: the common-space position
	//
	// Returns:
	//   - [2]float64: the pixel position
	Project(p [2]float64) [2]float64

	// Unproject maps a pixel position back to common space.
	//
	// Parameters:
	//   - px: the pixel position
	//
	// Returns:
	//   - [2]float64: the common-space position
	Unproject(px [2]float64) [2]float64

	// Bounds returns the axis-aligned common-space rectangle covering the visible surface.
	//
	// Returns:
	//   - common.Bounds: the visible region
	Bounds() common.Bounds

	// ViewProjectionMatrix returns the column-major matrix mapping common space to clip space.
	//
	// Returns:
	//   - [16]float32: the view-projection matrix
	ViewProjectionMatrix() [16]float32

	// Equal reports whether o describes exactly the same projection.
	//
	// Parameters:
	//   - o: the other viewport, may be nil
	//
	// Returns:
	//   - bool: true if every projection parameter matches
	Equal(o Viewport) bool
}

var _ Viewport = &viewportImpl{}

// NewViewport creates a new Viewport. Without options it is an 800x600 orthographic view at zoom 0
// centered on the origin.
//
// Parameters:
//   - options: functional options to configure the viewport
//
// Returns:
//   - Viewport: the newly created viewport
func NewViewport(options ...ViewportBuilderOption) Viewport {
	v := &viewportImpl{
		id:     "default",
		family: FamilyOrthographic,
		width:  800,
		height: 600,
	}
	for _, option := range options {
		option(v)
	}
	v.updateMatrices()
	return v
}

func (v *viewportImpl) ID() string                        { return v.id }
func (v *viewportImpl) Family() ProjectionFamily          { return v.family }
func (v *viewportImpl) Planar() bool                      { return v.family != FamilyGlobe }
func (v *viewportImpl) Width() int                        { return v.width }
func (v *viewportImpl) Height() int                       { return v.height }
func (v *viewportImpl) Center() [2]float64                { return v.center }
func (v *viewportImpl) Zoom() float64                     { return v.zoom }
func (v *viewportImpl) Bearing() float64                  { return v.bearing }
func (v *viewportImpl) PixelsPerUnit() float64            { return v.scale }
func (v *viewportImpl) ViewProjectionMatrix() [16]float32 { return v.viewProjection }

func (v *viewportImpl) ProjectPosition(pos [2]float64, system CoordinateSystem, origin [2]float64) [2]float64 {
	return projectPosition(v.family, pos, system, origin)
}

func (v *viewportImpl) Project(p [2]float64) [2]float64 {
	sin, cos := math.Sincos(-v.bearing * math.Pi / 180)
	dx, dy := p[0]-v.center[0], p[1]-v.center[1]
	return [2]float64{
		(cos*dx+sin*dy)*v.scale + float64(v.width)/2,
		(-sin*dx+cos*dy)*v.scale + float64(v.height)/2,
	}
}

func (v *viewportImpl) Unproject(px [2]float64) [2]float64 {
	sin, cos := math.Sincos(-v.bearing * math.Pi / 180)
	ux := (px[0] - float64(v.width)/2) / v.scale
	uy := (px[1] - float64(v.height)/2) / v.scale
	return [2]float64{
		v.center[0] + cos*ux - sin*uy,
		v.center[1] + sin*ux + cos*uy,
	}
}

func (v *viewportImpl) Bounds() common.Bounds {
	w, h := float64(v.width), float64(v.height)
	return common.BoundsOf(
		v.Unproject([2]float64{0, 0}),
		v.Unproject([2]float64{w, 0}),
		v.Unproject([2]float64{0, h}),
		v.Unproject([2]float64{w, h}),
	)
}

func (v *viewportImpl) Equal(o Viewport) bool {
	if o == nil {
		return false
	}
	if ov, ok := o.(*viewportImpl); ok && ov == v {
		return true
	}
	return v.id == o.ID() &&
		v.family == o.Family() &&
		v.width == o.Width() &&
		v.height == o.Height() &&
		v.center == o.Center() &&
		v.zoom == o.Zoom() &&
		v.bearing == o.Bearing()
}

// updateMatrices recomputes the screen and clip matrices from the view parameters.
func (v *viewportImpl) updateMatrices() {
	if v.width < 1 {
		v.width = 1
	}
	if v.height < 1 {
		v.height = 1
	}
	v.scale = math.Pow(2, v.zoom)
	angle := -v.bearing * math.Pi / 180

	var toScreen, clip [16]float32
	common.ScaleTranslate2D(toScreen[:],
		v.center[0], v.center[1], v.scale, angle,
		float64(v.width)/2, float64(v.height)/2,
	)
	common.PixelToClip(clip[:], float32(v.width), float32(v.height))
	common.Mul4(v.viewProjection[:], clip[:], toScreen[:])
}
