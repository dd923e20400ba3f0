package viewport

import (
	"math"
	"sync"
)

type controllerImpl struct {
	mu *sync.Mutex

	id      string
	family  ProjectionFamily
	width   int
	height  int
	center  [2]float64
	zoom    float64
	bearing float64

	minZoom     float64
	maxZoom     float64
	zoomSpeed   float64
	rotateSpeed float64

	current Viewport
}

// Controller owns the mutable view state (center, zoom, bearing, surface size) and hands out
// immutable Viewport snapshots. A new snapshot is produced only after the state changes, so
// consumers can detect camera motion by comparing snapshots.
type Controller interface {
	// Viewport returns the snapshot for the current view state.
	//
	// Returns:
	//   - Viewport: the current viewport
	Viewport() Viewport

	// Pan moves the view by a pixel delta, as if the surface had been dragged by (dx, dy).
	//
	// Parameters:
	//   - dx, dy: the drag distance in pixels
	Pan(dx, dy float64)

	// ZoomAt changes the zoom by delta steps (scaled by the zoom speed) while keeping the
	// common-space point under the given pixel fixed.
	//
	// Parameters:
	//   - delta: the number of zoom steps, positive zooms in
	//   - px, py: the pixel that stays fixed
	ZoomAt(delta, px, py float64)

	// Rotate changes the bearing by delta steps scaled by the rotate speed.
	//
	// Parameters:
	//   - delta: the number of rotation steps
	Rotate(delta float64)

	// SetCenter moves the view center.
	//
	// Parameters:
	//   - x, y: the common-space center
	SetCenter(x, y float64)

	// SetZoom sets the zoom, clamped to the configured range.
	//
	// Parameters:
	//   - zoom: the zoom level
	SetZoom(zoom float64)

	// Resize sets the surface size in pixels.
	//
	// Parameters:
	//   - width, height: the surface size
	Resize(width, height int)
}

var _ Controller = &controllerImpl{}

// NewController creates a new Controller with an 800x600 orthographic view.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewController(options ...ControllerBuilderOption) Controller {
	c := &controllerImpl{
		mu:          &sync.Mutex{},
		id:          "default",
		family:      FamilyOrthographic,
		width:       800,
		height:      600,
		minZoom:     -8,
		maxZoom:     22,
		zoomSpeed:   0.25,
		rotateSpeed: 5,
	}
	for _, option := range options {
		option(c)
	}
	c.zoom = c.clampZoom(c.zoom)
	c.rebuild()
	return c
}

func (c *controllerImpl) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *controllerImpl) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dx == 0 && dy == 0 {
		return
	}
	cx, cy := float64(c.width)/2, float64(c.height)/2
	p := c.current.Unproject([2]float64{cx - dx, cy - dy})
	c.center = p
	c.rebuild()
}

func (c *controllerImpl) ZoomAt(delta, px, py float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	zoom := c.clampZoom(c.zoom + delta*c.zoomSpeed)
	if zoom == c.zoom {
		return
	}
	anchor := c.current.Unproject([2]float64{px, py})
	k := math.Pow(2, c.zoom-zoom)
	c.center = [2]float64{
		anchor[0] + (c.center[0]-anchor[0])*k,
		anchor[1] + (c.center[1]-anchor[1])*k,
	}
	c.zoom = zoom
	c.rebuild()
}

func (c *controllerImpl) Rotate(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if delta == 0 {
		return
	}
	c.bearing = math.Mod(c.bearing+delta*c.rotateSpeed, 360)
	c.rebuild()
}

func (c *controllerImpl) SetCenter(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center = [2]float64{x, y}
	c.rebuild()
}

func (c *controllerImpl) SetZoom(zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = c.clampZoom(zoom)
	c.rebuild()
}

func (c *controllerImpl) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width == c.width && height == c.height {
		return
	}
	c.width = width
	c.height = height
	c.rebuild()
}

// clampZoom limits zoom to [minZoom, maxZoom].
func (c *controllerImpl) clampZoom(zoom float64) float64 {
	return math.Max(c.minZoom, math.Min(c.maxZoom, zoom))
}

// rebuild replaces the current snapshot. Caller must hold the mutex.
func (c *controllerImpl) rebuild() {
	c.current = NewViewport(
		WithID(c.id),
		WithFamily(c.family),
		WithSize(c.width, c.height),
		WithCenter(c.center[0], c.center[1]),
		WithZoom(c.zoom),
		WithBearing(c.bearing),
	)
}
