// Package drawable provides the items a scene renders and the per-item configuration
// the occlusion effects read: channel membership, role flags, priority and test overrides.
package drawable

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// DefaultChannel is the channel used by items that do not declare one.
const DefaultChannel = "default"

// Operation classifies how an item takes part in rendering.
type Operation int

const (
	// OperationDraw items are drawn normally in the main pass.
	OperationDraw Operation = iota
	// OperationMask items are never drawn visibly; they only paint coverage into a mask channel.
	OperationMask
)

// TestOverrides replaces an item's geometry only while it paints into an identity buffer.
// A nil Shape keeps the item's own shape.
type TestOverrides struct {
	Shape        Shape
	PixelPadding float64
}

type drawable struct {
	mu *sync.Mutex

	id       uint32
	visible  atomic.Bool
	enabled  atomic.Bool
	revision atomic.Uint64

	channel     string
	collides    bool
	operation   Operation
	maskChannel string

	priority  func() float64
	identity  common.IdentityColor
	color     [4]float32
	shape     Shape
	placement Placement
	overrides *TestOverrides
}

// Drawable defines one renderable item as seen by the scene and the occlusion effects.
// Every geometry mutation bumps the revision counter so effects can detect change without
// comparing outlines.
type Drawable interface {
	// ID returns the item's identifier.
	//
	// Returns:
	//   - uint32: the item ID
	ID() uint32

	// Visible reports whether the item is drawn at all.
	//
	// Returns:
	//   - bool: true if visible
	Visible() bool

	// Enabled reports whether the item takes part in occlusion effects.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Channel returns the collision channel, DefaultChannel when unset.
	//
	// Returns:
	//   - string: the channel identifier
	Channel() string

	// Collides reports whether the item both paints into and is hidden by its collision channel.
	//
	// Returns:
	//   - bool: true if collision is enabled for this item
	Collides() bool

	// Operation returns whether the item is drawn or only used as mask geometry.
	//
	// Returns:
	//   - Operation: the operation
	Operation() Operation

	// MaskChannel returns the mask channel the item paints into (mask operation) or is
	// clipped by (draw operation). Empty means no masking.
	//
	// Returns:
	//   - string: the mask channel identifier
	MaskChannel() string

	// Priority returns the item's priority, if a priority accessor is configured.
	//
	// Returns:
	//   - float64: the priority, higher wins
	//   - bool: false when no accessor is configured
	Priority() (float64, bool)

	// TestOverrides returns the geometry overrides applied while painting identity buffers, or nil.
	//
	// Returns:
	//   - *TestOverrides: the overrides or nil
	TestOverrides() *TestOverrides

	// IdentityColor returns the unique color tagging this item in identity buffers.
	//
	// Returns:
	//   - common.IdentityColor: the identity color
	IdentityColor() common.IdentityColor

	// Color returns the visible RGBA color.
	//
	// Returns:
	//   - [4]float32: the color
	Color() [4]float32

	// Shape returns the visible shape.
	//
	// Returns:
	//   - Shape: the shape
	Shape() Shape

	// Placement returns the item's position, coordinate system and origin.
	//
	// Returns:
	//   - Placement: the placement
	Placement() Placement

	// Revision returns a counter bumped on every geometry change.
	//
	// Returns:
	//   - uint64: the revision
	Revision() uint64

	// Anchor returns the item's position in common space.
	//
	// Parameters:
	//   - vp: the viewport to project through
	//
	// Returns:
	//   - [2]float64: the common-space anchor
	Anchor(vp viewport.Viewport) [2]float64

	// Footprint returns the visible outline in common space.
	//
	// Parameters:
	//   - vp: the viewport to project through
	//
	// Returns:
	//   - [][2]float64: the outline polygon
	Footprint(vp viewport.Viewport) [][2]float64

	// TestFootprint returns the outline painted into identity buffers, with test overrides applied.
	//
	// Parameters:
	//   - vp: the viewport to project through
	//
	// Returns:
	//   - [][2]float64: the outline polygon
	TestFootprint(vp viewport.Viewport) [][2]float64

	// ScreenBounds returns the pixel-space bounding box of TestFootprint.
	//
	// Parameters:
	//   - vp: the viewport to project through
	//
	// Returns:
	//   - common.Bounds: the screen bounds
	ScreenBounds(vp viewport.Viewport) common.Bounds

	// SetVisible sets whether the item is drawn.
	//
	// Parameters:
	//   - visible: true to draw
	SetVisible(visible bool)

	// SetEnabled sets whether the item takes part in occlusion effects.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetChannel moves the item to another collision channel. Empty selects DefaultChannel.
	//
	// Parameters:
	//   - channel: the channel identifier
	SetChannel(channel string)

	// SetPosition moves the item and bumps its revision.
	//
	// Parameters:
	//   - x, y: the position in the item's coordinate system
	SetPosition(x, y float64)

	// SetShape replaces the visible shape and bumps the revision.
	//
	// Parameters:
	//   - s: the new shape
	SetShape(s Shape)

	// SetPriority installs a priority accessor and bumps the revision. Nil removes it.
	//
	// Parameters:
	//   - fn: the accessor
	SetPriority(fn func() float64)

	// SetColor sets the visible RGBA color.
	//
	// Parameters:
	//   - color: the color
	SetColor(color [4]float32)
}

var _ Drawable = &drawable{}

// NewDrawable creates a visible, enabled item with a 10x10 pixel rect at the origin.
// The identity color is derived from the ID unless WithIdentityColor is given.
//
// Parameters:
//   - options: functional options to configure the item
//
// Returns:
//   - Drawable: the newly created item
func NewDrawable(options ...DrawableBuilderOption) Drawable {
	d := &drawable{
		mu:      &sync.Mutex{},
		channel: DefaultChannel,
		color:   [4]float32{1, 1, 1, 1},
		shape:   Rect{Width: 10, Height: 10},
	}
	d.visible.Store(true)
	d.enabled.Store(true)
	for _, option := range options {
		option(d)
	}
	if d.identity.IsZero() {
		if d.id > common.MaxIdentityID {
			common.Logger().Warn("drawable id exceeds the identity color range; identity shared with a lower id",
				"id", d.id, "max", common.MaxIdentityID)
		}
		d.identity = common.IdentityFromID(d.id)
	}
	return d
}

func (d *drawable) ID() uint32 {
	return d.id
}

func (d *drawable) Visible() bool {
	return d.visible.Load()
}

func (d *drawable) Enabled() bool {
	return d.enabled.Load()
}

func (d *drawable) Revision() uint64 {
	return d.revision.Load()
}

func (d *drawable) Channel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channel
}

func (d *drawable) Collides() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collides
}

func (d *drawable) Operation() Operation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.operation
}

func (d *drawable) MaskChannel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maskChannel
}

func (d *drawable) Priority() (float64, bool) {
	d.mu.Lock()
	fn := d.priority
	d.mu.Unlock()
	if fn == nil {
		return 0, false
	}
	return fn(), true
}

func (d *drawable) TestOverrides() *TestOverrides {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overrides
}

func (d *drawable) IdentityColor() common.IdentityColor {
	return d.identity
}

func (d *drawable) Color() [4]float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.color
}

func (d *drawable) Shape() Shape {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shape
}

func (d *drawable) Placement() Placement {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.placement
}

func (d *drawable) Anchor(vp viewport.Viewport) [2]float64 {
	return d.Placement().Anchor(vp)
}

func (d *drawable) Footprint(vp viewport.Viewport) [][2]float64 {
	d.mu.Lock()
	shape, p := d.shape, d.placement
	d.mu.Unlock()
	return shape.Outline(p, vp, 0)
}

func (d *drawable) TestFootprint(vp viewport.Viewport) [][2]float64 {
	d.mu.Lock()
	shape, p, o := d.shape, d.placement, d.overrides
	d.mu.Unlock()
	padding := 0.0
	if o != nil {
		if o.Shape != nil {
			shape = o.Shape
		}
		padding = o.PixelPadding
	}
	return shape.Outline(p, vp, padding)
}

func (d *drawable) ScreenBounds(vp viewport.Viewport) common.Bounds {
	outline := d.TestFootprint(vp)
	px := make([][2]float64, len(outline))
	for i, pt := range outline {
		px[i] = vp.Project(pt)
	}
	return common.BoundsOf(px...)
}

func (d *drawable) SetVisible(visible bool) {
	d.visible.Store(visible)
}

func (d *drawable) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

func (d *drawable) SetChannel(channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channel = common.Coalesce(channel, DefaultChannel)
}

func (d *drawable) SetPosition(x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.placement.Position = [2]float64{x, y}
	d.revision.Add(1)
}

func (d *drawable) SetShape(s Shape) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shape = s
	d.revision.Add(1)
}

func (d *drawable) SetPriority(fn func() float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.priority = fn
	d.revision.Add(1)
}

func (d *drawable) SetColor(color [4]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.color = color
}
