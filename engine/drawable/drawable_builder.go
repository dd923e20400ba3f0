package drawable

import (
	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// DrawableBuilderOption is a functional option for configuring a Drawable during construction.
type DrawableBuilderOption func(*drawable)

// WithID sets the ID of the Drawable.
//
// Parameters:
//   - id: unique identifier for the Drawable
//
// Returns:
//   - DrawableBuilderOption: functional option to set the ID
func WithID(id uint32) DrawableBuilderOption {
	return func(d *drawable) {
		d.id = id
	}
}

// WithVisible sets whether the Drawable is drawn.
//
// Parameters:
//   - visible: true to draw the item
//
// Returns:
//   - DrawableBuilderOption: functional option to set the visibility
func WithVisible(visible bool) DrawableBuilderOption {
	return func(d *drawable) {
		d.visible.Store(visible)
	}
}

// WithEnabled sets whether the Drawable takes part in occlusion effects.
//
// Parameters:
//   - enabled: true to enable
//
// Returns:
//   - DrawableBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) DrawableBuilderOption {
	return func(d *drawable) {
		d.enabled.Store(enabled)
	}
}

// WithCollision enables collision for the Drawable in the given channel. Empty selects DefaultChannel.
//
// Parameters:
//   - channel: the collision channel
//
// Returns:
//   - DrawableBuilderOption: functional option to enable collision
func WithCollision(channel string) DrawableBuilderOption {
	return func(d *drawable) {
		d.collides = true
		d.channel = common.Coalesce(channel, DefaultChannel)
	}
}

// WithMaskSource marks the Drawable as mask geometry painting into the given mask channel.
// Mask sources are never drawn visibly.
//
// Parameters:
//   - channel: the mask channel
//
// Returns:
//   - DrawableBuilderOption: functional option to make the item a mask source
func WithMaskSource(channel string) DrawableBuilderOption {
	return func(d *drawable) {
		d.operation = OperationMask
		d.maskChannel = common.Coalesce(channel, DefaultChannel)
	}
}

// WithMaskedBy clips the Drawable to the coverage of a mask channel.
//
// Parameters:
//   - channel: the mask channel
//
// Returns:
//   - DrawableBuilderOption: functional option to clip the item
func WithMaskedBy(channel string) DrawableBuilderOption {
	return func(d *drawable) {
		d.operation = OperationDraw
		d.maskChannel = common.Coalesce(channel, DefaultChannel)
	}
}

// WithPriority gives the Drawable a fixed priority. Higher priorities win overlaps.
//
// Parameters:
//   - priority: the priority value
//
// Returns:
//   - DrawableBuilderOption: functional option to set the priority
func WithPriority(priority float64) DrawableBuilderOption {
	return func(d *drawable) {
		d.priority = func() float64 { return priority }
	}
}

// WithPriorityAccessor gives the Drawable a priority computed on every read.
//
// Parameters:
//   - fn: the accessor
//
// Returns:
//   - DrawableBuilderOption: functional option to set the accessor
func WithPriorityAccessor(fn func() float64) DrawableBuilderOption {
	return func(d *drawable) {
		d.priority = fn
	}
}

// WithTestOverrides sets the geometry used while painting identity buffers.
//
// Parameters:
//   - overrides: the overrides
//
// Returns:
//   - DrawableBuilderOption: functional option to set the overrides
func WithTestOverrides(overrides TestOverrides) DrawableBuilderOption {
	return func(d *drawable) {
		d.overrides = &overrides
	}
}

// WithIdentityColor sets an explicit identity color instead of deriving it from the ID.
//
// Parameters:
//   - c: the identity color
//
// Returns:
//   - DrawableBuilderOption: functional option to set the identity color
func WithIdentityColor(c common.IdentityColor) DrawableBuilderOption {
	return func(d *drawable) {
		d.identity = c
	}
}

// WithColor sets the visible RGBA color.
//
// Parameters:
//   - color: the color
//
// Returns:
//   - DrawableBuilderOption: functional option to set the color
func WithColor(color [4]float32) DrawableBuilderOption {
	return func(d *drawable) {
		d.color = color
	}
}

// WithHexColor sets the visible color from a "#rrggbb" string. Invalid strings keep the current color.
//
// Parameters:
//   - hex: the color string
//
// Returns:
//   - DrawableBuilderOption: functional option to set the color
func WithHexColor(hex string) DrawableBuilderOption {
	return func(d *drawable) {
		c, err := common.ParseColor(hex)
		if err != nil {
			common.Logger().Warn("ignoring drawable color", "id", d.id, "error", err)
			return
		}
		d.color = c
	}
}

// WithShape sets the visible shape.
//
// Parameters:
//   - s: the shape
//
// Returns:
//   - DrawableBuilderOption: functional option to set the shape
func WithShape(s Shape) DrawableBuilderOption {
	return func(d *drawable) {
		d.shape = s
	}
}

// WithPosition sets the position in the Drawable's coordinate system.
//
// Parameters:
//   - x, y: the position
//
// Returns:
//   - DrawableBuilderOption: functional option to set the position
func WithPosition(x, y float64) DrawableBuilderOption {
	return func(d *drawable) {
		d.placement.Position = [2]float64{x, y}
	}
}

// WithCoordinates sets the coordinate system and origin positions are expressed in.
//
// Parameters:
//   - system: the coordinate system
//   - originX, originY: the coordinate origin
//
// Returns:
//   - DrawableBuilderOption: functional option to set the coordinates
func WithCoordinates(system viewport.CoordinateSystem, originX, originY float64) DrawableBuilderOption {
	return func(d *drawable) {
		d.placement.System = system
		d.placement.Origin = [2]float64{originX, originY}
	}
}
