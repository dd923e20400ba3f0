package occlusion

const (
	// DefaultDownscale divides the canvas size for collision identity maps.
	DefaultDownscale = 2
	// DefaultMaskSize is the side of mask identity maps.
	DefaultMaskSize = 2048
)

// EffectBuilderOption is a functional option applied to an effect during construction via NewEffect.
type EffectBuilderOption func(*effect)

// WithMode sets the effect mode. The default is ModeCollision.
//
// Parameters:
//   - mode: the mode
//
// Returns:
//   - EffectBuilderOption: a function that applies the mode to an effect
func WithMode(mode Mode) EffectBuilderOption {
	return func(e *effect) {
		e.mode = mode
	}
}

// WithLabel sets the label used for logs and identity target names. The default is the mode name.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - EffectBuilderOption: a function that applies the label to an effect
func WithLabel(label string) EffectBuilderOption {
	return func(e *effect) {
		e.label = label
	}
}

// WithDownscale sets the factor the canvas size is divided by for identity maps.
// Factors below 1 are ignored.
//
// Parameters:
//   - factor: the downscale factor
//
// Returns:
//   - EffectBuilderOption: a function that applies the factor to an effect
func WithDownscale(factor int) EffectBuilderOption {
	return func(e *effect) {
		if factor >= 1 {
			e.downscale = factor
		}
	}
}

// WithTargetSize fixes the identity map size regardless of the canvas. Mask effects default to
// DefaultMaskSize square.
//
// Parameters:
//   - width, height: the size in pixels, both at least 3
//
// Returns:
//   - EffectBuilderOption: a function that applies the size to an effect
func WithTargetSize(width, height int) EffectBuilderOption {
	return func(e *effect) {
		if width > 2*BorderPixels && height > 2*BorderPixels {
			e.fixedWidth, e.fixedHeight = width, height
		}
	}
}

// WithBoundsPolicy sets how channel bounds are computed. The default is BoundsFullViewport.
//
// Parameters:
//   - policy: the bounds policy
//
// Returns:
//   - EffectBuilderOption: a function that applies the policy to an effect
func WithBoundsPolicy(policy BoundsPolicy) EffectBuilderOption {
	return func(e *effect) {
		e.policy = policy
	}
}

// WithChannelRetention keeps the identity pass of a channel that lost all its members for the
// given number of frames before releasing it. The default 0 releases it on the first empty frame.
//
// Parameters:
//   - frames: the number of empty frames to keep a channel for
//
// Returns:
//   - EffectBuilderOption: a function that applies the retention to an effect
func WithChannelRetention(frames int) EffectBuilderOption {
	return func(e *effect) {
		e.retention = max(frames, 0)
	}
}

// WithMaxScale caps the pixels per unit of planar mini-viewports.
//
// Parameters:
//   - scale: the maximum scale, non-positive values are ignored
//
// Returns:
//   - EffectBuilderOption: a function that applies the cap to an effect
func WithMaxScale(scale float64) EffectBuilderOption {
	return func(e *effect) {
		if scale > 0 {
			e.maxScale = scale
		}
	}
}

// WithDefaultChannel sets the channel of items that declare none.
//
// Parameters:
//   - id: the channel identifier
//
// Returns:
//   - EffectBuilderOption: a function that applies the default channel to an effect
func WithDefaultChannel(id string) EffectBuilderOption {
	return func(e *effect) {
		if id != "" {
			e.defaultChannel = id
		}
	}
}
