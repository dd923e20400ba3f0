package renderer

import (
	"errors"
	"image"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
)

var (
	// ErrTargetReleased is returned when a released render target is used or released again.
	ErrTargetReleased = errors.New("render target already released")
	// ErrNoActivePass is returned by Draw and EndPass outside BeginPass/EndPass.
	ErrNoActivePass = errors.New("no active render pass")
	// ErrPassActive is returned by BeginPass while another pass is still open.
	ErrPassActive = errors.New("render pass already active")
	// ErrPipelineNotFound is returned when a pass names a pipeline the renderer does not know.
	ErrPipelineNotFound = errors.New("pipeline not found")
	// ErrReadbackUnsupported is returned by ReadPixels for targets whose pixels cannot be read.
	ErrReadbackUnsupported = errors.New("pixel readback unsupported for target")
	// ErrRendererReleased is returned by every call after Release.
	ErrRendererReleased = errors.New("renderer released")
)

// RenderTarget is an offscreen color buffer with an optional depth buffer, or the canvas itself.
// Render targets are sampled by consumers through shading.Parameters.Target.
type RenderTarget interface {
	shading.Texture

	// HasDepth reports whether the target carries a depth buffer.
	//
	// Returns:
	//   - bool: true if a depth buffer is attached
	HasDepth() bool

	// Resize re-allocates the target's buffers when the dimensions differ from the current ones.
	// Resizing to the current size is a no-op.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrTargetReleased after Release, or an allocation error
	Resize(width, height int) error

	// Release frees the target's buffers. A second call returns ErrTargetReleased.
	//
	// Returns:
	//   - error: ErrTargetReleased if the target was already released
	Release() error

	// Released reports whether Release was called.
	Released() bool
}

// PassState is the per-pass state applied by BeginPass.
type PassState struct {
	// PipelineKey names a registered pipeline supplying depth, blend and write-mask state.
	PipelineKey string

	// Clear clears color (and depth when present) before the first draw.
	Clear      bool
	ClearColor [4]float32
	ClearDepth float32

	// Scissor restricts rasterization to a pixel rectangle when ScissorEnabled is set.
	Scissor        image.Rectangle
	ScissorEnabled bool
}

// DrawCommand is one filled polygon drawn in common space.
type DrawCommand struct {
	Label string

	// Polygon is a simple (convex or star-shaped around its first vertex) outline in common space.
	Polygon [][2]float64
	// ViewProjection maps common space to clip space of the pass target.
	ViewProjection [16]float32

	Color    [4]float32
	Identity common.IdentityColor
	// Anchor is the common-space point sampled by anchored consumers.
	Anchor [2]float64

	// Shading holds the parameters every effect published for this draw.
	Shading []shading.Parameters
}

// RenderStats are cumulative counters since the renderer was created.
type RenderStats struct {
	Passes    uint64
	Draws     uint64
	Discarded uint64
}

// PixelReader is implemented by renderers that can copy a target's pixels back to the CPU.
type PixelReader interface {
	// ReadPixels returns the RGBA contents of target, or of the canvas when target is nil.
	//
	// Parameters:
	//   - target: the render target to read, or nil for the canvas
	//
	// Returns:
	//   - common.TextureStagingData: tightly packed RGBA rows
	//   - error: ErrReadbackUnsupported or a backend error
	ReadPixels(target RenderTarget) (common.TextureStagingData, error)
}

// clipToPixel converts a clip-space position to pixel coordinates of a width x height target.
func clipToPixel(clip [3]float32, width, height int) (float32, float32) {
	return (clip[0] + 1) * 0.5 * float32(width), (1 - clip[1]) * 0.5 * float32(height)
}

// passRect returns the pixel rectangle a pass may write.
func passRect(state PassState, width, height int) image.Rectangle {
	r := image.Rect(0, 0, width, height)
	if state.ScissorEnabled {
		r = r.Intersect(state.Scissor)
	}
	return r
}
