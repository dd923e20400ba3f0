package renderer

import (
	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU rasterizer. It needs no window or GPU and can read
	// back every target, which makes it the backend for tests and terminal output.
	BackendTypeSoftware
)

// String returns the backend name.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeSoftware:
		return "software"
	default:
		return "wgpu"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA)
// of the canvas. Offscreen identity targets are always single-sampled.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// RendererBackend is the interface every backend implements. The Renderer owns the pipeline
// cache and pass bookkeeping; backends only allocate resources and rasterize.
type RendererBackend interface {
	// ConfigureSurface (re)creates the canvas for the given size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// RegisterRenderPipeline compiles whatever backend object the pipeline needs.
	//
	// Parameters:
	//   - p: the pipeline
	//
	// Returns:
	//   - error: an error if compilation fails
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateRenderTarget allocates an offscreen RGBA8 target with an optional depth buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - width, height: the size in pixels
	//   - depth: whether to allocate a depth buffer
	//
	// Returns:
	//   - RenderTarget: the target
	//   - error: an allocation error
	CreateRenderTarget(label string, width, height int, depth bool) (RenderTarget, error)

	// Canvas returns the target BeginPass uses when none is given.
	Canvas() RenderTarget

	// BeginPass starts recording into target with the given state.
	//
	// Parameters:
	//   - target: the target, never nil
	//   - state: the pass state
	//   - p: the resolved pipeline
	//
	// Returns:
	//   - error: an error if the pass could not be started
	BeginPass(target RenderTarget, state PassState, p pipeline.Pipeline) error

	// Draw rasterizes one command with the resolved shading program.
	//
	// Parameters:
	//   - cmd: the draw command
	//   - prog: the shading program resolved from cmd.Shading
	//
	// Returns:
	//   - bool: false if every fragment was discarded or clipped
	//   - error: a backend error
	Draw(cmd DrawCommand, prog shading.Program) (bool, error)

	// EndPass finishes and submits the current pass.
	//
	// Returns:
	//   - error: a submission error
	EndPass() error

	// Present shows the canvas.
	Present()

	// ReadPixels copies a target's pixels to the CPU.
	//
	// Parameters:
	//   - target: the target to read
	//
	// Returns:
	//   - common.TextureStagingData: tightly packed RGBA rows
	//   - error: ErrReadbackUnsupported or a backend error
	ReadPixels(target RenderTarget) (common.TextureStagingData, error)

	// Release frees every backend resource.
	Release()
}
