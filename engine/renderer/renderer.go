package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	dummy       RenderTarget

	activeTarget   RenderTarget
	activePipeline pipeline.Pipeline
	stats          RenderStats
	released       bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	canvasWidth          int
	canvasHeight         int
}

// Renderer defines the interface for the rendering system.
//
// The Renderer records passes into render targets: BeginPass selects a target and a cached
// Pipeline, Draw rasterizes filled polygons with per-draw shading parameters, and EndPass submits.
// A backend carries out the work, either on the GPU or on the CPU.
type Renderer interface {
	PixelReader

	// Backend returns the backend type the renderer was created with.
	Backend() RendererBackendType

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by compiling the corresponding backend
	// objects, then caching them by PipelineKey. Keys already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// CreateRenderTarget allocates an offscreen target.
	//
	// Parameters:
	//   - label: a debug label
	//   - width, height: the size in pixels, at least 1
	//   - depth: whether the target carries a depth buffer
	//
	// Returns:
	//   - RenderTarget: the new target
	//   - error: an error if allocation fails
	CreateRenderTarget(label string, width, height int, depth bool) (RenderTarget, error)

	// DummyTarget returns the shared 1x1 transparent target bound in place of absent identity maps.
	//
	// Returns:
	//   - RenderTarget: the dummy target
	DummyTarget() RenderTarget

	// Canvas returns the on-screen target.
	//
	// Returns:
	//   - RenderTarget: the canvas
	Canvas() RenderTarget

	// BeginPass starts a pass into target, or into the canvas when target is nil.
	//
	// Parameters:
	//   - target: the target to draw into, or nil
	//   - state: the pass state
	//
	// Returns:
	//   - error: ErrPassActive, ErrPipelineNotFound, ErrTargetReleased or a backend error
	BeginPass(target RenderTarget, state PassState) error

	// Draw records one draw into the active pass. Consumer parameters that point at the active
	// target are disabled so a target is never sampled while it is being written.
	//
	// Parameters:
	//   - cmd: the draw command
	//
	// Returns:
	//   - error: ErrNoActivePass or a backend error
	Draw(cmd DrawCommand) error

	// EndPass finishes and submits the active pass.
	//
	// Returns:
	//   - error: ErrNoActivePass or a backend error
	EndPass() error

	// Resize configures the canvas for a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	Resize(width, height int) error

	// Present presents the canvas to the display.
	Present()

	// Stats returns the cumulative pass and draw counters.
	//
	// Returns:
	//   - RenderStats: the counters
	Stats() RenderStats

	// Release frees the dummy target, the canvas and the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend. The WGPU backend needs a window
// to create its surface; the Software backend ignores it and sizes its canvas from the window
// when one is given, else from WithCanvasSize.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - win: the window providing the surface, may be nil for BackendTypeSoftware
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the backend could not be created
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		canvasWidth:   800,
		canvasHeight:  600,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	if win != nil {
		r.canvasWidth, r.canvasHeight = win.Width(), win.Height()
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend()
	case BackendTypeWGPU:
		fallthrough
	default:
		if win == nil {
			return nil, fmt.Errorf("wgpu backend: a window is required")
		}
		b, err := newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, msaa)
		if err != nil {
			return nil, fmt.Errorf("wgpu backend: %w", err)
		}
		r.backend = b
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.backend.ConfigureSurface(r.canvasWidth, r.canvasHeight); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("configure surface: %w", err)
	}

	dummy, err := r.backend.CreateRenderTarget("dummy", 1, 1, false)
	if err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("dummy target: %w", err)
	}
	r.dummy = dummy

	common.Logger().Info("renderer created", "backend", backendType.String(), "width", r.canvasWidth, "height", r.canvasHeight)
	return r, nil
}

func (r *renderer) Backend() RendererBackendType {
	return r.backendType
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRendererReleased
	}
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return fmt.Errorf("register pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) CreateRenderTarget(label string, width, height int, depth bool) (RenderTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("render target %q: invalid size %dx%d", label, width, height)
	}
	return r.backend.CreateRenderTarget(label, width, height, depth)
}

func (r *renderer) DummyTarget() RenderTarget {
	return r.dummy
}

func (r *renderer) Canvas() RenderTarget {
	return r.backend.Canvas()
}

func (r *renderer) BeginPass(target RenderTarget, state PassState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrRendererReleased
	}
	if r.activeTarget != nil {
		return ErrPassActive
	}
	if target == nil {
		target = r.backend.Canvas()
	}
	if target.Released() {
		return fmt.Errorf("begin pass %q: %w", target.Label(), ErrTargetReleased)
	}
	p, exists := r.pipelineCache[state.PipelineKey]
	if !exists {
		return fmt.Errorf("begin pass %q: %w: %q", target.Label(), ErrPipelineNotFound, state.PipelineKey)
	}
	if err := r.backend.BeginPass(target, state, p); err != nil {
		return fmt.Errorf("begin pass %q: %w", target.Label(), err)
	}
	r.activeTarget = target
	r.activePipeline = p
	r.stats.Passes++
	return nil
}

func (r *renderer) Draw(cmd DrawCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeTarget == nil {
		return ErrNoActivePass
	}
	if len(cmd.Polygon) < 3 {
		return nil
	}

	params := make([]shading.Parameters, len(cmd.Shading))
	copy(params, cmd.Shading)
	for i := range params {
		p := &params[i]
		if p.Target == nil {
			p.Target = r.dummy
			p.Enabled = false
		}
		if p.Role == shading.RoleConsumer && p.Target == shading.Texture(r.activeTarget) {
			common.Logger().Warn("consumer samples the target being drawn; disabled for this draw",
				"draw", cmd.Label, "target", r.activeTarget.Label())
			p.Target = r.dummy
			p.Enabled = false
		}
	}
	cmd.Shading = params

	drawn, err := r.backend.Draw(cmd, shading.Resolve(params))
	if err != nil {
		return fmt.Errorf("draw %q: %w", cmd.Label, err)
	}
	r.stats.Draws++
	if !drawn {
		r.stats.Discarded++
	}
	return nil
}

func (r *renderer) EndPass() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeTarget == nil {
		return ErrNoActivePass
	}
	r.activeTarget = nil
	r.activePipeline = nil
	return r.backend.EndPass()
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRendererReleased
	}
	if width < 1 || height < 1 {
		return nil
	}
	r.canvasWidth, r.canvasHeight = width, height
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) ReadPixels(target RenderTarget) (common.TextureStagingData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == nil {
		target = r.backend.Canvas()
	}
	if target.Released() {
		return common.TextureStagingData{}, ErrTargetReleased
	}
	return r.backend.ReadPixels(target)
}

func (r *renderer) Stats() RenderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	if r.dummy != nil && !r.dummy.Released() {
		_ = r.dummy.Release()
	}
	r.backend.Release()
	r.pipelineCache = make(map[string]pipeline.Pipeline)
}
