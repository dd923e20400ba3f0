package scene

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
	"github.com/cogentcore/webgpu/wgpu"
)

// MainPipelineKey is the pipeline the visible pass draws with.
const MainPipelineKey = "scene/main"

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Items int
	// Drawn counts main-pass draw calls, Hidden counts mask sources kept out of the main pass.
	Drawn  int
	Hidden int
	// Discarded counts draws whose every fragment was faded out.
	Discarded int
	// IdentityRenders is the number of identity maps re-rendered for this frame.
	IdentityRenders int
}

// Scene holds the drawable items of one view, the viewport they are seen through and the
// occlusion effects applied to them, and renders them through a Renderer.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// Viewport returns the active viewport.
	Viewport() viewport.Viewport

	// SetViewport replaces the active viewport.
	//
	// Parameters:
	//   - vp: the new viewport
	SetViewport(vp viewport.Viewport)

	// Add appends items to the scene. Items with an ID already present replace the old item in place.
	//
	// Parameters:
	//   - items: the items to add
	Add(items ...drawable.Drawable)

	// Get retrieves an item by ID, or nil if absent.
	//
	// Parameters:
	//   - id: the item ID
	//
	// Returns:
	//   - drawable.Drawable: the item or nil
	Get(id uint32) drawable.Drawable

	// Remove removes an item by ID.
	//
	// Parameters:
	//   - id: the item ID
	Remove(id uint32)

	// Items returns the items in draw order.
	Items() []drawable.Drawable

	// Count returns the number of items.
	Count() int

	// Clear removes every item.
	Clear()

	// AddEffect appends an occlusion effect. Effects run in the order they were added.
	//
	// Parameters:
	//   - e: the effect
	AddEffect(e occlusion.Effect)

	// Effects returns the scene's effects.
	Effects() []occlusion.Effect

	// SetLayerFilter sets which items take part in occlusion. Filtered items are still drawn, unoccluded.
	// Nil keeps every item.
	//
	// Parameters:
	//   - fn: the filter
	SetLayerFilter(fn func(drawable.Drawable) bool)

	// SetBackground sets the color the canvas is cleared to.
	//
	// Parameters:
	//   - color: RGBA in [0, 1]
	SetBackground(color [4]float32)

	// Render runs every effect's PreRender and then draws the visible items into the canvas.
	// It does not present.
	//
	// Returns:
	//   - error: a renderer error
	Render() error

	// Stats returns the statistics of the last rendered frame.
	Stats() FrameStats

	// Release cleans up the effects and stops the prep workers. The renderer is not released.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name       string
	r          renderer.Renderer
	vp         viewport.Viewport
	items      []drawable.Drawable
	effects    []occlusion.Effect
	filter     func(drawable.Drawable) bool
	background [4]float32
	stats      FrameStats
	released   bool

	// prepPool runs the per-item footprint work of each frame. Workers persist across frames.
	prepPool    worker.DynamicWorkerPool
	prepWorkers int
	prepChunk   int
}

var _ Scene = &scene{}

// prepared is the per-item geometry computed before the main pass.
type prepared struct {
	polygon [][2]float64
	anchor  [2]float64
}

// NewScene creates a scene drawing through r and registers the main pipeline on it.
//
// Parameters:
//   - name: the name of the scene
//   - r: the renderer to draw with
//   - vp: the initial viewport
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
//   - error: an error if r or vp is nil, or the main pipeline cannot be registered
func NewScene(name string, r renderer.Renderer, vp viewport.Viewport, options ...SceneBuilderOption) (Scene, error) {
	if r == nil {
		return nil, fmt.Errorf("scene %s: a renderer is required", name)
	}
	if vp == nil {
		return nil, fmt.Errorf("scene %s: a viewport is required", name)
	}
	s := &scene{
		mu:          &sync.RWMutex{},
		name:        name,
		r:           r,
		vp:          vp,
		prepWorkers: max(runtime.NumCPU()-1, 1),
		prepChunk:   256,
	}
	for _, option := range options {
		option(s)
	}

	prog, err := shader.OcclusionProgram()
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	if err := r.RegisterPipelines(pipeline.NewMainPipeline(MainPipelineKey, prog, wgpu.TextureFormatUndefined)); err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}

	s.prepPool = worker.NewDynamicWorkerPool(s.prepWorkers, 256, time.Second)
	return s, nil
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Renderer() renderer.Renderer {
	return s.r
}

func (s *scene) Viewport() viewport.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vp
}

func (s *scene) SetViewport(vp viewport.Viewport) {
	if vp == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp = vp
}

func (s *scene) Add(items ...drawable.Drawable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item == nil {
			continue
		}
		i := slices.IndexFunc(s.items, func(d drawable.Drawable) bool { return d.ID() == item.ID() })
		if i >= 0 {
			s.items[i] = item
			continue
		}
		s.items = append(s.items, item)
	}
}

func (s *scene) Get(id uint32) drawable.Drawable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID() == id {
			return item
		}
	}
	return nil
}

func (s *scene) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(d drawable.Drawable) bool { return d.ID() == id })
}

func (s *scene) Items() []drawable.Drawable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

func (s *scene) AddEffect(e occlusion.Effect) {
	if e == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = append(s.effects, e)
}

func (s *scene) Effects() []occlusion.Effect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.effects)
}

func (s *scene) SetLayerFilter(fn func(drawable.Drawable) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = fn
}

func (s *scene) SetBackground(color [4]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = color
}

func (s *scene) Render() error {
	s.mu.RLock()
	if s.released {
		s.mu.RUnlock()
		return fmt.Errorf("scene %s: released", s.name)
	}
	items := slices.Clone(s.items)
	effects := slices.Clone(s.effects)
	vp, filter, background := s.vp, s.filter, s.background
	s.mu.RUnlock()

	geometry := s.prepare(items, vp)

	canvas := s.r.Canvas()
	in := occlusion.FrameInputs{
		Items:        items,
		Viewports:    []viewport.Viewport{vp},
		CanvasWidth:  canvas.Width(),
		CanvasHeight: canvas.Height(),
		LayerFilter:  filter,
	}
	stats := FrameStats{Items: len(items)}
	for _, e := range effects {
		if err := e.PreRender(in); err != nil {
			return fmt.Errorf("scene %s: effect %s: %w", s.name, e.Label(), err)
		}
		stats.IdentityRenders += e.Stats().FrameRenders
	}

	discardedBefore := s.r.Stats().Discarded
	state := renderer.PassState{PipelineKey: MainPipelineKey, Clear: true, ClearColor: background, ClearDepth: 1}
	if err := s.r.BeginPass(nil, state); err != nil {
		return fmt.Errorf("scene %s: %w", s.name, err)
	}
	viewProj := vp.ViewProjectionMatrix()
	params := make([]shading.Parameters, 0, len(effects))
	for i, item := range items {
		if !item.Visible() || len(geometry[i].polygon) < 3 {
			continue
		}
		params = params[:0]
		// mask geometry only ever feeds identity maps
		hidden := item.Operation() == drawable.OperationMask
		for _, e := range effects {
			p := e.ShadingParameters(item, occlusion.PassMain)
			switch p.Role {
			case shading.RoleNone:
				continue
			case shading.RoleSource:
				hidden = true
			}
			params = append(params, p)
		}
		if hidden {
			stats.Hidden++
			continue
		}
		err := s.r.Draw(renderer.DrawCommand{
			Label:          fmt.Sprintf("%s/%d", s.name, item.ID()),
			Polygon:        geometry[i].polygon,
			ViewProjection: viewProj,
			Color:          item.Color(),
			Identity:       item.IdentityColor(),
			Anchor:         geometry[i].anchor,
			Shading:        slices.Clone(params),
		})
		if err != nil {
			_ = s.r.EndPass()
			return fmt.Errorf("scene %s: %w", s.name, err)
		}
		stats.Drawn++
	}
	if err := s.r.EndPass(); err != nil {
		return fmt.Errorf("scene %s: %w", s.name, err)
	}
	stats.Discarded = int(s.r.Stats().Discarded - discardedBefore)

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	common.Logger().Debug("scene rendered", "scene", s.name, "items", stats.Items, "drawn", stats.Drawn,
		"discarded", stats.Discarded, "identity_renders", stats.IdentityRenders)
	return nil
}

// prepare computes every item's footprint and anchor on the prep pool.
// A WaitGroup is the per-frame barrier; the pool's own Wait is meant for draining.
func (s *scene) prepare(items []drawable.Drawable, vp viewport.Viewport) []prepared {
	out := make([]prepared, len(items))
	var wg sync.WaitGroup
	for start := 0; start < len(items); start += s.prepChunk {
		end := min(start+s.prepChunk, len(items))
		wg.Add(1)
		s.prepPool.SubmitTask(worker.Task{
			ID: start,
			Do: func() (any, error) {
				defer wg.Done()
				for i := start; i < end; i++ {
					if !items[i].Visible() {
						continue
					}
					out[i] = prepared{
						polygon: items[i].Footprint(vp),
						anchor:  items[i].Anchor(vp),
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return out
}

func (s *scene) Stats() FrameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	for _, e := range s.effects {
		e.Cleanup()
	}
	s.prepPool.Stop()
	common.Logger().Info("scene released", "scene", s.name)
}
