package occlusion

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// ErrPassReleased is returned when an identity pass is used or released after Release.
var ErrPassReleased = errors.New("occlusion: identity pass already released")

const (
	// PipelineKeyIdentity writes identity colors with a priority depth test.
	PipelineKeyIdentity = "occlusion/identity"
	// PipelineKeyCoverage writes identity colors without depth.
	PipelineKeyCoverage = "occlusion/coverage"
)

// PassOptions are handed through to an identity render unchanged.
type PassOptions struct {
	// Viewport is the main viewport the member footprints are built for.
	Viewport viewport.Viewport
	// LayerFilter drops members for which it returns false. Nil keeps every member.
	LayerFilter func(drawable.Drawable) bool
	// OnViewActivate is called with the mini-viewport before any member is drawn.
	OnViewActivate func(viewport.Viewport)
}

type identityPass struct {
	mu *sync.Mutex

	label       string
	renderer    renderer.Renderer
	target      renderer.RenderTarget
	depthTest   bool
	pipelineKey string
	renders     uint64
	released    bool

	pendingWidth  int
	pendingHeight int
}

// IdentityPass owns one identity map and rasterizes a channel's members into it.
type IdentityPass interface {
	// Label returns the pass label, which is also the target label.
	Label() string

	// Target returns the identity map.
	//
	// Returns:
	//   - renderer.RenderTarget: the target, nil after Release
	Target() renderer.RenderTarget

	// DepthTest reports whether members are ordered by priority depth.
	DepthTest() bool

	// Resize re-allocates the identity map when the size differs from the current one.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: ErrPassReleased or an allocation error
	Resize(width, height int) error

	// Render clears the map and draws every member's test footprint as its identity color,
	// restricted to the interior of mini.
	//
	// Parameters:
	//   - members: the channel members
	//   - mini: the projection onto the map
	//   - opts: the pass-through options
	//
	// Returns:
	//   - error: ErrPassReleased or a renderer error
	Render(members []Member, mini *MiniViewport, opts PassOptions) error

	// ShadingParameters returns the source-role parameters shared by every member draw:
	// identity output and the dummy target bound in place of any map.
	//
	// Returns:
	//   - shading.Parameters: the source parameters
	ShadingParameters() shading.Parameters

	// Renders returns how many times Render completed.
	Renders() uint64

	// Released reports whether Release was called.
	Released() bool

	// Release frees the identity map. A second call returns ErrPassReleased.
	//
	// Returns:
	//   - error: ErrPassReleased on a second call, or the target's release error
	Release() error
}

var _ IdentityPass = &identityPass{}

// NewIdentityPass allocates an identity map on r and registers the pipeline it draws with.
//
// Parameters:
//   - r: the renderer
//   - options: functional options to configure the pass
//
// Returns:
//   - IdentityPass: the new pass
//   - error: an error if the pipeline or the target could not be created
func NewIdentityPass(r renderer.Renderer, options ...IdentityPassBuilderOption) (IdentityPass, error) {
	p := &identityPass{
		mu:            &sync.Mutex{},
		label:         "identity",
		renderer:      r,
		depthTest:     true,
		pendingWidth:  1,
		pendingHeight: 1,
	}
	for _, option := range options {
		option(p)
	}

	prog, err := shader.OcclusionProgram()
	if err != nil {
		return nil, fmt.Errorf("identity pass %s: %w", p.label, err)
	}
	p.pipelineKey = PipelineKeyCoverage
	if p.depthTest {
		p.pipelineKey = PipelineKeyIdentity
	}
	if err := r.RegisterPipelines(pipeline.NewIdentityPipeline(p.pipelineKey, prog, p.depthTest)); err != nil {
		return nil, fmt.Errorf("identity pass %s: %w", p.label, err)
	}

	target, err := r.CreateRenderTarget(p.label, p.pendingWidth, p.pendingHeight, p.depthTest)
	if err != nil {
		return nil, fmt.Errorf("identity pass %s: %w", p.label, err)
	}
	p.target = target
	common.Logger().Info("identity target created", "label", p.label, "width", p.pendingWidth, "height", p.pendingHeight)
	return p, nil
}

func (p *identityPass) Label() string {
	return p.label
}

func (p *identityPass) Target() renderer.RenderTarget {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	return p.target
}

func (p *identityPass) DepthTest() bool {
	return p.depthTest
}

func (p *identityPass) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrPassReleased
	}
	return p.target.Resize(width, height)
}

func (p *identityPass) Render(members []Member, mini *MiniViewport, opts PassOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrPassReleased
	}
	if mini == nil {
		return nil
	}
	interior := mini.Interior()
	state := renderer.PassState{
		PipelineKey:    p.pipelineKey,
		Clear:          true,
		ClearDepth:     1,
		Scissor:        image.Rect(int(interior[0]), int(interior[1]), int(interior[2]), int(interior[3])),
		ScissorEnabled: true,
	}
	if err := p.renderer.BeginPass(p.target, state); err != nil {
		return err
	}
	if opts.OnViewActivate != nil {
		opts.OnViewActivate(mini)
	}

	ordered := make([]Member, 0, len(members))
	for _, m := range members {
		if opts.LayerFilter == nil || opts.LayerFilter(m.Item) {
			ordered = append(ordered, m)
		}
	}
	// draw in ID order; equal depths resolve to the higher ID
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Item.ID() < ordered[j].Item.ID()
	})

	vp := opts.Viewport
	if vp == nil {
		vp = mini
	}
	source := p.sourceParameters()
	viewProj := mini.ViewProjectionMatrix()
	for _, m := range ordered {
		params := source
		params.Identity = m.Item.IdentityColor()
		if p.depthTest {
			params.Depth = shading.EncodePriorityDepth(m.Priority, m.HasPriority)
		}
		err := p.renderer.Draw(renderer.DrawCommand{
			Label:          fmt.Sprintf("%s/%d", p.label, m.Item.ID()),
			Polygon:        m.Item.TestFootprint(vp),
			ViewProjection: viewProj,
			Identity:       m.Item.IdentityColor(),
			Anchor:         m.Item.Anchor(vp),
			Shading:        []shading.Parameters{params},
		})
		if err != nil {
			_ = p.renderer.EndPass()
			return err
		}
	}
	if err := p.renderer.EndPass(); err != nil {
		return err
	}
	p.renders++
	return nil
}

func (p *identityPass) ShadingParameters() shading.Parameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourceParameters()
}

func (p *identityPass) sourceParameters() shading.Parameters {
	return shading.Parameters{
		Role:         shading.RoleSource,
		DrawIdentity: true,
		Depth:        shading.UniformDepth,
		Target:       p.renderer.DummyTarget(),
	}
}

func (p *identityPass) Renders() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders
}

func (p *identityPass) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *identityPass) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		common.Logger().Error("identity pass released twice", "label", p.label)
		return ErrPassReleased
	}
	p.released = true
	common.Logger().Info("identity target released", "label", p.label)
	return p.target.Release()
}
