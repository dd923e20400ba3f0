package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type pipeline struct {
	pipelineKey string
	shader      shader.Shader

	renderPipeline *wgpu.RenderPipeline

	colorFormat       wgpu.TextureFormat
	depthFormat       wgpu.TextureFormat
	depthTestEnabled  bool
	depthWriteEnabled bool
	depthCompare      wgpu.CompareFunction
	blendEnabled      bool
	cullMode          wgpu.CullMode
	topology          wgpu.PrimitiveTopology
	frontFace         wgpu.FrontFace
	writeMask         wgpu.ColorWriteMask
	blendState        *wgpu.BlendState
}

// Pipeline describes the raster state a draw runs under: depth test, blending, write mask and
// the shader program. Backends that drive real GPUs attach their compiled pipeline object; the
// software backend reads the same state directly.
type Pipeline interface {
	// PipelineKey returns the unique key used to cache the compiled pipeline.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// StateKey returns a key derived from every raster setting, so pipelines that differ only by
	// name can share one compiled object.
	//
	// Returns:
	//   - string: the state key
	StateKey() string

	// Shader returns the shader program, or nil for backends that do not need one.
	//
	// Returns:
	//   - shader.Shader: the program
	Shader() shader.Shader

	// RenderPipeline returns the compiled GPU pipeline, or nil before the backend compiled it.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the compiled pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// ColorFormat returns the color attachment format.
	ColorFormat() wgpu.TextureFormat

	// DepthFormat returns the depth attachment format, wgpu.TextureFormatUndefined when none.
	DepthFormat() wgpu.TextureFormat

	// DepthTestEnabled reports whether fragments are tested against the depth buffer.
	DepthTestEnabled() bool

	// DepthWriteEnabled reports whether passing fragments write depth.
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison used when the depth test is enabled.
	DepthCompare() wgpu.CompareFunction

	// BlendEnabled reports whether color output is blended with the destination.
	BlendEnabled() bool

	// CullMode returns the face culling mode.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology.
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the winding considered front-facing.
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color channels written.
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend equation, or nil when blending is disabled.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state or nil
	BlendState() *wgpu.BlendState

	// SetRenderPipeline attaches the compiled GPU pipeline.
	//
	// Parameters:
	//   - p: the compiled pipeline
	SetRenderPipeline(p *wgpu.RenderPipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new Pipeline. The defaults draw alpha-blended triangles into an
// RGBA8 target without depth.
//
// Parameters:
//   - pipelineKey: a unique identifier for the pipeline
//   - opts: functional options to configure the pipeline
//
// Returns:
//   - Pipeline: the newly created pipeline
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		colorFormat:  wgpu.TextureFormatRGBA8Unorm,
		depthFormat:  wgpu.TextureFormatUndefined,
		depthCompare: wgpu.CompareFunctionLessEqual,
		blendEnabled: true,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.depthTestEnabled {
		p.depthWriteEnabled = false
	}
	return p
}

// NewIdentityPipeline creates the raster state of an identity pass: opaque writes with blending
// off, and a depth test that lets the highest priority win when depthTest is set.
//
// Parameters:
//   - key: a unique identifier for the pipeline
//   - s: the shader program, may be nil for the software backend
//   - depthTest: whether overlapping sources are ordered by depth
//
// Returns:
//   - Pipeline: the identity pipeline
func NewIdentityPipeline(key string, s shader.Shader, depthTest bool) Pipeline {
	opts := []PipelineBuilderOption{
		WithShader(s),
		WithBlendEnabled(false),
		WithDepthTestEnabled(depthTest),
		WithDepthWriteEnabled(depthTest),
		WithDepthCompare(wgpu.CompareFunctionLessEqual),
	}
	if depthTest {
		opts = append(opts, WithDepthFormat(wgpu.TextureFormatDepth24Plus))
	}
	return NewPipeline(key, opts...)
}

// NewMainPipeline creates the raster state of the visible pass: alpha blending, no depth.
//
// Parameters:
//   - key: a unique identifier for the pipeline
//   - s: the shader program, may be nil for the software backend
//   - format: the color format of the surface, wgpu.TextureFormatUndefined to use the canvas format
//
// Returns:
//   - Pipeline: the main pipeline
func NewMainPipeline(key string, s shader.Shader, format wgpu.TextureFormat) Pipeline {
	return NewPipeline(key,
		WithShader(s),
		WithColorFormat(format),
		WithBlendEnabled(true),
	)
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) StateKey() string {
	shaderKey := ""
	if p.shader != nil {
		shaderKey = p.shader.Key()
	}
	return fmt.Sprintf("%s|c%d|d%d|t%v|w%v|cmp%d|b%v|cull%d|top%d|wm%d",
		shaderKey, p.colorFormat, p.depthFormat,
		p.depthTestEnabled, p.depthWriteEnabled, p.depthCompare,
		p.blendEnabled, p.cullMode, p.topology, p.writeMask,
	)
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) ColorFormat() wgpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) DepthFormat() wgpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() wgpu.CompareFunction {
	return p.depthCompare
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	if !p.blendEnabled {
		return nil
	}
	return p.blendState
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}
