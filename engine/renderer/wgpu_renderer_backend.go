package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/cogentcore/webgpu/wgpu"
)

// identityFormat is the color format of every offscreen target.
const identityFormat = wgpu.TextureFormatRGBA8Unorm

// copyRowAlignment is the WebGPU requirement on BytesPerRow for texture-to-buffer copies.
const copyRowAlignment = 256

// wgpuTarget is a GPU render target. The canvas variant has no textures of its own; its view is
// the swapchain image acquired in BeginPass.
type wgpuTarget struct {
	mu       *sync.Mutex
	device   *wgpu.Device
	label    string
	width    int
	height   int
	hasDepth bool
	canvas   bool
	released bool

	texture      *wgpu.Texture
	view         *wgpu.TextureView
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
}

var _ RenderTarget = &wgpuTarget{}

func (t *wgpuTarget) Label() string { return t.label }

func (t *wgpuTarget) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}

func (t *wgpuTarget) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

func (t *wgpuTarget) HasDepth() bool { return t.hasDepth }

func (t *wgpuTarget) Resize(width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return ErrTargetReleased
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("resize %q: invalid size %dx%d", t.label, width, height)
	}
	if width == t.width && height == t.height && (t.canvas || t.texture != nil) {
		return nil
	}
	t.width, t.height = width, height
	if t.canvas {
		return nil
	}
	t.releaseTextures()
	return t.allocate()
}

func (t *wgpuTarget) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return ErrTargetReleased
	}
	t.released = true
	t.releaseTextures()
	return nil
}

func (t *wgpuTarget) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *wgpuTarget) allocate() error {
	size := wgpu.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1}
	tex, err := t.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         t.label + " Color",
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        identityFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return err
	}
	t.texture, t.view = tex, view

	if !t.hasDepth {
		return nil
	}
	depth, err := t.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         t.label + " Depth",
		Usage:         wgpu.TextureUsageRenderAttachment,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        wgpu.TextureFormatDepth24Plus,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		t.releaseTextures()
		return err
	}
	depthView, err := depth.CreateView(nil)
	if err != nil {
		depth.Release()
		t.releaseTextures()
		return err
	}
	t.depthTexture, t.depthView = depth, depthView
	return nil
}

func (t *wgpuTarget) releaseTextures() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Destroy()
		t.texture.Release()
		t.texture = nil
	}
	if t.depthView != nil {
		t.depthView.Release()
		t.depthView = nil
	}
	if t.depthTexture != nil {
		t.depthTexture.Destroy()
		t.depthTexture.Release()
		t.depthTexture = nil
	}
}

// compiledPipeline is the GPU state shared by every Pipeline with the same StateKey.
type compiledPipeline struct {
	render  *wgpu.RenderPipeline
	layouts []*wgpu.BindGroupLayout
	shader  shader.Shader
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	msaaTexture   *wgpu.Texture
	msaaView      *wgpu.TextureView
	canvas        *wgpuTarget
	blank         *wgpuTarget

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for canvas passes

	compiled map[string]*compiledPipeline

	// Pass state for the pass opened by BeginPass
	passEncoder  *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder
	passCompiled *compiledPipeline
	transient    []func()

	// Swapchain image held between a canvas pass and Present
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
		compiled:    make(map[string]*compiledPipeline),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	blank, err := w.newTarget("blank", 1, 1, false)
	if err != nil {
		return nil, fmt.Errorf("blank target: %w", err)
	}
	w.blank = blank
	return w, nil
}

func (b *wgpuRendererBackendImpl) newTarget(label string, width, height int, depth bool) (*wgpuTarget, error) {
	t := &wgpuTarget{
		mu:       &sync.Mutex{},
		device:   b.device,
		label:    label,
		width:    width,
		height:   height,
		hasDepth: depth,
	}
	if err := t.allocate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.msaaView != nil {
		b.msaaView.Release()
		b.msaaTexture.Release()
		b.msaaView, b.msaaTexture = nil, nil
	}
	if b.sampleCount > 1 {
		// Canvas passes draw into the MSAA texture and resolve into the swapchain view.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   uint32(b.sampleCount),
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return err
		}
		view, err := msaaTexture.CreateView(nil)
		if err != nil {
			msaaTexture.Release()
			return err
		}
		b.msaaTexture, b.msaaView = msaaTexture, view
	}

	if b.canvas == nil {
		b.canvas = &wgpuTarget{mu: &sync.Mutex{}, device: b.device, label: "canvas", canvas: true}
	}
	return b.canvas.Resize(width, height)
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := p.StateKey()
	if c, ok := b.compiled[key]; ok {
		p.SetRenderPipeline(c.render)
		return nil
	}
	s := p.Shader()
	if s == nil {
		return errors.New("a shader must be set to create a render pipeline")
	}

	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return err
	}
	defer module.Release()

	descriptors := s.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range descriptors {
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		layouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	format := p.ColorFormat()
	samples := uint32(1)
	if format == wgpu.TextureFormatUndefined {
		format = b.surfaceFormat
		samples = uint32(b.sampleCount)
	}

	colorTarget := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		colorTarget.Blend = p.BlendState()
	}

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != wgpu.TextureFormatUndefined {
		depthCompare := p.DepthCompare()
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            p.DepthFormat(),
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.VertexEntryPoint(),
			Buffers:    s.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: s.FragmentEntryPoint(),
			Targets:    []wgpu.ColorTargetState{colorTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return err
	}

	b.compiled[key] = &compiledPipeline{render: created, layouts: layouts, shader: s}
	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateRenderTarget(label string, width, height int, depth bool) (RenderTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newTarget(label, width, height, depth)
}

func (b *wgpuRendererBackendImpl) Canvas() RenderTarget {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canvas
}

func (b *wgpuRendererBackendImpl) BeginPass(target RenderTarget, state PassState, p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := target.(*wgpuTarget)
	if !ok {
		return fmt.Errorf("target %q does not belong to the wgpu backend", target.Label())
	}
	compiled, ok := b.compiled[p.StateKey()]
	if !ok {
		return fmt.Errorf("pipeline %q was not compiled", p.PipelineKey())
	}
	if p.DepthFormat() != wgpu.TextureFormatUndefined && !t.hasDepth {
		return fmt.Errorf("pipeline %q needs depth but target %q has none", p.PipelineKey(), t.label)
	}

	loadOp := wgpu.LoadOpLoad
	if state.Clear {
		loadOp = wgpu.LoadOpClear
	}
	color := wgpu.RenderPassColorAttachment{
		LoadOp:  loadOp,
		StoreOp: wgpu.StoreOpStore,
		ClearValue: wgpu.Color{
			R: float64(state.ClearColor[0]),
			G: float64(state.ClearColor[1]),
			B: float64(state.ClearColor[2]),
			A: float64(state.ClearColor[3]),
		},
	}
	desc := &wgpu.RenderPassDescriptor{Label: t.label + " Pass"}

	if t.canvas {
		// Defensive: never hold two swapchain images at once.
		if b.frameSurface == nil {
			surfaceTexture, err := b.surface.GetCurrentTexture()
			if err != nil {
				return err
			}
			view, err := surfaceTexture.CreateView(nil)
			if err != nil {
				surfaceTexture.Release()
				return err
			}
			b.frameSurface, b.frameView = surfaceTexture, view
		}
		// With MSAA the multisampled texture is drawn and resolved into the swapchain view.
		if b.msaaView != nil {
			color.View = b.msaaView
			color.ResolveTarget = b.frameView
			color.StoreOp = wgpu.StoreOpDiscard
		} else {
			color.View = b.frameView
		}
	} else {
		color.View = t.view
		if t.hasDepth {
			depthLoad := wgpu.LoadOpLoad
			if state.Clear {
				depthLoad = wgpu.LoadOpClear
			}
			desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:            t.depthView,
				DepthLoadOp:     depthLoad,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: state.ClearDepth,
			}
		}
	}
	desc.ColorAttachments = []wgpu.RenderPassColorAttachment{color}

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: t.label + " Encoder"})
	if err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(desc)
	pass.SetPipeline(compiled.render)
	if state.ScissorEnabled {
		r := passRect(state, t.width, t.height)
		if r.Empty() {
			pass.SetScissorRect(0, 0, 0, 0)
		} else {
			pass.SetScissorRect(uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy()))
		}
	}

	b.passEncoder = encoder
	b.pass = pass
	b.passCompiled = compiled
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(cmd DrawCommand, prog shading.Program) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	verts := common.Triangulate(cmd.Polygon)
	if len(verts) == 0 {
		return false, nil
	}
	s := b.passCompiled.shader

	vertexBuffer, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    cmd.Label + " Vertex Buffer",
		Contents: shading.MarshalVertices(verts),
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return false, err
	}
	b.transient = append(b.transient, vertexBuffer.Release)

	params := shading.NewGPUOcclusionParams(cmd.ViewProjection, cmd.Color, cmd.Identity, cmd.Anchor, prog)
	uniform, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    cmd.Label + " Params",
		Contents: params.Marshal(),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return false, err
	}
	b.transient = append(b.transient, uniform.Release)

	group, binding, ok := s.UniformSlot(shader.AnnotationArgOcclusionParams)
	if !ok || group >= len(b.passCompiled.layouts) {
		return false, fmt.Errorf("shader %q declares no occlusion params uniform", s.Key())
	}
	entries := []wgpu.BindGroupEntry{{
		Binding: uint32(binding),
		Buffer:  uniform,
		Size:    wgpu.WholeSize,
	}}
	for _, slot := range []struct {
		role   shader.AnnotationArg
		params *shading.Parameters
	}{
		{shader.AnnotationArgCollisionMap, prog.Collision},
		{shader.AnnotationArgMaskMap, prog.Mask},
	} {
		g, bind, ok := s.TextureSlot(slot.role)
		if !ok || g != group {
			continue
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(bind),
			TextureView: b.sampledView(slot.params),
		})
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   cmd.Label + " Bind Group",
		Layout:  b.passCompiled.layouts[group],
		Entries: entries,
	})
	if err != nil {
		return false, err
	}
	b.transient = append(b.transient, bindGroup.Release)

	b.pass.SetBindGroup(uint32(group), bindGroup, nil)
	b.pass.SetVertexBuffer(0, vertexBuffer, 0, wgpu.WholeSize)
	b.pass.Draw(uint32(len(verts)), 1, 0, 0)
	return true, nil
}

// sampledView returns the identity map view for a consumer slot, or the blank view.
func (b *wgpuRendererBackendImpl) sampledView(p *shading.Parameters) *wgpu.TextureView {
	if p == nil {
		return b.blank.view
	}
	t, ok := p.Target.(*wgpuTarget)
	if !ok || t.canvas || t.Released() || t.view == nil {
		return b.blank.view
	}
	return t.view
}

func (b *wgpuRendererBackendImpl) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return nil
	}
	defer b.releaseTransient()

	passErr := b.pass.End()
	b.pass.Release()
	b.pass = nil
	b.passCompiled = nil

	commandBuffer, err := b.passEncoder.Finish(nil)
	b.passEncoder.Release()
	b.passEncoder = nil
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return passErr
}

func (b *wgpuRendererBackendImpl) releaseTransient() {
	for _, release := range b.transient {
		release()
	}
	b.transient = b.transient[:0]
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	b.frameView.Release()
	b.frameView = nil
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) ReadPixels(target RenderTarget) (common.TextureStagingData, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := target.(*wgpuTarget)
	if !ok || t.canvas {
		return common.TextureStagingData{}, ErrReadbackUnsupported
	}

	width, height := uint32(t.width), uint32(t.height)
	rowBytes := width * 4
	paddedRow := (rowBytes + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	size := uint64(paddedRow) * uint64(height)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: t.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return common.TextureStagingData{}, err
	}
	defer buf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	defer encoder.Release()
	err = encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: t.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{BytesPerRow: paddedRow, RowsPerImage: height},
		},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	status := wgpu.BufferMapAsyncStatusUnknown
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return common.TextureStagingData{}, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return common.TextureStagingData{}, fmt.Errorf("map readback buffer: status %v", status)
	}
	defer buf.Unmap()

	mapped := buf.GetMappedRange(0, uint(size))
	pixels := make([]byte, int(rowBytes)*int(height))
	for y := uint32(0); y < height; y++ {
		copy(pixels[y*rowBytes:(y+1)*rowBytes], mapped[y*paddedRow:y*paddedRow+rowBytes])
	}
	return common.TextureStagingData{Pixels: pixels, Width: width, Height: height}, nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseTransient()
	for _, c := range b.compiled {
		c.render.Release()
		for _, l := range c.layouts {
			if l != nil {
				l.Release()
			}
		}
	}
	b.compiled = make(map[string]*compiledPipeline)
	if b.blank != nil && !b.blank.Released() {
		_ = b.blank.Release()
	}
	if b.msaaView != nil {
		b.msaaView.Release()
		b.msaaTexture.Release()
		b.msaaView, b.msaaTexture = nil, nil
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameView, b.frameSurface = nil, nil
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
