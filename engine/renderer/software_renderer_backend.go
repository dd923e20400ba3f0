package renderer

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/vector"
)

// coverageThreshold is the rasterizer coverage at which a pixel counts as inside a polygon.
// Identity writes are binary, so partial coverage is rounded at half a pixel.
const coverageThreshold = 0x80

// softwareTarget is a CPU render target. It implements shading.TexelSource so consumers can
// sample it directly.
type softwareTarget struct {
	mu       *sync.Mutex
	label    string
	color    *image.RGBA
	depth    []float32
	hasDepth bool
	released bool
}

var _ RenderTarget = &softwareTarget{}
var _ shading.TexelSource = &softwareTarget{}

func newSoftwareTarget(label string, width, height int, depth bool) *softwareTarget {
	t := &softwareTarget{
		mu:       &sync.Mutex{},
		label:    label,
		hasDepth: depth,
	}
	t.allocate(width, height)
	return t
}

func (t *softwareTarget) allocate(width, height int) {
	t.color = image.NewRGBA(image.Rect(0, 0, width, height))
	if t.hasDepth {
		t.depth = make([]float32, width*height)
		for i := range t.depth {
			t.depth[i] = 1
		}
	}
}

func (t *softwareTarget) Label() string { return t.label }

func (t *softwareTarget) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.color.Rect.Dx()
}

func (t *softwareTarget) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.color.Rect.Dy()
}

func (t *softwareTarget) HasDepth() bool { return t.hasDepth }

func (t *softwareTarget) Resize(width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return ErrTargetReleased
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("resize %q: invalid size %dx%d", t.label, width, height)
	}
	if t.color.Rect.Dx() == width && t.color.Rect.Dy() == height {
		return nil
	}
	t.allocate(width, height)
	return nil
}

func (t *softwareTarget) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return ErrTargetReleased
	}
	t.released = true
	t.color = image.NewRGBA(image.Rectangle{})
	t.depth = nil
	return nil
}

func (t *softwareTarget) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *softwareTarget) Texel(x, y int) [4]uint8 {
	i := t.color.PixOffset(x, y)
	p := t.color.Pix[i : i+4 : i+4]
	return [4]uint8{p[0], p[1], p[2], p[3]}
}

type softwareRendererBackendImpl struct {
	mu     *sync.Mutex
	canvas *softwareTarget
	raster *vector.Rasterizer

	target   *softwareTarget
	state    PassState
	pipeline pipeline.Pipeline
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend() *softwareRendererBackendImpl {
	return &softwareRendererBackendImpl{
		mu:     &sync.Mutex{},
		raster: vector.NewRasterizer(0, 0),
	}
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.canvas == nil {
		b.canvas = newSoftwareTarget("canvas", width, height, false)
		return nil
	}
	return b.canvas.Resize(width, height)
}

func (b *softwareRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *softwareRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	switch p.DepthCompare() {
	case wgpu.CompareFunctionNever, wgpu.CompareFunctionLess, wgpu.CompareFunctionLessEqual,
		wgpu.CompareFunctionEqual, wgpu.CompareFunctionGreater, wgpu.CompareFunctionGreaterEqual,
		wgpu.CompareFunctionNotEqual, wgpu.CompareFunctionAlways:
		return nil
	default:
		return fmt.Errorf("unsupported depth compare %v", p.DepthCompare())
	}
}

func (b *softwareRendererBackendImpl) CreateRenderTarget(label string, width, height int, depth bool) (RenderTarget, error) {
	return newSoftwareTarget(label, width, height, depth), nil
}

func (b *softwareRendererBackendImpl) Canvas() RenderTarget {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canvas
}

func (b *softwareRendererBackendImpl) BeginPass(target RenderTarget, state PassState, p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := target.(*softwareTarget)
	if !ok {
		return fmt.Errorf("target %q does not belong to the software backend", target.Label())
	}
	if p.DepthTestEnabled() && !t.hasDepth {
		return fmt.Errorf("pipeline %q tests depth but target %q has no depth buffer", p.PipelineKey(), t.label)
	}

	t.mu.Lock()
	if state.Clear {
		c := toRGBA8(state.ClearColor)
		pix := t.color.Pix
		for i := 0; i < len(pix); i += 4 {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c[0], c[1], c[2], c[3]
		}
		for i := range t.depth {
			t.depth[i] = state.ClearDepth
		}
	}
	t.mu.Unlock()

	b.target = t
	b.state = state
	b.pipeline = p
	return nil
}

func (b *softwareRendererBackendImpl) Draw(cmd DrawCommand, prog shading.Program) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.target
	t.mu.Lock()
	defer t.mu.Unlock()

	width, height := t.color.Rect.Dx(), t.color.Rect.Dy()
	vp := cmd.ViewProjection[:]

	pts := make([][2]float32, len(cmd.Polygon))
	minX, minY := float32(math.Inf(1)), float32(math.Inf(1))
	maxX, maxY := float32(math.Inf(-1)), float32(math.Inf(-1))
	for i, v := range cmd.Polygon {
		x, y := clipToPixel(common.TransformPoint(vp, float32(v[0]), float32(v[1]), 0), width, height)
		pts[i] = [2]float32{x, y}
		minX, minY = min(minX, x), min(minY, y)
		maxX, maxY = max(maxX, x), max(maxY, y)
	}
	bbox := image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))),
	).Intersect(passRect(b.state, width, height))
	if bbox.Empty() {
		return false, nil
	}

	coverage := image.NewAlpha(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	b.raster.Reset(bbox.Dx(), bbox.Dy())
	ox, oy := float32(bbox.Min.X), float32(bbox.Min.Y)
	b.raster.MoveTo(pts[0][0]-ox, pts[0][1]-oy)
	for _, p := range pts[1:] {
		b.raster.LineTo(p[0]-ox, p[1]-oy)
	}
	b.raster.ClosePath()
	b.raster.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})

	fs := newFragmentShader(cmd, prog, width, height)
	depthTest := b.pipeline.DepthTestEnabled() && t.hasDepth
	depthWrite := depthTest && b.pipeline.DepthWriteEnabled()
	blend := b.pipeline.BlendEnabled()

	drawn := false
	for y := 0; y < bbox.Dy(); y++ {
		for x := 0; x < bbox.Dx(); x++ {
			if coverage.Pix[coverage.PixOffset(x, y)] < coverageThreshold {
				continue
			}
			px, py := bbox.Min.X+x, bbox.Min.Y+y
			di := py*width + px
			if depthTest && !compareDepth(b.pipeline.DepthCompare(), prog.Depth, t.depth[di]) {
				continue
			}
			color, keep := fs.shade(px, py)
			if !keep {
				continue
			}
			if depthWrite {
				t.depth[di] = prog.Depth
			}
			writePixel(t.color, px, py, color, blend)
			drawn = true
		}
	}
	return drawn, nil
}

func (b *softwareRendererBackendImpl) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = nil
	b.pipeline = nil
	return nil
}

func (b *softwareRendererBackendImpl) Present() {}

func (b *softwareRendererBackendImpl) ReadPixels(target RenderTarget) (common.TextureStagingData, error) {
	t, ok := target.(*softwareTarget)
	if !ok {
		return common.TextureStagingData{}, ErrReadbackUnsupported
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	pix := make([]byte, len(t.color.Pix))
	copy(pix, t.color.Pix)
	return common.TextureStagingData{
		Pixels: pix,
		Width:  uint32(t.color.Rect.Dx()),
		Height: uint32(t.color.Rect.Dy()),
	}, nil
}

func (b *softwareRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.canvas != nil && !b.canvas.Released() {
		_ = b.canvas.Release()
	}
}

// fragmentShader is the CPU counterpart of fs_main in the occlusion program.
type fragmentShader struct {
	cmd     DrawCommand
	prog    shading.Program
	width   int
	height  int
	inverse [16]float32

	// anchored factors are constant across the draw
	collision      float64
	collisionFixed bool
	mask           float64
	maskFixed      bool
}

func newFragmentShader(cmd DrawCommand, prog shading.Program, width, height int) *fragmentShader {
	fs := &fragmentShader{cmd: cmd, prog: prog, width: width, height: height}
	if !common.Invert4(fs.inverse[:], cmd.ViewProjection[:]) {
		common.Identity(fs.inverse[:])
	}
	if f, ok := anchoredFactor(prog.Collision, cmd); ok {
		fs.collision, fs.collisionFixed = f, true
	}
	if f, ok := anchoredFactor(prog.Mask, cmd); ok {
		fs.mask, fs.maskFixed = f, true
	}
	return fs
}

func (fs *fragmentShader) shade(px, py int) ([4]float32, bool) {
	if fs.prog.DrawIdentity {
		return fs.cmd.Identity.Normalized(), true
	}
	color := fs.cmd.Color
	if fs.prog.Collision != nil || fs.prog.Mask != nil {
		world := fs.unproject(px, py)
		color[3] *= float32(fs.factor(fs.prog.Collision, fs.collision, fs.collisionFixed, world))
		color[3] *= float32(fs.factor(fs.prog.Mask, fs.mask, fs.maskFixed, world))
	}
	if color[3] < shading.DiscardThreshold {
		return color, false
	}
	return color, true
}

func (fs *fragmentShader) factor(p *shading.Parameters, fixed float64, isFixed bool, world [2]float32) float64 {
	if p == nil {
		return 1
	}
	if isFixed {
		return fixed
	}
	src, ok := p.Target.(shading.TexelSource)
	if !ok {
		return 1
	}
	texel := common.TransformPoint(p.TexelMatrix[:], world[0], world[1], 0)
	return shading.OcclusionFactor(src, [2]float64{float64(texel[0]), float64(texel[1])}, p.Flags(), fs.cmd.Identity)
}

// unproject maps the center of pixel (px, py) back to common space.
func (fs *fragmentShader) unproject(px, py int) [2]float32 {
	cx := (float32(px)+0.5)/float32(fs.width)*2 - 1
	cy := 1 - (float32(py)+0.5)/float32(fs.height)*2
	p := common.TransformPoint(fs.inverse[:], cx, cy, 0)
	return [2]float32{p[0], p[1]}
}

// anchoredFactor evaluates a consumer sampled at the draw's anchor once for the whole draw.
func anchoredFactor(p *shading.Parameters, cmd DrawCommand) (float64, bool) {
	if p == nil || p.Flags()&shading.FlagAnchor == 0 {
		return 0, false
	}
	src, ok := p.Target.(shading.TexelSource)
	if !ok {
		return 1, true
	}
	texel := common.TransformPoint(p.TexelMatrix[:], float32(cmd.Anchor[0]), float32(cmd.Anchor[1]), 0)
	return shading.OcclusionFactor(src, [2]float64{float64(texel[0]), float64(texel[1])}, p.Flags(), cmd.Identity), true
}

func compareDepth(fn wgpu.CompareFunction, incoming, stored float32) bool {
	switch fn {
	case wgpu.CompareFunctionNever:
		return false
	case wgpu.CompareFunctionLess:
		return incoming < stored
	case wgpu.CompareFunctionEqual:
		return incoming == stored
	case wgpu.CompareFunctionGreater:
		return incoming > stored
	case wgpu.CompareFunctionGreaterEqual:
		return incoming >= stored
	case wgpu.CompareFunctionNotEqual:
		return incoming != stored
	case wgpu.CompareFunctionAlways:
		return true
	default:
		return incoming <= stored
	}
}

func writePixel(dst *image.RGBA, x, y int, c [4]float32, blend bool) {
	i := dst.PixOffset(x, y)
	p := dst.Pix[i : i+4 : i+4]
	if !blend {
		v := toRGBA8(c)
		p[0], p[1], p[2], p[3] = v[0], v[1], v[2], v[3]
		return
	}
	a := clamp01(c[3])
	inv := 1 - a
	for k := 0; k < 3; k++ {
		p[k] = uint8(math.Round(float64(clamp01(c[k])*a*255 + float32(p[k])*inv)))
	}
	p[3] = uint8(math.Round(float64(a*255 + float32(p[3])*inv)))
}

func toRGBA8(c [4]float32) [4]uint8 {
	var out [4]uint8
	for i, v := range c {
		out[i] = uint8(math.Round(float64(clamp01(v) * 255)))
	}
	return out
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
