package shading

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct: one common-space vec2 per vertex.
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUOcclusionParamsSource is the canonical WGSL definition of the OcclusionParams struct.
// Matches GPUOcclusionParams layout exactly (272 bytes, uniform aligned).
//
//go:embed assets/occlusion_params.wgsl
var GPUOcclusionParamsSource string

// OcclusionShaderSource is the shared identity/main-pass program, before pre-processing.
//
//go:embed assets/occlusion.wgsl
var OcclusionShaderSource string

const (
	// ModeColor shades normally and applies consumer fades.
	ModeColor uint32 = 0
	// ModeIdentity writes the flat identity color.
	ModeIdentity uint32 = 1
)

// GPUVertexStride is the byte stride of one VertexInput.
const GPUVertexStride = 8

// GPUOcclusionParams is the GPU-aligned per-draw uniform.
// Matches the WGSL OcclusionParams struct layout exactly (see GPUOcclusionParamsSource).
// Size: 272 bytes.
type GPUOcclusionParams struct {
	ViewProj       [16]float32 // offset   0: common space -> clip (mat4x4<f32>)
	CollisionProj  [16]float32 // offset  64: common space -> collision map texels
	MaskProj       [16]float32 // offset 128: common space -> mask map texels
	Color          [4]float32  // offset 192: visible RGBA color
	Identity       [4]float32  // offset 208: normalized identity color, alpha 1
	Anchor         [2]float32  // offset 224: common-space anchor
	Depth          float32     // offset 232: clip depth written for every vertex
	Mode           uint32      // offset 236: ModeColor or ModeIdentity
	CollisionFlags uint32      // offset 240
	MaskFlags      uint32      // offset 244
	Tolerance      float32     // offset 248
	Gamma          float32     // offset 252
	Threshold      float32     // offset 256
	_pad           [3]float32  // offset 260: padding to 272 bytes
}

// NewGPUOcclusionParams builds the uniform for one draw.
//
// Parameters:
//   - viewProj: the common-space to clip matrix of the pass
//   - color: the visible color
//   - identity: the item's identity color
//   - anchor: the item's common-space anchor
//   - prog: the resolved shading program
//
// Returns:
//   - GPUOcclusionParams: the uniform value
func NewGPUOcclusionParams(viewProj [16]float32, color [4]float32, identity common.IdentityColor, anchor [2]float64, prog Program) GPUOcclusionParams {
	g := GPUOcclusionParams{
		ViewProj:  viewProj,
		Color:     color,
		Identity:  identity.Normalized(),
		Anchor:    [2]float32{float32(anchor[0]), float32(anchor[1])},
		Depth:     prog.Depth,
		Tolerance: IdentityTolerance,
		Gamma:     Gamma,
		Threshold: DiscardThreshold,
	}
	common.Identity(g.CollisionProj[:])
	common.Identity(g.MaskProj[:])
	if prog.DrawIdentity {
		g.Mode = ModeIdentity
		return g
	}
	if prog.Collision != nil {
		g.CollisionProj = prog.Collision.TexelMatrix
		g.CollisionFlags = uint32(prog.Collision.Flags())
	}
	if prog.Mask != nil {
		g.MaskProj = prog.Mask.TexelMatrix
		g.MaskFlags = uint32(prog.Mask.Flags())
	}
	return g
}

// Size returns the size of the GPUOcclusionParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (272)
func (g *GPUOcclusionParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUOcclusionParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUOcclusionParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putF32s := func(offset int, vals []float32) {
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(v))
		}
	}
	putF32s(0, g.ViewProj[:])
	putF32s(64, g.CollisionProj[:])
	putF32s(128, g.MaskProj[:])
	putF32s(192, g.Color[:])
	putF32s(208, g.Identity[:])
	putF32s(224, g.Anchor[:])
	binary.LittleEndian.PutUint32(buf[232:], math.Float32bits(g.Depth))
	binary.LittleEndian.PutUint32(buf[236:], g.Mode)
	binary.LittleEndian.PutUint32(buf[240:], g.CollisionFlags)
	binary.LittleEndian.PutUint32(buf[244:], g.MaskFlags)
	binary.LittleEndian.PutUint32(buf[248:], math.Float32bits(g.Tolerance))
	binary.LittleEndian.PutUint32(buf[252:], math.Float32bits(g.Gamma))
	binary.LittleEndian.PutUint32(buf[256:], math.Float32bits(g.Threshold))
	return buf
}

// MarshalVertices packs common-space vertices as VertexInput values.
//
// Parameters:
//   - verts: the vertices
//
// Returns:
//   - []byte: the vertex buffer contents
func MarshalVertices(verts [][2]float64) []byte {
	buf := make([]byte, len(verts)*GPUVertexStride)
	for i, v := range verts {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(v[0])))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(v[1])))
	}
	return buf
}
