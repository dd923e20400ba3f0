// Package shading holds the per-item draw contract shared by identity passes and the main pass:
// which role an item plays for an effect, the parameters published for that role, and the
// window-sampling test that turns an identity map into a visibility factor.
package shading

import (
	"math"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

const (
	// WindowRadius is the half-size of the square sampled around a texel.
	WindowRadius = 2
	// WindowSize is the side of the sampled square (5x5).
	WindowSize = 2*WindowRadius + 1
	// Gamma biases the averaged match ratio towards fully visible or fully hidden.
	Gamma = 2.2
	// DiscardThreshold is the opacity below which fragments are dropped instead of blended.
	DiscardThreshold = 0.01
	// IdentityTolerance is the per-channel tolerance, in normalized units, for identity matches.
	IdentityTolerance = 1.0 / 512
	// PriorityRange is the priority magnitude mapped onto the full depth range.
	PriorityRange = 1000.0
	// UniformDepth is the depth written by sources without a priority accessor.
	UniformDepth = 0.5
)

// Role is the part an item plays for one effect during one frame.
type Role int

const (
	// RoleNone items are unaffected by the effect.
	RoleNone Role = iota
	// RoleSource items paint their identity into the effect's buffer and are not visibly drawn by that pass.
	RoleSource
	// RoleConsumer items sample the effect's buffer to fade their own fragments.
	RoleConsumer
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleConsumer:
		return "consumer"
	default:
		return "none"
	}
}

// Kind identifies which identity map slot a consumer samples.
type Kind int

const (
	// KindCollision maps are sampled once at the item's anchor and match identity colors.
	KindCollision Kind = iota
	// KindMask maps are sampled per fragment and match any coverage.
	KindMask
)

// Flags packs the per-slot sampling switches shared with the shader.
type Flags uint32

const (
	FlagEnabled  Flags = 1 << 0
	FlagAnchor   Flags = 1 << 1
	FlagCoverage Flags = 1 << 2
)

// Texture is a GPU resource an identity map lives in. Render targets implement it.
type Texture interface {
	Label() string
	Width() int
	Height() int
}

// TexelSource is implemented by textures whose pixels can be read on the CPU.
type TexelSource interface {
	Texture
	// Texel returns the RGBA value at (x, y). Coordinates are inside the texture.
	Texel(x, y int) [4]uint8
}

// Parameters is what one effect publishes for one item's draw call.
type Parameters struct {
	Role    Role
	Kind    Kind
	Channel string

	// Enabled is false when the consumer must draw fully visible, e.g. its channel has no buffer.
	Enabled bool
	// Target is the identity map to bind. Never nil once published; the dummy target stands in.
	Target Texture
	// TexelMatrix maps common space to texel coordinates of Target.
	TexelMatrix [16]float32

	Bounds           common.Bounds
	CoordinateOrigin [2]float64
	CoordinateSystem viewport.CoordinateSystem

	Identity common.IdentityColor
	// DrawIdentity replaces color computation by the flat identity color.
	DrawIdentity bool
	// Depth is the encoded priority written by a source.
	Depth float32

	SampleAtAnchor bool
	CoverageOnly   bool
}

// Flags returns the sampling switches for a consumer.
func (p *Parameters) Flags() Flags {
	if p == nil || p.Role != RoleConsumer || !p.Enabled {
		return 0
	}
	f := FlagEnabled
	if p.SampleAtAnchor {
		f |= FlagAnchor
	}
	if p.CoverageOnly {
		f |= FlagCoverage
	}
	return f
}

// Program is the resolved per-draw behavior after folding every effect's parameters.
type Program struct {
	DrawIdentity bool
	Depth        float32
	Collision    *Parameters
	Mask         *Parameters
}

// Resolve folds the parameters several effects published for one draw into a single program.
// A source role wins over consumers: identity writes never sample.
//
// Parameters:
//   - params: the per-effect parameters
//
// Returns:
//   - Program: the resolved program
func Resolve(params []Parameters) Program {
	prog := Program{Depth: UniformDepth}
	for i := range params {
		p := &params[i]
		switch p.Role {
		case RoleSource:
			prog.DrawIdentity = p.DrawIdentity
			prog.Depth = p.Depth
		case RoleConsumer:
			if p.Kind == KindMask {
				prog.Mask = p
			} else {
				prog.Collision = p
			}
		}
	}
	if prog.DrawIdentity {
		prog.Collision, prog.Mask = nil, nil
	}
	return prog
}

// EncodePriorityDepth maps a priority into [0, 1] depth so that a LessEqual depth test lets the
// numerically greater priority win. Priorities beyond ±PriorityRange saturate.
//
// Parameters:
//   - priority: the priority value
//   - ok: false when the item has no priority accessor
//
// Returns:
//   - float32: the depth to write
func EncodePriorityDepth(priority float64, ok bool) float32 {
	if !ok || math.IsNaN(priority) {
		return UniformDepth
	}
	d := UniformDepth - priority/(2*PriorityRange)
	return float32(math.Max(0, math.Min(1, d)))
}

// OcclusionFactor is the CPU form of the shader's window test. It samples a WindowSize square of
// texels around texel (clamped to the texture), counts the samples matching the identity (or any
// coverage when FlagCoverage is set), and returns the match ratio raised to Gamma.
// A source without FlagEnabled is not consulted and yields 1.
//
// Parameters:
//   - src: the identity map
//   - texel: the texel-space coordinate to test
//   - flags: sampling switches
//   - identity: the identity of the sampling item
//
// Returns:
//   - float64: the visibility factor in [0, 1]
func OcclusionFactor(src TexelSource, texel [2]float64, flags Flags, identity common.IdentityColor) float64 {
	if flags&FlagEnabled == 0 || src == nil {
		return 1
	}
	w, h := src.Width(), src.Height()
	if w <= 0 || h <= 0 {
		return 1
	}
	cx, cy := int(math.Floor(texel[0])), int(math.Floor(texel[1]))
	want := identity.Normalized()
	hits := 0
	for dy := -WindowRadius; dy <= WindowRadius; dy++ {
		for dx := -WindowRadius; dx <= WindowRadius; dx++ {
			x := clampInt(cx+dx, 0, w-1)
			y := clampInt(cy+dy, 0, h-1)
			if texelMatches(src.Texel(x, y), flags, want) {
				hits++
			}
		}
	}
	return math.Pow(float64(hits)/float64(WindowSize*WindowSize), Gamma)
}

// texelMatches compares one sample against the wanted identity.
func texelMatches(s [4]uint8, flags Flags, want [4]float32) bool {
	if s[3] == 0 {
		return false
	}
	if flags&FlagCoverage != 0 {
		return true
	}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(s[i])/255-float64(want[i])) > IdentityTolerance {
			return false
		}
	}
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
