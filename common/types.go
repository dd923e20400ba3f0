// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Bounds is an axis-aligned rectangle stored as [minX, minY, maxX, maxY].
// Depending on context the values are screen pixels or common-space units; the zero value is degenerate.
type Bounds [4]float64

// Valid reports whether the bounds enclose a non-zero, finite area.
//
// Returns:
//   - bool: true if maxX > minX and maxY > minY and every component is finite
func (b Bounds) Valid() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[2] > b[0] && b[3] > b[1]
}

// Width returns maxX - minX.
func (b Bounds) Width() float64 { return b[2] - b[0] }

// Height returns maxY - minY.
func (b Bounds) Height() float64 { return b[3] - b[1] }

// Center returns the centroid of the rectangle.
func (b Bounds) Center() (float64, float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// Union returns the smallest rectangle containing both b and o. A degenerate operand is ignored.
//
// Parameters:
//   - o: the other rectangle
//
// Returns:
//   - Bounds: the union of both rectangles
func (b Bounds) Union(o Bounds) Bounds {
	if !b.Valid() {
		return o
	}
	if !o.Valid() {
		return b
	}
	return Bounds{
		math.Min(b[0], o[0]),
		math.Min(b[1], o[1]),
		math.Max(b[2], o[2]),
		math.Max(b[3], o[3]),
	}
}

// Intersect returns the overlap of b and o. The result is degenerate when they do not overlap.
//
// Parameters:
//   - o: the other rectangle
//
// Returns:
//   - Bounds: the intersection of both rectangles
func (b Bounds) Intersect(o Bounds) Bounds {
	return Bounds{
		math.Max(b[0], o[0]),
		math.Max(b[1], o[1]),
		math.Min(b[2], o[2]),
		math.Min(b[3], o[3]),
	}
}

// Expand grows the rectangle so it contains the point (x, y).
//
// Parameters:
//   - x, y: the point to include
//
// Returns:
//   - Bounds: the grown rectangle
func (b Bounds) Expand(x, y float64) Bounds {
	return Bounds{math.Min(b[0], x), math.Min(b[1], y), math.Max(b[2], x), math.Max(b[3], y)}
}

// BoundsOf returns the smallest rectangle containing every point, or the zero value for no points.
//
// Parameters:
//   - points: the points to enclose
//
// Returns:
//   - Bounds: the enclosing rectangle
func BoundsOf(points ...[2]float64) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{points[0][0], points[0][1], points[0][0], points[0][1]}
	for _, p := range points[1:] {
		b = b.Expand(p[0], p[1])
	}
	return b
}

// Quantize snaps the rectangle outwards to a grid of the given cell size, so that small movements
// of the contents do not change the result. A non-positive cell size returns b unchanged.
//
// Parameters:
//   - cell: the grid cell size
//
// Returns:
//   - Bounds: the snapped rectangle
func (b Bounds) Quantize(cell float64) Bounds {
	if cell <= 0 {
		return b
	}
	return Bounds{
		math.Floor(b[0]/cell) * cell,
		math.Floor(b[1]/cell) * cell,
		math.Ceil(b[2]/cell) * cell,
		math.Ceil(b[3]/cell) * cell,
	}
}

// Contains reports whether the point lies inside the rectangle (max edges exclusive).
func (b Bounds) Contains(x, y float64) bool {
	return x >= b[0] && x < b[2] && y >= b[1] && y < b[3]
}

// IdentityColor is the 24-bit RGB value that tags an item's pixels in an identity render target.
// The zero value never identifies an item, since cleared targets read back as zero.
type IdentityColor [3]uint8

// MaxIdentityID is the largest id IdentityFromID maps to a distinct color. Larger ids wrap around
// and share colors with smaller ones, so overlapping items with such ids cannot occlude each other.
const MaxIdentityID = 0xFFFFFE

// IdentityFromID derives the identity color for a numeric item id. Ids are offset by one so that id 0
// still maps to a non-zero color. Ids above MaxIdentityID wrap modulo MaxIdentityID+1.
//
// Parameters:
//   - id: the item id
//
// Returns:
//   - IdentityColor: the packed 24-bit color, never zero
func IdentityFromID(id uint32) IdentityColor {
	v := id%(MaxIdentityID+1) + 1
	return IdentityColor{uint8(v >> 16), uint8(v >> 8), uint8(v)}
}

// ParseIdentityColor parses a "#rrggbb" hex string into an identity color.
//
// Parameters:
//   - hex: the color string
//
// Returns:
//   - IdentityColor: the parsed color
//   - error: error if the string is not a valid hex color or encodes black
func ParseIdentityColor(hex string) (IdentityColor, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return IdentityColor{}, fmt.Errorf("failed to parse identity color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	id := IdentityColor{r, g, b}
	if id.IsZero() {
		return IdentityColor{}, fmt.Errorf("identity color %q is reserved for empty pixels", hex)
	}
	return id, nil
}

// IsZero reports whether the color is the reserved empty value.
func (c IdentityColor) IsZero() bool { return c == IdentityColor{} }

// Hex formats the color as "#rrggbb".
func (c IdentityColor) Hex() string {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}.Hex()
}

// Normalized returns the color as RGBA floats in [0, 1] with alpha 1.
func (c IdentityColor) Normalized() [4]float32 {
	return [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, 1}
}

// ParseColor parses a "#rrggbb" string into RGBA floats with alpha 1.
//
// Parameters:
//   - hex: the color string
//
// Returns:
//   - [4]float32: the normalized color
//   - error: error if the string is not a valid hex color
func ParseColor(hex string) ([4]float32, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return [4]float32{}, fmt.Errorf("failed to parse color %q: %w", hex, err)
	}
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), 1}, nil
}

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload or returned from a readback.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// At returns the RGBA texel at (x, y), or zero if the coordinate is outside the texture.
func (t *TextureStagingData) At(x, y int) [4]uint8 {
	if t == nil || x < 0 || y < 0 || x >= int(t.Width) || y >= int(t.Height) {
		return [4]uint8{}
	}
	i := (y*int(t.Width) + x) * 4
	return [4]uint8{t.Pixels[i], t.Pixels[i+1], t.Pixels[i+2], t.Pixels[i+3]}
}
