package common

import (
	"math"
	"unsafe"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// PixelToClip builds the matrix that maps pixel coordinates of a width x height surface
// (origin top-left, y down) to WebGPU clip space (x right, y up, z passthrough).
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - width, height: surface size in pixels (must be > 0)
func PixelToClip(out []float32, width, height float32) {
	Identity(out)
	out[0] = 2 / width
	out[5] = -2 / height
	out[12] = -1
	out[13] = 1
}

// ScaleTranslate2D builds a column-major matrix applying a uniform 2D rotation, scale and
// translation: p' = R(angle) * (p - center) * scale + offset. Z and W pass through.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - centerX, centerY: the point mapped onto offset
//   - scale: uniform scale factor
//   - angle: rotation in radians (counter-clockwise on screen)
//   - offsetX, offsetY: translation applied after scaling
func ScaleTranslate2D(out []float32, centerX, centerY, scale, angle, offsetX, offsetY float64) {
	c := math.Cos(angle) * scale
	s := math.Sin(angle) * scale
	Identity(out)
	out[0] = float32(c)
	out[1] = float32(-s)
	out[4] = float32(s)
	out[5] = float32(c)
	out[12] = float32(offsetX - (c*centerX + s*centerY))
	out[13] = float32(offsetY - (-s*centerX + c*centerY))
}

// TransformPoint applies a column-major 4x4 matrix to the point (x, y, z, 1) and returns the
// perspective-divided result.
//
// Parameters:
//   - m: the matrix (16 elements)
//   - x, y, z: the point to transform
//
// Returns:
//   - [3]float32: the transformed point
func TransformPoint(m []float32, x, y, z float32) [3]float32 {
	tx := m[0]*x + m[4]*y + m[8]*z + m[12]
	ty := m[1]*x + m[5]*y + m[9]*z + m[13]
	tz := m[2]*x + m[6]*y + m[10]*z + m[14]
	tw := m[3]*x + m[7]*y + m[11]*z + m[15]
	if tw != 0 && tw != 1 {
		tx /= tw
		ty /= tw
		tz /= tw
	}
	return [3]float32{tx, ty, tz}
}

// Invert4 computes the inverse of a 4x4 column-major matrix using the Laplace
// expansion (cofactor) method. If the matrix is singular (determinant ≈ 0) the
// output is left unchanged and the function returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was successfully inverted, false if singular
func Invert4(out, m []float32) bool {
	// 2x2 sub-determinants of the upper-left and lower-right quadrants.
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return false
	}

	invDet := 1.0 / det

	out[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	out[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	out[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	out[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	out[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	out[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	out[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	out[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	out[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	out[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	out[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	out[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	out[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	out[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	out[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	out[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet

	return true
}

// Triangulate splits a simple polygon into triangles by ear clipping. Either winding is accepted.
// Degenerate input (fewer than three vertices) yields nil. If clipping stalls on a
// self-intersecting outline the remaining vertices are fanned.
//
// Parameters:
//   - poly: the polygon outline
//
// Returns:
//   - [][2]float64: triangle vertices, three per triangle
func Triangulate(poly [][2]float64) [][2]float64 {
	n := len(poly)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if signedArea(poly) < 0 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}

	out := make([][2]float64, 0, (n-2)*3)
	for guard := 0; len(idx) > 3 && guard < n*n; guard++ {
		clipped := false
		for i := range idx {
			a := poly[idx[(i+len(idx)-1)%len(idx)]]
			b := poly[idx[i]]
			c := poly[idx[(i+1)%len(idx)]]
			if cross(a, b, c) <= 0 || anyInside(poly, idx, a, b, c) {
				continue
			}
			out = append(out, a, b, c)
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			break
		}
	}
	for i := 1; i+1 < len(idx); i++ {
		out = append(out, poly[idx[0]], poly[idx[i]], poly[idx[i+1]])
	}
	return out
}

func signedArea(poly [][2]float64) float64 {
	a := 0.0
	for i := range poly {
		p, q := poly[i], poly[(i+1)%len(poly)]
		a += p[0]*q[1] - q[0]*p[1]
	}
	return a / 2
}

func cross(a, b, c [2]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func anyInside(poly [][2]float64, idx []int, a, b, c [2]float64) bool {
	for _, k := range idx {
		p := poly[k]
		if p == a || p == b || p == c {
			continue
		}
		if cross(a, b, p) >= 0 && cross(b, c, p) >= 0 && cross(c, a, p) >= 0 {
			return true
		}
	}
	return false
}
