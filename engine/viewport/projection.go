package viewport

import (
	"math"
)

// ProjectionFamily identifies how a viewport maps positions to the screen.
type ProjectionFamily int

const (
	// FamilyOrthographic is a flat cartesian projection.
	FamilyOrthographic ProjectionFamily = iota
	// FamilyWebMercator is the flat geospatial projection used by slippy maps.
	FamilyWebMercator
	// FamilyGlobe renders positions on a sphere. It is not planar.
	FamilyGlobe
)

// String returns the family name.
func (f ProjectionFamily) String() string {
	switch f {
	case FamilyOrthographic:
		return "orthographic"
	case FamilyWebMercator:
		return "web-mercator"
	case FamilyGlobe:
		return "globe"
	default:
		return "unknown"
	}
}

// CoordinateSystem tags how an item's positions are expressed.
type CoordinateSystem int

const (
	// CoordinateCartesian positions are common-space units added to the item's origin.
	CoordinateCartesian CoordinateSystem = iota
	// CoordinateLngLat positions are [longitude, latitude] in degrees. The origin is ignored.
	CoordinateLngLat
	// CoordinateMeterOffsets positions are metres east/north of an origin given in [lng, lat].
	CoordinateMeterOffsets
)

// String returns the coordinate system name.
func (c CoordinateSystem) String() string {
	switch c {
	case CoordinateCartesian:
		return "cartesian"
	case CoordinateLngLat:
		return "lnglat"
	case CoordinateMeterOffsets:
		return "meter-offsets"
	default:
		return "unknown"
	}
}

const (
	// TileSize is the width in common units of the whole mercator world at zoom 0.
	TileSize = 512.0
	// EarthCircumference is the equatorial circumference in metres.
	EarthCircumference = 40075016.686
	// MaxLatitude is the latitude at which the mercator world becomes square.
	MaxLatitude = 85.051129
)

// LngLatToWorld projects a longitude/latitude pair (degrees) into mercator common space.
// Common space is y-down with the whole world spanning [0, TileSize] on both axes.
//
// Parameters:
//   - lng, lat: the position in degrees
//
// Returns:
//   - x, y: the common-space position
func LngLatToWorld(lng, lat float64) (x, y float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	lambda := lng * math.Pi / 180
	phi := lat * math.Pi / 180
	x = TileSize * (lambda + math.Pi) / (2 * math.Pi)
	y = TileSize * (math.Pi - math.Log(math.Tan(math.Pi/4+phi/2))) / (2 * math.Pi)
	return x, y
}

// WorldToLngLat is the inverse of LngLatToWorld.
//
// Parameters:
//   - x, y: the common-space position
//
// Returns:
//   - lng, lat: the position in degrees
func WorldToLngLat(x, y float64) (lng, lat float64) {
	lambda := x/TileSize*2*math.Pi - math.Pi
	phi := 2 * (math.Atan(math.Exp(math.Pi-y/TileSize*2*math.Pi)) - math.Pi/4)
	return lambda * 180 / math.Pi, phi * 180 / math.Pi
}

// UnitsPerMeter returns how many mercator common units one metre spans at the given latitude.
func UnitsPerMeter(lat float64) float64 {
	return TileSize / EarthCircumference / math.Cos(lat*math.Pi/180)
}

// projectPosition converts a position in the given coordinate system into common space for a projection family.
func projectPosition(family ProjectionFamily, pos [2]float64, system CoordinateSystem, origin [2]float64) [2]float64 {
	if family == FamilyOrthographic {
		return [2]float64{origin[0] + pos[0], origin[1] + pos[1]}
	}
	switch system {
	case CoordinateLngLat:
		x, y := LngLatToWorld(pos[0], pos[1])
		return [2]float64{x, y}
	case CoordinateMeterOffsets:
		ox, oy := LngLatToWorld(origin[0], origin[1])
		k := UnitsPerMeter(origin[1])
		return [2]float64{ox + pos[0]*k, oy - pos[1]*k}
	default:
		return [2]float64{origin[0] + pos[0], origin[1] + pos[1]}
	}
}
