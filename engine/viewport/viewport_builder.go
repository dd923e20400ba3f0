package viewport

type ViewportBuilderOption func(*viewportImpl)

// WithID sets the viewport identifier.
//
// Parameters:
//   - id: the identifier
//
// Returns:
//   - ViewportBuilderOption: a function that sets the identifier
func WithID(id string) ViewportBuilderOption {
	return func(v *viewportImpl) {
		v.id = id
	}
}

// WithFamily sets the projection family.
//
// Parameters:
//   - family: the projection family
//
// Returns:
//   - ViewportBuilderOption: a function that sets the family
func WithFamily(family ProjectionFamily) ViewportBuilderOption {
	return func(v *viewportImpl) {
		v.family = family
	}
}

// WithSize sets the surface size in pixels. Values below 1 are clamped to 1.
//
// Parameters:
//   - width, height: the surface size
//
// Returns:
//   - ViewportBuilderOption: a function that sets the size
func WithSize(width, height int) ViewportBuilderOption {
	return func(v *viewportImpl) {
		v.width = width
		v.height = height
	}
}

// WithCenter sets the common-space position shown at the middle of the surface.
//
// Parameters:
//   - x, y: the common-space center
//
// Returns:
//   - ViewportBuilderOption: a function that sets the center
func WithCenter(x, y float64) ViewportBuilderOption {
	return func(v *viewportImpl) {
		v.center = [2]float64{x, y}
	}
}

// WithLngLat centers a geospatial viewport on a longitude/latitude in degrees.
//
// Parameters:
//   - lng, lat: the center in degrees
//
// Returns:
//   - ViewportBuilderOption: a function that sets the center
func WithLngLat(lng, lat float64) ViewportBuilderOption {
	return func(v *viewportImpl) {
		x, y := LngLatToWorld(lng, lat)
		v.center = [2]float64{x, y}
	}
}

// WithZoom sets the zoom level.
//
// Parameters:
//   - zoom: the zoom level, one common unit spans 2^zoom pixels
//
// Returns:
//   - ViewportBuilderOption: a function that sets the zoom
func WithZoom(zoom float64) ViewportBuilderOption {
	return func(v *viewportImpl) {
		v.zoom = zoom
	}
}

// WithBearing sets the map rotation in degrees, clockwise.
//
// Parameters:
//   - bearing: the rotation in degrees
//
// Returns:
//   - ViewportBuilderOption: a function that sets the bearing
func WithBearing(bearing float64) ViewportBuilderOption {
	return func(v *viewportImpl) {
		v.bearing = bearing
	}
}
