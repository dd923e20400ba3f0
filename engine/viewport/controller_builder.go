package viewport

type ControllerBuilderOption func(*controllerImpl)

// WithControllerID sets the identifier given to every produced viewport.
//
// Parameters:
//   - id: the identifier
//
// Returns:
//   - ControllerBuilderOption: a function that sets the identifier
func WithControllerID(id string) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.id = id
	}
}

// WithProjection sets the projection family of produced viewports.
//
// Parameters:
//   - family: the projection family
//
// Returns:
//   - ControllerBuilderOption: a function that sets the family
func WithProjection(family ProjectionFamily) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.family = family
	}
}

// WithInitialView sets the starting center, zoom and bearing.
//
// Parameters:
//   - x, y: the common-space center
//   - zoom: the zoom level
//   - bearing: the rotation in degrees
//
// Returns:
//   - ControllerBuilderOption: a function that sets the initial view
func WithInitialView(x, y, zoom, bearing float64) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.center = [2]float64{x, y}
		c.zoom = zoom
		c.bearing = bearing
	}
}

// WithSurfaceSize sets the starting surface size in pixels.
//
// Parameters:
//   - width, height: the surface size
//
// Returns:
//   - ControllerBuilderOption: a function that sets the size
func WithSurfaceSize(width, height int) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.width = width
		c.height = height
	}
}

// WithZoomRange sets the allowed zoom range.
//
// Parameters:
//   - minZoom, maxZoom: the zoom limits
//
// Returns:
//   - ControllerBuilderOption: a function that sets the zoom range
func WithZoomRange(minZoom, maxZoom float64) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.minZoom = minZoom
		c.maxZoom = maxZoom
	}
}

// WithZoomSpeed sets the zoom change applied per ZoomAt step.
//
// Parameters:
//   - speed: zoom levels per step
//
// Returns:
//   - ControllerBuilderOption: a function that sets the zoom speed
func WithZoomSpeed(speed float64) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.zoomSpeed = speed
	}
}

// WithRotateSpeed sets the bearing change in degrees applied per Rotate step.
//
// Parameters:
//   - speed: degrees per step
//
// Returns:
//   - ControllerBuilderOption: a function that sets the rotate speed
func WithRotateSpeed(speed float64) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.rotateSpeed = speed
	}
}
