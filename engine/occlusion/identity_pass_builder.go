package occlusion

// IdentityPassBuilderOption is a functional option applied to an identity pass during construction via NewIdentityPass.
type IdentityPassBuilderOption func(*identityPass)

// WithPassLabel sets the label of the pass and of its target.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - IdentityPassBuilderOption: a function that applies the label to a pass
func WithPassLabel(label string) IdentityPassBuilderOption {
	return func(p *identityPass) {
		if label != "" {
			p.label = label
		}
	}
}

// WithPassSize sets the initial target size. Sizes below 1 are ignored.
//
// Parameters:
//   - width, height: the size in pixels
//
// Returns:
//   - IdentityPassBuilderOption: a function that applies the size to a pass
func WithPassSize(width, height int) IdentityPassBuilderOption {
	return func(p *identityPass) {
		if width > 0 && height > 0 {
			p.pendingWidth, p.pendingHeight = width, height
		}
	}
}

// WithPassDepthTest selects priority ordering through a depth buffer (true, the default) or
// plain coverage (false).
//
// Parameters:
//   - enabled: whether the pass depth-tests
//
// Returns:
//   - IdentityPassBuilderOption: a function that applies the depth option to a pass
func WithPassDepthTest(enabled bool) IdentityPassBuilderOption {
	return func(p *identityPass) {
		p.depthTest = enabled
	}
}
