package scene

import (
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/occlusion"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithItems adds initial items to the scene.
//
// Parameters:
//   - items: the items to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithItems(items ...drawable.Drawable) SceneBuilderOption {
	return func(s *scene) {
		for _, item := range items {
			if item != nil {
				s.items = append(s.items, item)
			}
		}
	}
}

// WithEffects adds occlusion effects to the scene, run in the given order.
//
// Parameters:
//   - effects: the effects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithEffects(effects ...occlusion.Effect) SceneBuilderOption {
	return func(s *scene) {
		for _, e := range effects {
			if e != nil {
				s.effects = append(s.effects, e)
			}
		}
	}
}

// WithPrepWorkers sets the number of worker goroutines used for per-item footprint prep.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of prep workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPrepWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.prepWorkers = max(n, 1)
	}
}

// WithPrepChunk sets how many items one prep task handles. Defaults to 256.
//
// Parameters:
//   - n: items per task (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPrepChunk(n int) SceneBuilderOption {
	return func(s *scene) {
		s.prepChunk = max(n, 1)
	}
}

// WithBackground sets the canvas clear color.
//
// Parameters:
//   - color: RGBA in [0, 1]
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBackground(color [4]float32) SceneBuilderOption {
	return func(s *scene) {
		s.background = color
	}
}
