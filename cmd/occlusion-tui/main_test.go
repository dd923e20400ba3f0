package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

func TestIsolatedLabelStaysVisible(t *testing.T) {
	const width, height = 120, 80
	tests := []struct {
		name      string
		size      float64
		downscale int
	}{
		{"narrowest label", 6, occlusion.DefaultDownscale},
		{"widest label", 15, occlusion.DefaultDownscale},
		{"full resolution", 6, 1},
		{"coarse identity map", 6, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithCanvasSize(width, height))
			if err != nil {
				t.Fatalf("NewRenderer: %v", err)
			}
			t.Cleanup(r.Release)
			e, err := occlusion.NewEffect(r, occlusion.WithLabel("labels"), occlusion.WithDownscale(tt.downscale))
			if err != nil {
				t.Fatalf("NewEffect: %v", err)
			}
			t.Cleanup(e.Cleanup)

			vp := viewport.NewViewport(viewport.WithSize(width, height), viewport.WithCenter(width/2, height/2))
			label := newLabel(1000, 61, 41, tt.size, 50, "#ff8000", tt.downscale)
			err = e.PreRender(occlusion.FrameInputs{
				Items:        []drawable.Drawable{label},
				Viewports:    []viewport.Viewport{vp},
				CanvasWidth:  width,
				CanvasHeight: height,
			})
			if err != nil {
				t.Fatalf("PreRender: %v", err)
			}

			p := e.ShadingParameters(label, occlusion.PassMain)
			if !p.Enabled {
				t.Fatal("labels channel not sampled")
			}
			src, ok := p.Target.(shading.TexelSource)
			if !ok {
				t.Fatalf("target %T cannot be read on the CPU", p.Target)
			}
			a := label.Anchor(vp)
			texel := common.TransformPoint(p.TexelMatrix[:], float32(a[0]), float32(a[1]), 0)
			f := shading.OcclusionFactor(src, [2]float64{float64(texel[0]), float64(texel[1])}, p.Flags(), label.IdentityColor())
			if f != 1 {
				t.Errorf("isolated label factor = %v, want 1", f)
			}
		})
	}
}

func TestLabelPadding(t *testing.T) {
	tests := []struct {
		downscale int
		want      float64
	}{
		{0, 4},
		{1, 4},
		{2, 8},
		{4, 16},
	}
	for _, tt := range tests {
		if got := labelPadding(tt.downscale); got != tt.want {
			t.Errorf("labelPadding(%d) = %v, want %v", tt.downscale, got, tt.want)
		}
	}
}
