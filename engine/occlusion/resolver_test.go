package occlusion

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

func pixelViewport(w, h int) viewport.Viewport {
	return viewport.NewViewport(
		viewport.WithSize(w, h),
		viewport.WithCenter(float64(w)/2, float64(h)/2),
	)
}

func near(a, b [2]float64) bool {
	return math.Abs(a[0]-b[0]) < 1e-6 && math.Abs(a[1]-b[1]) < 1e-6
}

func TestBuildMiniViewportDegenerate(t *testing.T) {
	vp := pixelViewport(100, 100)
	tests := []struct {
		name   string
		bounds common.Bounds
		w, h   int
	}{
		{"point", common.Bounds{10, 10, 10, 10}, 64, 64},
		{"zero width", common.Bounds{10, 0, 10, 20}, 64, 64},
		{"inverted", common.Bounds{20, 20, 10, 10}, 64, 64},
		{"border only target", common.Bounds{0, 0, 10, 10}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mini, err := BuildMiniViewport(tt.bounds, vp, tt.w, tt.h, 0)
			if err != nil || mini != nil {
				t.Errorf("BuildMiniViewport() = %v, %v, want nil, nil", mini, err)
			}
		})
	}
}

func TestBuildMiniViewportGlobe(t *testing.T) {
	vp := viewport.NewViewport(viewport.WithFamily(viewport.FamilyGlobe))
	mini, err := BuildMiniViewport(common.Bounds{0, 0, 10, 10}, vp, 64, 64, 0)
	if !errors.Is(err, ErrUnsupportedProjection) || mini != nil {
		t.Errorf("BuildMiniViewport() = %v, %v", mini, err)
	}
}

func TestBuildMiniViewportFit(t *testing.T) {
	vp := pixelViewport(200, 100)
	mini, err := BuildMiniViewport(common.Bounds{0, 0, 100, 50}, vp, 102, 52, 0)
	if err != nil || mini == nil {
		t.Fatalf("BuildMiniViewport() = %v, %v", mini, err)
	}
	tests := []struct {
		name  string
		world [2]float64
		texel [2]float64
	}{
		{"min corner", [2]float64{0, 0}, [2]float64{1, 1}},
		{"max corner", [2]float64{100, 50}, [2]float64{101, 51}},
		{"center", [2]float64{50, 25}, [2]float64{51, 26}},
	}
	m := mini.TexelMatrix()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mini.Project(tt.world); !near(got, tt.texel) {
				t.Errorf("Project() = %v, want %v", got, tt.texel)
			}
			p := common.TransformPoint(m[:], float32(tt.world[0]), float32(tt.world[1]), 0)
			if got := [2]float64{float64(p[0]), float64(p[1])}; !near(got, tt.texel) {
				t.Errorf("TexelMatrix maps to %v, want %v", got, tt.texel)
			}
		})
	}
	if got := mini.TexCoord([2]float64{50, 25}); !near(got, [2]float64{0.5, 0.5}) {
		t.Errorf("TexCoord(center) = %v", got)
	}
	if got, want := mini.Interior(), (common.Bounds{1, 1, 101, 51}); got != want {
		t.Errorf("Interior() = %v, want %v", got, want)
	}
	if got, want := mini.TextureBounds(), (common.Bounds{1, 1, 101, 51}); got != want {
		t.Errorf("TextureBounds() = %v, want %v", got, want)
	}
}

func TestBuildMiniViewportMaxScale(t *testing.T) {
	vp := pixelViewport(100, 100)
	mini, err := BuildMiniViewport(common.Bounds{0, 0, 1e-6, 1e-6}, vp, 64, 64, 4)
	if err != nil || mini == nil {
		t.Fatalf("BuildMiniViewport() = %v, %v", mini, err)
	}
	if got := mini.PixelsPerUnit(); math.Abs(got-4) > 1e-9 {
		t.Errorf("PixelsPerUnit() = %v, want 4", got)
	}
}

func TestBuildMiniViewportMercatorKeepsBearing(t *testing.T) {
	vp := viewport.NewViewport(
		viewport.WithFamily(viewport.FamilyWebMercator),
		viewport.WithSize(200, 200),
		viewport.WithZoom(3),
		viewport.WithBearing(30),
	)
	mini, err := BuildMiniViewport(vp.Bounds(), vp, 102, 102, 0)
	if err != nil || mini == nil {
		t.Fatalf("BuildMiniViewport() = %v, %v", mini, err)
	}
	if mini.Bearing() != 30 {
		t.Errorf("Bearing() = %v, want 30", mini.Bearing())
	}
	if got, want := mini.PixelsPerUnit(), vp.PixelsPerUnit()*0.5; math.Abs(got-want) > 1e-9 {
		t.Errorf("PixelsPerUnit() = %v, want %v", got, want)
	}
	for _, corner := range [][2]float64{{0, 0}, {200, 0}, {0, 200}, {200, 200}} {
		px := mini.Project(vp.Unproject(corner))
		if px[0] < 1-1e-6 || px[0] > 101+1e-6 || px[1] < 1-1e-6 || px[1] > 101+1e-6 {
			t.Errorf("viewport corner %v lands at texel %v, outside the interior", corner, px)
		}
	}
}

func TestComputeChannelBounds(t *testing.T) {
	vp := pixelViewport(100, 100)
	members := []Member{
		{ScreenBounds: common.Bounds{10, 10, 20, 20}},
		{ScreenBounds: common.Bounds{-50, -50, 5, 5}},
	}
	tests := []struct {
		name   string
		policy BoundsPolicy
		want   common.Bounds
	}{
		{"full viewport", BoundsFullViewport, common.Bounds{0, 0, 100, 100}},
		{"fitted", BoundsFitted(0), common.Bounds{0, 0, 20, 20}},
		{"fitted quantized", BoundsFitted(0.25), common.Bounds{0, 0, 25, 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeChannelBounds(members, vp, tt.policy); got != tt.want {
				t.Errorf("ComputeChannelBounds() = %v, want %v", got, tt.want)
			}
		})
	}

	offscreen := []Member{{ScreenBounds: common.Bounds{200, 200, 210, 210}}}
	if got := ComputeChannelBounds(offscreen, vp, BoundsFitted(0)); got.Valid() {
		t.Errorf("off-screen members gave %v", got)
	}
}
