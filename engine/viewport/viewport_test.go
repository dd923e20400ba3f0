package viewport

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
)

func closeTo(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestProjectUnprojectRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		vp   Viewport
	}{
		{"ortho", NewViewport(WithSize(640, 480), WithCenter(10, -5), WithZoom(1.5))},
		{"ortho-rotated", NewViewport(WithSize(640, 480), WithCenter(3, 4), WithZoom(0.5), WithBearing(30))},
		{"mercator", NewViewport(WithFamily(FamilyWebMercator), WithSize(1024, 768), WithLngLat(-122.4, 37.8), WithZoom(12))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, px := range [][2]float64{{0, 0}, {100, 250}, {639, 479}} {
				p := tt.vp.Unproject(px)
				back := tt.vp.Project(p)
				if !closeTo(back[0], px[0], 1e-6) || !closeTo(back[1], px[1], 1e-6) {
					t.Errorf("round trip %v -> %v -> %v", px, p, back)
				}
			}
			c := tt.vp.Project(tt.vp.Center())
			if !closeTo(c[0], float64(tt.vp.Width())/2, 1e-6) || !closeTo(c[1], float64(tt.vp.Height())/2, 1e-6) {
				t.Errorf("center projects to %v", c)
			}
		})
	}
}

func TestViewProjectionMatchesProject(t *testing.T) {
	vp := NewViewport(WithSize(400, 200), WithCenter(50, 50), WithZoom(1), WithBearing(45))
	m := vp.ViewProjectionMatrix()
	p := [2]float64{60, 40}
	px := vp.Project(p)
	clip := common.TransformPoint(m[:], float32(p[0]), float32(p[1]), 0)
	wantX := px[0]/200 - 1
	wantY := 1 - px[1]/100
	if !closeTo(float64(clip[0]), wantX, 1e-4) || !closeTo(float64(clip[1]), wantY, 1e-4) {
		t.Errorf("clip = %v, want (%v, %v)", clip, wantX, wantY)
	}
}

func TestBounds(t *testing.T) {
	vp := NewViewport(WithSize(200, 100), WithCenter(0, 0), WithZoom(1))
	want := common.Bounds{-50, -25, 50, 25}
	got := vp.Bounds()
	for i := range want {
		if !closeTo(got[i], want[i], 1e-9) {
			t.Fatalf("Bounds() = %v, want %v", got, want)
		}
	}

	rotated := NewViewport(WithSize(200, 100), WithZoom(1), WithBearing(90))
	rb := rotated.Bounds()
	if !closeTo(rb.Width(), 50, 1e-9) || !closeTo(rb.Height(), 100, 1e-9) {
		t.Errorf("rotated Bounds() = %v", rb)
	}
}

func TestMercator(t *testing.T) {
	x, y := LngLatToWorld(0, 0)
	if !closeTo(x, TileSize/2, 1e-9) || !closeTo(y, TileSize/2, 1e-9) {
		t.Errorf("null island = (%v, %v)", x, y)
	}
	lng, lat := WorldToLngLat(LngLatToWorld(13.4, 52.5))
	if !closeTo(lng, 13.4, 1e-9) || !closeTo(lat, 52.5, 1e-9) {
		t.Errorf("round trip = (%v, %v)", lng, lat)
	}

	vp := NewViewport(WithFamily(FamilyWebMercator), WithLngLat(0, 0))
	origin := [2]float64{0, 0}
	east := vp.ProjectPosition([2]float64{1000, 0}, CoordinateMeterOffsets, origin)
	north := vp.ProjectPosition([2]float64{0, 1000}, CoordinateMeterOffsets, origin)
	k := UnitsPerMeter(0) * 1000
	if !closeTo(east[0]-TileSize/2, k, 1e-9) {
		t.Errorf("east offset = %v, want %v", east[0]-TileSize/2, k)
	}
	if !closeTo(TileSize/2-north[1], k, 1e-9) {
		t.Errorf("north offset = %v, want %v", TileSize/2-north[1], k)
	}
}

func TestPlanarAndEqual(t *testing.T) {
	a := NewViewport(WithSize(10, 10), WithZoom(2))
	b := NewViewport(WithSize(10, 10), WithZoom(2))
	c := NewViewport(WithSize(10, 10), WithZoom(3))
	if !a.Equal(b) {
		t.Error("identical viewports should be equal")
	}
	if a.Equal(c) || a.Equal(nil) {
		t.Error("different viewports should not be equal")
	}
	if NewViewport(WithFamily(FamilyGlobe)).Planar() {
		t.Error("globe must not be planar")
	}
	if !NewViewport(WithFamily(FamilyWebMercator)).Planar() {
		t.Error("web mercator is planar")
	}
}

func TestController(t *testing.T) {
	c := NewController(WithSurfaceSize(200, 200), WithInitialView(0, 0, 0, 0), WithZoomSpeed(1))
	first := c.Viewport()
	if c.Viewport() != first {
		t.Fatal("snapshot should be stable without changes")
	}

	c.Pan(10, 0)
	if got := c.Viewport().Center(); !closeTo(got[0], -10, 1e-9) || !closeTo(got[1], 0, 1e-9) {
		t.Errorf("center after pan = %v", got)
	}
	if c.Viewport().Equal(first) {
		t.Error("pan should produce a different viewport")
	}

	before := c.Viewport().Unproject([2]float64{150, 50})
	c.ZoomAt(1, 150, 50)
	after := c.Viewport().Unproject([2]float64{150, 50})
	if !closeTo(before[0], after[0], 1e-9) || !closeTo(before[1], after[1], 1e-9) {
		t.Errorf("zoom anchor moved: %v -> %v", before, after)
	}
	if c.Viewport().Zoom() != 1 {
		t.Errorf("zoom = %v", c.Viewport().Zoom())
	}

	c.SetZoom(100)
	if c.Viewport().Zoom() != 22 {
		t.Errorf("zoom should clamp to 22, got %v", c.Viewport().Zoom())
	}
}
