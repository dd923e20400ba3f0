package window

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// headless returns a window with no platform backing, enough to drive the input paths.
func headless(width, height int) *engineWindow {
	return &engineWindow{width: width, height: height}
}

func TestDragDeltas(t *testing.T) {
	w := headless(100, 100)
	var got [][2]float64
	w.SetDragCallback(func(dx, dy float64) { got = append(got, [2]float64{dx, dy}) })

	w.moveCursor(5, 5)
	w.beginDrag(10, 10)
	w.moveCursor(14, 7)
	w.moveCursor(14, 7)
	w.moveCursor(20, 20)
	w.endDrag()
	w.moveCursor(50, 50)

	want := [][2]float64{{4, -3}, {6, 13}}
	if len(got) != len(want) {
		t.Fatalf("drags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("drag %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResizeIgnoresMinimized(t *testing.T) {
	w := headless(100, 100)
	calls := 0
	w.SetResizeCallback(func(int, int) { calls++ })
	w.resized(0, 0)
	w.resized(300, 200)
	if calls != 1 || w.Width() != 300 || w.Height() != 200 {
		t.Errorf("calls=%d size=%dx%d", calls, w.Width(), w.Height())
	}
}

func TestHeadlessWindowNotRunning(t *testing.T) {
	w := headless(10, 10)
	if w.IsRunning() {
		t.Error("headless window reports running")
	}
	if err := w.Close(); err != ErrNotInitialized {
		t.Errorf("Close() = %v, want ErrNotInitialized", err)
	}
	if w.SurfaceDescriptor() != nil {
		t.Error("headless window has a surface descriptor")
	}
}

func TestBindController(t *testing.T) {
	w := headless(200, 100)
	c := viewport.NewController(viewport.WithInitialView(0, 0, 0, 0), viewport.WithZoomSpeed(1))
	var forwarded []uint32
	BindController(w, c, func(k uint32) { forwarded = append(forwarded, k) })

	if vp := c.Viewport(); vp.Width() != 200 || vp.Height() != 100 {
		t.Fatalf("controller size = %dx%d", vp.Width(), vp.Height())
	}

	tests := []struct {
		name  string
		input func()
		check func(vp viewport.Viewport) bool
	}{
		{"drag", func() { w.beginDrag(0, 0); w.moveCursor(10, 0); w.endDrag() },
			func(vp viewport.Viewport) bool { return vp.Center() == [2]float64{-10, 0} }},
		{"key pan", func() { w.onKeyDown(common.KeyW) },
			func(vp viewport.Viewport) bool { return vp.Center() == [2]float64{-10, -KeyPanStep} }},
		{"key zoom", func() { w.onKeyDown(common.KeyEqual) },
			func(vp viewport.Viewport) bool { return vp.Zoom() == 1 }},
		{"scroll", func() { w.onZoom(-1, 100, 50) },
			func(vp viewport.Viewport) bool { return vp.Zoom() == 0 }},
		{"rotate", func() { w.onKeyDown(common.KeyE) },
			func(vp viewport.Viewport) bool { return math.Abs(vp.Bearing()) > 0 }},
		{"resize", func() { w.resized(400, 300) },
			func(vp viewport.Viewport) bool { return vp.Width() == 400 && vp.Height() == 300 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input()
			if !tt.check(c.Viewport()) {
				vp := c.Viewport()
				t.Errorf("viewport center=%v zoom=%v bearing=%v size=%dx%d",
					vp.Center(), vp.Zoom(), vp.Bearing(), vp.Width(), vp.Height())
			}
		})
	}
	if len(forwarded) != 3 {
		t.Errorf("forwarded keys = %v", forwarded)
	}
}
