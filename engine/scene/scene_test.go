package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

const canvas = 64

func newTestScene(t *testing.T, modes ...occlusion.Mode) Scene {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithCanvasSize(canvas, canvas))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)

	vp := viewport.NewViewport(viewport.WithSize(canvas, canvas), viewport.WithCenter(canvas/2, canvas/2))
	s, err := NewScene("test", r, vp, WithPrepWorkers(2), WithPrepChunk(1))
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	t.Cleanup(s.Release)
	for _, mode := range modes {
		opts := []occlusion.EffectBuilderOption{occlusion.WithMode(mode), occlusion.WithDownscale(1)}
		if mode == occlusion.ModeMask {
			opts = append(opts, occlusion.WithTargetSize(canvas+2, canvas+2))
		}
		e, err := occlusion.NewEffect(r, opts...)
		if err != nil {
			t.Fatalf("NewEffect: %v", err)
		}
		s.AddEffect(e)
	}
	return s
}

func pixel(t *testing.T, s Scene, x, y int) [4]uint8 {
	t.Helper()
	data, err := s.Renderer().ReadPixels(nil)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	return data.At(x, y)
}

func red(id uint32, x, y float64, options ...drawable.DrawableBuilderOption) drawable.Drawable {
	base := []drawable.DrawableBuilderOption{
		drawable.WithID(id),
		drawable.WithPosition(x, y),
		drawable.WithShape(drawable.Rect{Width: 20, Height: 20}),
		drawable.WithColor([4]float32{1, 0, 0, 1}),
	}
	return drawable.NewDrawable(append(base, options...)...)
}

func TestSceneItems(t *testing.T) {
	s := newTestScene(t)
	a, b := red(1, 10, 10), red(2, 20, 20)
	s.Add(a, b)
	s.Add(red(1, 30, 30))
	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Count())
	}
	if got := s.Get(1); got == a {
		t.Error("Add with an existing ID did not replace the item")
	}
	s.Remove(2)
	if s.Get(2) != nil || s.Count() != 1 {
		t.Error("Remove did not remove the item")
	}
	s.Clear()
	if s.Count() != 0 {
		t.Error("Clear left items")
	}
}

func TestRenderDeclutter(t *testing.T) {
	s := newTestScene(t, occlusion.ModeCollision)
	low := red(1, 24, 32, drawable.WithCollision("labels"), drawable.WithPriority(1))
	high := red(2, 30, 32, drawable.WithCollision("labels"), drawable.WithPriority(9))
	free := red(3, 52, 52)
	s.Add(low, high, free)

	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	tests := []struct {
		name  string
		x, y  int
		alpha uint8
	}{
		{"low priority only area", 16, 32, 0},
		{"high priority only area", 36, 32, 255},
		{"non colliding item", 52, 52, 255},
		{"background", 2, 60, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pixel(t, s, tt.x, tt.y); got[3] != tt.alpha {
				t.Errorf("pixel = %v, want alpha %d", got, tt.alpha)
			}
		})
	}

	st := s.Stats()
	if st.Items != 3 || st.Drawn != 3 || st.Discarded != 1 || st.IdentityRenders != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := s.Stats().IdentityRenders; got != 0 {
		t.Errorf("unchanged frame re-rendered %d identity maps", got)
	}
}

func TestLayerFilteredItemDrawsUnoccluded(t *testing.T) {
	s := newTestScene(t, occlusion.ModeCollision)
	s.Add(red(1, 32, 32, drawable.WithCollision("labels")))
	s.SetLayerFilter(func(d drawable.Drawable) bool { return d.ID() != 1 })

	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got, want := pixel(t, s, 32, 32), [4]uint8{255, 0, 0, 255}; got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
	st := s.Stats()
	if st.Drawn != 1 || st.Discarded != 0 || st.IdentityRenders != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestRenderMask(t *testing.T) {
	s := newTestScene(t, occlusion.ModeMask)
	source := drawable.NewDrawable(
		drawable.WithID(1),
		drawable.WithMaskSource("land"),
		drawable.WithShape(drawable.Polygon{Points: [][2]float64{{0, 0}, {32, 0}, {32, canvas}, {0, canvas}}}),
		drawable.WithColor([4]float32{0, 0, 1, 1}),
	)
	masked := red(2, 32, 32, drawable.WithMaskedBy("land"), drawable.WithShape(drawable.Rect{Width: 40, Height: 20}))
	s.Add(source, masked)

	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	tests := []struct {
		name string
		x, y int
		want [4]uint8
	}{
		{"masked inside", 20, 32, [4]uint8{255, 0, 0, 255}},
		{"masked outside", 44, 32, [4]uint8{}},
		{"source never drawn", 5, 5, [4]uint8{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pixel(t, s, tt.x, tt.y); got != tt.want {
				t.Errorf("pixel = %v, want %v", got, tt.want)
			}
		})
	}
	if st := s.Stats(); st.Hidden != 1 || st.Drawn != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestReleaseCleansEffects(t *testing.T) {
	s := newTestScene(t, occlusion.ModeCollision)
	s.Add(red(1, 20, 20, drawable.WithCollision("")))
	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	e := s.Effects()[0]
	if e.Stats().Targets != 1 {
		t.Fatalf("Targets = %d", e.Stats().Targets)
	}
	s.Release()
	if e.Stats().Targets != 0 {
		t.Error("effect not cleaned up")
	}
	if err := s.Render(); err == nil {
		t.Error("Render after Release succeeded")
	}
}
