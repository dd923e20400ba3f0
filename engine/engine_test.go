package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/scene"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

func TestRunWithoutScene(t *testing.T) {
	if err := NewEngine().Run(); !errors.Is(err, ErrNoScene) {
		t.Errorf("Run() = %v, want ErrNoScene", err)
	}
}

func TestFractionalRates(t *testing.T) {
	intervals := []struct {
		fps  float64
		want time.Duration
	}{
		{0.5, 2 * time.Second},
		{0.25, 4 * time.Second},
		{60, time.Second / 60},
		{1e12, time.Nanosecond},
	}
	for _, tt := range intervals {
		if got := frameInterval(tt.fps); got != tt.want {
			t.Errorf("frameInterval(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}

	e := NewEngine(WithTickRate(0.5), WithRenderFrameLimit(0.5)).(*engine)
	if e.engineTickRate != 2*time.Second || e.renderFrameLimit != 2*time.Second {
		t.Errorf("builder rates = %v, %v, want 2s", e.engineTickRate, e.renderFrameLimit)
	}
	e.SetTickRate(0.25)
	e.SetRenderFrameLimit(0.25)
	if e.engineTickRate != 4*time.Second || e.renderFrameLimit != 4*time.Second {
		t.Errorf("set rates = %v, %v, want 4s", e.engineTickRate, e.renderFrameLimit)
	}
}

func TestHeadlessRun(t *testing.T) {
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithCanvasSize(64, 64))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	e, err := occlusion.NewEffect(r)
	if err != nil {
		t.Fatalf("NewEffect: %v", err)
	}

	c := viewport.NewController(viewport.WithSurfaceSize(64, 64), viewport.WithInitialView(32, 32, 0, 0))
	s, err := scene.NewScene("headless", r, c.Viewport(), scene.WithEffects(e), scene.WithItems(
		drawable.NewDrawable(drawable.WithID(1), drawable.WithCollision(""), drawable.WithPosition(30, 30),
			drawable.WithShape(drawable.Rect{Width: 10, Height: 10})),
	))
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	t.Cleanup(s.Release)

	eng := NewEngine(WithScene(s), WithController(c), WithTickRate(1000), WithProfiling(true))
	var frames []scene.FrameStats
	eng.SetRenderCallback(func(_ float32, stats scene.FrameStats) {
		frames = append(frames, stats)
		switch len(frames) {
		case 2:
			c.Pan(4, 0)
		case 4:
			eng.Quit()
		}
	})

	done := make(chan error, 1)
	go func() { done <- eng.Run() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		eng.Quit()
		t.Fatal("engine did not stop")
	}

	if len(frames) < 4 {
		t.Fatalf("rendered %d frames", len(frames))
	}
	want := []int{1, 0, 1, 0}
	for i, w := range want {
		if frames[i].IdentityRenders != w {
			t.Errorf("frame %d identity renders = %d, want %d", i, frames[i].IdentityRenders, w)
		}
	}
}
