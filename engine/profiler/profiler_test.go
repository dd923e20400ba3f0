package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/scene"
)

func TestTickReportsInterval(t *testing.T) {
	p := NewProfilerWithInterval(time.Second)
	start := time.Unix(100, 0)
	clock := start
	p.now = func() time.Time { return clock }
	p.lastTime = start

	p.Record(scene.FrameStats{Drawn: 4, Discarded: 1, IdentityRenders: 1})
	p.Record(scene.FrameStats{Drawn: 4, Discarded: 1})
	p.Record(scene.FrameStats{Drawn: 4, Hidden: 2})
	p.Record(scene.FrameStats{Drawn: 3, IdentityRenders: 2})

	for i := 0; i < 3; i++ {
		clock = clock.Add(200 * time.Millisecond)
		if p.Tick() {
			t.Fatalf("tick %d reported before the interval elapsed", i)
		}
	}
	clock = start.Add(2 * time.Second)
	if !p.Tick() {
		t.Fatal("tick after the interval did not report")
	}

	r := p.Last()
	tests := []struct {
		name      string
		got, want float64
	}{
		{"fps", r.FPS, 2},
		{"drawn", float64(r.Drawn), 15},
		{"discarded", float64(r.Discarded), 2},
		{"hidden", float64(r.Hidden), 2},
		{"identity renders", float64(r.IdentityRenders), 3},
		{"reuse", r.ReuseRatio, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	clock = clock.Add(2 * time.Second)
	if !p.Tick() {
		t.Fatal("second interval did not report")
	}
	if r := p.Last(); r.Drawn != 0 || r.ReuseRatio != 0 {
		t.Errorf("totals not reset: %+v", r)
	}
}
