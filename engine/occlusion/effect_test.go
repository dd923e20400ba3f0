package occlusion

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

const canvas = 64

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithCanvasSize(canvas, canvas))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func newTestEffect(t *testing.T, r renderer.Renderer, options ...EffectBuilderOption) Effect {
	t.Helper()
	e, err := NewEffect(r, options...)
	if err != nil {
		t.Fatalf("NewEffect: %v", err)
	}
	t.Cleanup(e.Cleanup)
	return e
}

func label(id uint32, channel string, x, y float64, options ...drawable.DrawableBuilderOption) drawable.Drawable {
	base := []drawable.DrawableBuilderOption{
		drawable.WithID(id),
		drawable.WithCollision(channel),
		drawable.WithPosition(x, y),
		drawable.WithShape(drawable.Rect{Width: 20, Height: 20}),
	}
	return drawable.NewDrawable(append(base, options...)...)
}

func frame(vp viewport.Viewport, items ...drawable.Drawable) FrameInputs {
	return FrameInputs{
		Items:        items,
		Viewports:    []viewport.Viewport{vp},
		CanvasWidth:  canvas,
		CanvasHeight: canvas,
	}
}

func preRender(t *testing.T, e Effect, in FrameInputs) ModuleParameters {
	t.Helper()
	if err := e.PreRender(in); err != nil {
		t.Fatalf("PreRender: %v", err)
	}
	params, err := e.ModuleParameters()
	if err != nil {
		t.Fatalf("ModuleParameters: %v", err)
	}
	return params
}

// factorAt runs the consumer test of item's main-pass parameters at its anchor.
func factorAt(t *testing.T, e Effect, item drawable.Drawable, vp viewport.Viewport) float64 {
	t.Helper()
	p := e.ShadingParameters(item, PassMain)
	if !p.Enabled {
		return 1
	}
	src, ok := p.Target.(shading.TexelSource)
	if !ok {
		t.Fatalf("target %T cannot be read on the CPU", p.Target)
	}
	a := item.Anchor(vp)
	texel := common.TransformPoint(p.TexelMatrix[:], float32(a[0]), float32(a[1]), 0)
	return shading.OcclusionFactor(src, [2]float64{float64(texel[0]), float64(texel[1])}, p.Flags(), item.IdentityColor())
}

func TestZeroEligibleItems(t *testing.T) {
	r := newTestRenderer(t)
	vp := pixelViewport(canvas, canvas)

	tests := []struct {
		name     string
		mode     Mode
		consumer drawable.Drawable
		items    []drawable.Drawable
	}{
		{
			name:     "collision with hidden items",
			mode:     ModeCollision,
			consumer: label(1, "", 16, 16, drawable.WithVisible(false)),
			items:    []drawable.Drawable{label(2, "", 16, 16, drawable.WithEnabled(false))},
		},
		{
			name:     "mask without sources",
			mode:     ModeMask,
			consumer: drawable.NewDrawable(drawable.WithID(3), drawable.WithMaskedBy("water")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEffect(t, r, WithMode(tt.mode))
			params := preRender(t, e, frame(vp, append(tt.items, tt.consumer)...))
			if len(params.Channels) != 0 {
				t.Errorf("published %d channels, want 0", len(params.Channels))
			}
			if params.Dummy != r.DummyTarget() {
				t.Error("dummy target not published")
			}
			p := e.ShadingParameters(tt.consumer, PassMain)
			if p.Role != shading.RoleConsumer || p.Enabled || p.Target != shading.Texture(r.DummyTarget()) {
				t.Errorf("consumer parameters = %+v, want disabled consumer on the dummy target", p)
			}
			if e.Stats().Targets != 0 {
				t.Errorf("Targets = %d, want 0", e.Stats().Targets)
			}
		})
	}
}

func TestTargetPerChannel(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithDownscale(1))
	vp := pixelViewport(canvas, canvas)

	a1 := label(1, "a", 16, 16)
	a2 := label(2, "a", 48, 48)
	b1 := label(3, "b", 16, 48)

	params := preRender(t, e, frame(vp, a1))
	first := params.Channels["a"].Target
	if first == nil || len(params.Channels) != 1 {
		t.Fatalf("channels = %v", params.Channels)
	}

	params = preRender(t, e, frame(vp, a1, a2))
	if got := params.Channels["a"].Target; got != first {
		t.Error("adding a member allocated a new target")
	}
	if e.Stats().Targets != 1 {
		t.Errorf("Targets = %d, want 1", e.Stats().Targets)
	}

	params = preRender(t, e, frame(vp, a1, a2, b1))
	if len(params.Channels) != 2 || e.Stats().Targets != 2 {
		t.Fatalf("channels = %d, targets = %d, want 2 and 2", len(params.Channels), e.Stats().Targets)
	}
	if params.Channels["a"].Target == params.Channels["b"].Target {
		t.Error("channels share a target")
	}
	bTarget := params.Channels["b"].Target

	params = preRender(t, e, frame(vp, a1, a2))
	if _, ok := params.Channels["b"]; ok {
		t.Error("emptied channel still published")
	}
	if params.Channels["a"].Target != first {
		t.Error("remaining channel lost its target")
	}
	if !bTarget.Released() {
		t.Error("emptied channel's target not released")
	}
	if got := e.Channels(); len(got) != 1 || got[0] != "a" {
		t.Errorf("Channels() = %v", got)
	}
}

func TestRenderSkippedWhenUnchanged(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r)
	vp := pixelViewport(canvas, canvas)
	item := label(1, "", 16, 16)
	other := label(2, "", 48, 48)

	steps := []struct {
		name        string
		change      func() FrameInputs
		wantRenders uint64
	}{
		{"first frame", func() FrameInputs { return frame(vp, item) }, 1},
		{"unchanged", func() FrameInputs { return frame(vp, item) }, 1},
		{"unchanged again", func() FrameInputs { return frame(vp, item) }, 1},
		{"member moved", func() FrameInputs { item.SetPosition(20, 20); return frame(vp, item) }, 2},
		{"member added", func() FrameInputs { return frame(vp, item, other) }, 3},
		{"equal viewport value", func() FrameInputs { return frame(pixelViewport(canvas, canvas), item, other) }, 3},
		{"viewport panned", func() FrameInputs {
			return frame(viewport.NewViewport(viewport.WithSize(canvas, canvas), viewport.WithCenter(40, 32)), item, other)
		}, 4},
		{"canvas resized", func() FrameInputs {
			in := frame(pixelViewport(canvas, canvas), item, other)
			in.CanvasWidth = 2 * canvas
			return in
		}, 5},
	}
	for _, st := range steps {
		preRender(t, e, st.change())
		if got := e.Stats().Renders; got != st.wantRenders {
			t.Fatalf("%s: Renders = %d, want %d", st.name, got, st.wantRenders)
		}
	}
	if e.Stats().Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", e.Stats().Skipped)
	}
}

func TestSamplingMatchesIdentity(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithDownscale(1))
	vp := pixelViewport(canvas, canvas)

	shared := common.IdentityFromID(40)
	left := label(1, "", 16, 16, drawable.WithIdentityColor(shared))
	right := label(2, "", 48, 48, drawable.WithIdentityColor(shared))
	preRender(t, e, frame(vp, left, right))

	tests := []struct {
		name string
		item drawable.Drawable
		want float64
	}{
		{"left source", left, 1},
		{"right source", right, 1},
		{"stranger at left", label(3, "", 16, 16), 0},
		{"stranger at right", label(4, "", 48, 48), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := factorAt(t, e, tt.item, vp); got != tt.want {
				t.Errorf("factor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHigherPriorityWins(t *testing.T) {
	r := newTestRenderer(t)
	vp := pixelViewport(canvas, canvas)

	tests := []struct {
		name          string
		lowID, highID uint32
	}{
		{"low drawn first", 1, 2},
		{"high drawn first", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEffect(t, r, WithDownscale(1))
			low := label(tt.lowID, "", 28, 32, drawable.WithPriority(5))
			high := label(tt.highID, "", 36, 32, drawable.WithPriority(10))
			params := preRender(t, e, frame(vp, low, high))

			src := params.Channels[drawable.DefaultChannel].Target.(shading.TexelSource)
			got := src.Texel(32, 32)
			want := high.IdentityColor()
			if got != [4]uint8{want[0], want[1], want[2], 255} {
				t.Errorf("overlap texel = %v, want identity of priority 10 %v", got, want)
			}
			if f := factorAt(t, e, high, vp); f < 0.99 {
				t.Errorf("high priority factor = %v, want 1", f)
			}
			if f := factorAt(t, e, low, vp); f > 0.5 {
				t.Errorf("low priority factor = %v, want it mostly hidden", f)
			}
		})
	}
}

func TestIdentityPassParameters(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r)
	prio := label(1, "", 16, 16, drawable.WithPriority(10))
	plain := label(2, "", 16, 16)
	bystander := drawable.NewDrawable(drawable.WithID(3))

	p := e.ShadingParameters(prio, PassIdentity)
	if p.Role != shading.RoleSource || !p.DrawIdentity || p.Target != shading.Texture(r.DummyTarget()) {
		t.Errorf("source parameters = %+v", p)
	}
	if q := e.ShadingParameters(plain, PassIdentity); q.Depth != shading.UniformDepth || p.Depth >= q.Depth {
		t.Errorf("depths = %v (priority 10), %v (none)", p.Depth, q.Depth)
	}
	if got := e.ShadingParameters(bystander, PassMain).Role; got != shading.RoleNone {
		t.Errorf("non-colliding item role = %v", got)
	}
}

func TestDegenerateBoundsSkipped(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithBoundsPolicy(BoundsFitted(0)))
	vp := pixelViewport(canvas, canvas)
	offscreen := label(1, "", 500, 500)

	params := preRender(t, e, frame(vp, offscreen))
	ch, ok := params.Channels[drawable.DefaultChannel]
	if !ok {
		t.Fatal("channel not published")
	}
	if ch.Enabled || ch.Target != r.DummyTarget() {
		t.Errorf("channel = %+v, want disabled on the dummy target", ch)
	}
	if e.Stats().Renders != 0 {
		t.Errorf("Renders = %d, want 0", e.Stats().Renders)
	}
	if f := factorAt(t, e, offscreen, vp); f != 1 {
		t.Errorf("factor = %v, want 1", f)
	}
}

func TestDegenerateBoundsKeepLastGood(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithBoundsPolicy(BoundsFitted(0)))
	vp := pixelViewport(canvas, canvas)
	item := label(1, "", 16, 16)

	first := preRender(t, e, frame(vp, item)).Channels[drawable.DefaultChannel]
	item.SetPosition(500, 500)
	second := preRender(t, e, frame(vp, item)).Channels[drawable.DefaultChannel]
	if !second.Enabled || second.Target != first.Target {
		t.Errorf("degenerate frame published %+v, want the last rendered map", second)
	}
}

func TestUnsupportedProjection(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r)
	globe := viewport.NewViewport(viewport.WithFamily(viewport.FamilyGlobe), viewport.WithSize(canvas, canvas))
	item := label(1, "", 0, 0)

	params := preRender(t, e, frame(globe, item))
	if ch := params.Channels[drawable.DefaultChannel]; ch.Enabled || ch.Target != r.DummyTarget() {
		t.Errorf("channel = %+v, want disabled", ch)
	}
	if p := e.ShadingParameters(item, PassMain); p.Enabled {
		t.Error("consumer enabled on a globe")
	}
}

func TestCleanup(t *testing.T) {
	r := newTestRenderer(t)

	t.Run("before PreRender", func(t *testing.T) {
		e := newTestEffect(t, r)
		e.Cleanup()
		if _, err := e.ModuleParameters(); !errors.Is(err, ErrNotPrepared) {
			t.Errorf("ModuleParameters() error = %v, want ErrNotPrepared", err)
		}
		if len(e.Channels()) != 0 {
			t.Error("channels after cleanup")
		}
	})

	t.Run("after PreRender", func(t *testing.T) {
		e := newTestEffect(t, r)
		params := preRender(t, e, frame(pixelViewport(canvas, canvas), label(1, "a", 16, 16), label(2, "b", 48, 48)))
		e.Cleanup()
		for id, ch := range params.Channels {
			if !ch.Target.Released() {
				t.Errorf("channel %s target not released", id)
			}
		}
		if len(e.Channels()) != 0 || e.Stats().Targets != 0 {
			t.Error("state not reset")
		}
		if _, err := e.ModuleParameters(); !errors.Is(err, ErrNotPrepared) {
			t.Errorf("ModuleParameters() error = %v", err)
		}
		e.Cleanup()
	})

	t.Run("close", func(t *testing.T) {
		e := newTestEffect(t, r)
		e.Close()
		if err := e.PreRender(frame(pixelViewport(canvas, canvas))); !errors.Is(err, ErrEffectClosed) {
			t.Errorf("PreRender after Close = %v", err)
		}
	})
}

func TestChannelRetention(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithChannelRetention(1))
	vp := pixelViewport(canvas, canvas)
	item := label(1, "", 16, 16)

	target := preRender(t, e, frame(vp, item)).Channels[drawable.DefaultChannel].Target

	params := preRender(t, e, frame(vp))
	if len(params.Channels) != 0 {
		t.Error("retained channel published")
	}
	if e.Stats().Targets != 1 || target.Released() {
		t.Error("retained channel released early")
	}

	params = preRender(t, e, frame(vp, item))
	if params.Channels[drawable.DefaultChannel].Target != target {
		t.Error("returning channel did not reuse its target")
	}

	preRender(t, e, frame(vp))
	preRender(t, e, frame(vp))
	if e.Stats().Targets != 0 || !target.Released() {
		t.Error("channel kept past its retention")
	}
}

func TestMaskMode(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithMode(ModeMask), WithTargetSize(canvas+2, canvas+2))
	vp := pixelViewport(canvas, canvas)

	source := drawable.NewDrawable(
		drawable.WithID(1),
		drawable.WithMaskSource("land"),
		drawable.WithShape(drawable.Polygon{Points: [][2]float64{{0, 0}, {32, 0}, {32, canvas}, {0, canvas}}}),
	)
	inside := drawable.NewDrawable(drawable.WithID(2), drawable.WithMaskedBy("land"), drawable.WithPosition(10, 30))
	outside := drawable.NewDrawable(drawable.WithID(3), drawable.WithMaskedBy("land"), drawable.WithPosition(50, 30))

	params := preRender(t, e, frame(vp, source, inside, outside))
	ch, ok := params.Channels["land"]
	if !ok || !ch.Enabled {
		t.Fatalf("mask channel = %+v", ch)
	}
	if ch.Width != canvas+2 || ch.Height != canvas+2 {
		t.Errorf("mask size = %dx%d", ch.Width, ch.Height)
	}
	if params.Mask == nil || params.Mask.Bounds != ch.Bounds {
		t.Errorf("mask record = %+v", params.Mask)
	}

	if p := e.ShadingParameters(source, PassMain); p.Role != shading.RoleSource {
		t.Errorf("mask source main-pass role = %v", p.Role)
	}
	p := e.ShadingParameters(inside, PassMain)
	if p.Role != shading.RoleConsumer || !p.CoverageOnly || p.SampleAtAnchor || p.Target != shading.Texture(ch.Target) {
		t.Errorf("masked parameters = %+v", p)
	}

	tests := []struct {
		name string
		item drawable.Drawable
		want float64
	}{
		{"inside", inside, 1},
		{"outside", outside, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := factorAt(t, e, tt.item, vp); got != tt.want {
				t.Errorf("factor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOnlyFirstViewportUsed(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r)
	in := frame(pixelViewport(canvas, canvas), label(1, "", 16, 16))
	in.Viewports = append(in.Viewports, viewport.NewViewport(viewport.WithFamily(viewport.FamilyGlobe)))

	var activated []viewport.Viewport
	in.OnViewActivate = func(v viewport.Viewport) { activated = append(activated, v) }
	params := preRender(t, e, in)
	if !params.Channels[drawable.DefaultChannel].Enabled {
		t.Error("channel disabled by the ignored second viewport")
	}
	if len(activated) != 1 {
		t.Errorf("view activated %d times, want 1", len(activated))
	}
}

func TestLayerFilter(t *testing.T) {
	r := newTestRenderer(t)
	e := newTestEffect(t, r, WithDownscale(1))
	vp := pixelViewport(canvas, canvas)
	kept := label(1, "", 16, 16)
	dropped := label(2, "", 48, 48)

	in := frame(vp, kept, dropped)
	in.LayerFilter = func(d drawable.Drawable) bool { return d.ID() != dropped.ID() }
	preRender(t, e, in)

	if f := factorAt(t, e, kept, vp); f != 1 {
		t.Errorf("kept factor = %v, want 1", f)
	}
	if p := e.ShadingParameters(dropped, PassMain); p.Role != shading.RoleNone {
		t.Errorf("filtered role = %v, want RoleNone", p.Role)
	}
	if f := factorAt(t, e, dropped, vp); f != 1 {
		t.Errorf("filtered factor = %v, want 1", f)
	}

	// a channel whose only members are filtered is not provisioned
	lone := label(3, "solo", 40, 16)
	in = frame(vp, kept, lone)
	in.LayerFilter = func(d drawable.Drawable) bool { return d.ID() != lone.ID() }
	params := preRender(t, e, in)
	if _, ok := params.Channels["solo"]; ok {
		t.Error("channel of filtered items published")
	}
	if f := factorAt(t, e, lone, vp); f != 1 {
		t.Errorf("filtered lone factor = %v, want 1", f)
	}
}
