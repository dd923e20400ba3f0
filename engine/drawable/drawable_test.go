package drawable

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

func TestDefaults(t *testing.T) {
	d := NewDrawable(WithID(7))
	if !d.Visible() || !d.Enabled() {
		t.Error("new drawables are visible and enabled")
	}
	if d.Channel() != DefaultChannel {
		t.Errorf("Channel() = %q", d.Channel())
	}
	if d.IdentityColor() != common.IdentityFromID(7) {
		t.Errorf("IdentityColor() = %v", d.IdentityColor())
	}
	if _, ok := d.Priority(); ok {
		t.Error("no priority accessor by default")
	}
	if d.Collides() || d.Operation() != OperationDraw || d.MaskChannel() != "" {
		t.Error("new drawables take no part in occlusion roles")
	}
}

func TestIdentityIDRange(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { common.SetLogger(nil) })

	NewDrawable(WithID(common.MaxIdentityID))
	if buf.Len() != 0 {
		t.Errorf("in-range id logged %q", buf.String())
	}
	wrapped := NewDrawable(WithID(common.MaxIdentityID + 1))
	if !strings.Contains(buf.String(), "identity color range") {
		t.Errorf("out-of-range id not warned, log = %q", buf.String())
	}
	if wrapped.IdentityColor().IsZero() {
		t.Error("wrapped id maps to the empty color")
	}
	buf.Reset()
	NewDrawable(WithID(common.MaxIdentityID+1), WithIdentityColor(common.IdentityColor{1, 2, 3}))
	if buf.Len() != 0 {
		t.Errorf("explicit identity logged %q", buf.String())
	}
}

func TestRoleOptions(t *testing.T) {
	mask := NewDrawable(WithMaskSource(""))
	if mask.Operation() != OperationMask || mask.MaskChannel() != DefaultChannel {
		t.Errorf("mask source = %v %q", mask.Operation(), mask.MaskChannel())
	}
	masked := NewDrawable(WithMaskedBy("water"))
	if masked.Operation() != OperationDraw || masked.MaskChannel() != "water" {
		t.Errorf("masked = %v %q", masked.Operation(), masked.MaskChannel())
	}
	label := NewDrawable(WithCollision("labels"), WithPriority(5))
	if !label.Collides() || label.Channel() != "labels" {
		t.Error("collision option not applied")
	}
	if p, ok := label.Priority(); !ok || p != 5 {
		t.Errorf("Priority() = %v, %v", p, ok)
	}
}

func TestRevisionBumps(t *testing.T) {
	d := NewDrawable()
	r := d.Revision()
	d.SetPosition(1, 2)
	d.SetShape(Circle{Radius: 3})
	d.SetPriority(func() float64 { return 1 })
	if got := d.Revision(); got != r+3 {
		t.Errorf("Revision() = %d, want %d", got, r+3)
	}
	d.SetColor([4]float32{1, 0, 0, 1})
	d.SetVisible(false)
	if d.Revision() != r+3 {
		t.Error("style changes must not bump the revision")
	}
}

func TestScreenBounds(t *testing.T) {
	vp := viewport.NewViewport(viewport.WithSize(100, 100), viewport.WithZoom(1))
	d := NewDrawable(WithShape(Rect{Width: 20, Height: 10}), WithPosition(5, 0))

	got := d.ScreenBounds(vp)
	want := common.Bounds{50, 45, 70, 55}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("ScreenBounds() = %v, want %v", got, want)
		}
	}

	padded := NewDrawable(
		WithShape(Rect{Width: 20, Height: 10}),
		WithTestOverrides(TestOverrides{PixelPadding: 5}),
	)
	pb := padded.ScreenBounds(vp)
	if math.Abs(pb.Width()-30) > 1e-9 || math.Abs(pb.Height()-20) > 1e-9 {
		t.Errorf("padded bounds = %v", pb)
	}
	if fp := padded.Footprint(vp); len(fp) != 4 {
		t.Errorf("Footprint() has %d vertices", len(fp))
	}
}

func TestPolygonOutline(t *testing.T) {
	vp := viewport.NewViewport()
	d := NewDrawable(
		WithShape(Polygon{Points: [][2]float64{{0, 0}, {10, 0}, {10, 10}}}),
		WithPosition(1, 1),
		WithCoordinates(viewport.CoordinateCartesian, 100, 0),
	)
	fp := d.Footprint(vp)
	if len(fp) != 3 || fp[1] != [2]float64{111, 1} {
		t.Errorf("Footprint() = %v", fp)
	}
}
