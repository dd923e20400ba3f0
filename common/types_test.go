package common

import (
	"testing"
)

func TestBoundsValid(t *testing.T) {
	tests := []struct {
		name string
		b    Bounds
		want bool
	}{
		{"zero", Bounds{}, false},
		{"point", Bounds{10, 10, 10, 10}, false},
		{"inverted", Bounds{5, 5, 1, 1}, false},
		{"flat", Bounds{0, 0, 10, 0}, false},
		{"area", Bounds{0, 0, 10, 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundsUnionIntersect(t *testing.T) {
	a := Bounds{0, 0, 10, 10}
	b := Bounds{5, -5, 20, 8}

	if got, want := a.Union(b), (Bounds{0, -5, 20, 10}); got != want {
		t.Errorf("Union() = %v, want %v", got, want)
	}
	if got, want := a.Intersect(b), (Bounds{5, 0, 10, 8}); got != want {
		t.Errorf("Intersect() = %v, want %v", got, want)
	}
	if got := a.Union(Bounds{}); got != a {
		t.Errorf("Union with degenerate = %v, want %v", got, a)
	}
	if a.Intersect(Bounds{20, 20, 30, 30}).Valid() {
		t.Error("disjoint intersection should be degenerate")
	}
}

func TestBoundsOf(t *testing.T) {
	tests := []struct {
		name   string
		points [][2]float64
		want   Bounds
	}{
		{"none", nil, Bounds{}},
		{"origin first", [][2]float64{{0, 0}, {20, 0}, {0, 10}}, Bounds{0, 0, 20, 10}},
		{"negative", [][2]float64{{-5, 3}, {2, -1}}, Bounds{-5, -1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BoundsOf(tt.points...); got != tt.want {
				t.Errorf("BoundsOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundsQuantize(t *testing.T) {
	b := Bounds{1.5, -3.2, 9.1, 15.9}
	got := b.Quantize(4)
	want := Bounds{0, -4, 12, 16}
	if got != want {
		t.Errorf("Quantize(4) = %v, want %v", got, want)
	}
	if b.Quantize(0) != b {
		t.Error("Quantize(0) should be a no-op")
	}
}

func TestIdentityColor(t *testing.T) {
	if IdentityFromID(0).IsZero() {
		t.Fatal("id 0 must not map to the empty color")
	}
	ids := []struct {
		id   uint32
		want IdentityColor
	}{
		{0x0102FE, IdentityColor{1, 2, 0xFF}},
		{MaxIdentityID, IdentityColor{0xFF, 0xFF, 0xFF}},
		{MaxIdentityID + 1, IdentityColor{0, 0, 1}},
		{0xFFFFFFFF, IdentityColor{0, 1, 0}},
	}
	for _, tt := range ids {
		got := IdentityFromID(tt.id)
		if got != tt.want {
			t.Errorf("IdentityFromID(%#x) = %v, want %v", tt.id, got, tt.want)
		}
		if got.IsZero() {
			t.Errorf("IdentityFromID(%#x) is the empty color", tt.id)
		}
	}

	c, err := ParseIdentityColor("#0a0b0c")
	if err != nil {
		t.Fatalf("ParseIdentityColor: %v", err)
	}
	if c != (IdentityColor{10, 11, 12}) {
		t.Errorf("ParseIdentityColor = %v", c)
	}
	if c.Hex() != "#0a0b0c" {
		t.Errorf("Hex() = %s", c.Hex())
	}

	if _, err := ParseIdentityColor("#000000"); err == nil {
		t.Error("black should be rejected")
	}
	if _, err := ParseIdentityColor("nope"); err == nil {
		t.Error("invalid hex should be rejected")
	}
}

func TestTextureStagingDataAt(t *testing.T) {
	tex := &TextureStagingData{Width: 2, Height: 1, Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	if got := tex.At(1, 0); got != [4]uint8{5, 6, 7, 8} {
		t.Errorf("At(1,0) = %v", got)
	}
	if got := tex.At(2, 0); got != [4]uint8{} {
		t.Errorf("out of range At = %v", got)
	}
}
