package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestPreProcessorProcess(t *testing.T) {
	pp := NewPreProcessor()
	src := strings.Join([]string{
		"// @oxy:include occlusion_params",
		"// @oxy:include occlusion_params",
		"// @oxy:group 0 0 storage_uniform params occlusion_params",
		"// @oxy:texture 0 1 collision_map",
		"fn f() {}",
	}, "\n")

	out, err := pp.Process(src)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if strings.Count(out, "struct OcclusionParams") != 1 {
		t.Error("repeated includes should be injected once")
	}
	if !strings.Contains(out, "@group(0) @binding(0) var<uniform> params: OcclusionParams;") {
		t.Errorf("uniform declaration missing:\n%s", out)
	}
	if !strings.Contains(out, "@group(0) @binding(1) var collision_map: texture_2d<f32>;") {
		t.Errorf("texture declaration missing:\n%s", out)
	}
	if got := len(pp.Declarations()); got != 2 {
		t.Errorf("Declarations() = %d, want 2", got)
	}
}

func TestPreProcessorErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown include", "// @oxy:include camera", ErrUnknownInclude},
		{"unknown group type", "// @oxy:group 0 0 storage_uniform p camera", ErrUnknownInclude},
		{"bad binding", "// @oxy:texture 0 x mask_map", ErrMalformedAnnotation},
		{"unknown role", "// @oxy:texture 0 1 diffuse", ErrMalformedAnnotation},
		{"unknown type", "// @oxy:sampler 0 1", ErrMalformedAnnotation},
		{"empty", "// @oxy:", ErrMalformedAnnotation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreProcessor().Process(tt.src)
			if !errors.Is(err, tt.want) {
				t.Errorf("Process() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOcclusionShader(t *testing.T) {
	s, err := OcclusionProgram()
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	if s.VertexEntryPoint() != "vs_main" || s.FragmentEntryPoint() != "fs_main" {
		t.Errorf("entry points = %q, %q", s.VertexEntryPoint(), s.FragmentEntryPoint())
	}

	var params shading.GPUOcclusionParams
	size, ok := s.StructSize("OcclusionParams")
	if !ok || size != uint64(params.Size()) {
		t.Errorf("WGSL OcclusionParams size = %d (%v), Go size = %d", size, ok, params.Size())
	}

	layouts := s.VertexLayouts()
	if len(layouts) != 1 || layouts[0].ArrayStride != shading.GPUVertexStride {
		t.Fatalf("VertexLayouts() = %+v", layouts)
	}
	if layouts[0].Attributes[0].Format != wgpu.VertexFormatFloat32x2 {
		t.Errorf("vertex format = %v", layouts[0].Attributes[0].Format)
	}

	g, b, ok := s.UniformSlot(AnnotationArgOcclusionParams)
	if !ok || g != 0 || b != 0 {
		t.Errorf("UniformSlot() = %d, %d, %v", g, b, ok)
	}
	g, b, ok = s.TextureSlot(AnnotationArgMaskMap)
	if !ok || g != 0 || b != 2 {
		t.Errorf("TextureSlot(mask) = %d, %d, %v", g, b, ok)
	}
	if s.BindGroupVarName(0, 1) != "collision_map" {
		t.Errorf("BindGroupVarName(0, 1) = %q", s.BindGroupVarName(0, 1))
	}

	layout := s.BindGroupLayoutDescriptors()[0]
	if len(layout.Entries) != 3 {
		t.Fatalf("group 0 has %d entries", len(layout.Entries))
	}
	if layout.Entries[0].Buffer.Type != wgpu.BufferBindingTypeUniform || layout.Entries[0].Buffer.MinBindingSize != 272 {
		t.Errorf("uniform entry = %+v", layout.Entries[0].Buffer)
	}
	if layout.Entries[1].Texture.ViewDimension != wgpu.TextureViewDimension2D {
		t.Errorf("texture entry = %+v", layout.Entries[1].Texture)
	}
}

const reflectSource = `
struct Tint {
    color: vec4<f32>,
    strength: f32,
}

@group(1) @binding(0) var<storage, read> tint: Tint;
@group(1) @binding(2) var tex: texture_2d<f32>;
@group(1) @binding(1) var samp: sampler;

@vertex
fn vs(@builtin(vertex_index) i: u32, @location(0) pos: vec2<f32>, @location(1) id: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos, f32(id + i), 1.0) * tint.strength;
}

@fragment
fn fs() -> @location(0) vec4<f32> {
    return textureSample(tex, samp, vec2<f32>(0.5, 0.5)) * tint.color;
}
`

func TestReflectedLayouts(t *testing.T) {
	s, err := NewShader("reflect", reflectSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	if s.VertexEntryPoint() != "vs" || s.FragmentEntryPoint() != "fs" {
		t.Errorf("entry points = %q, %q", s.VertexEntryPoint(), s.FragmentEntryPoint())
	}
	if size, ok := s.StructSize("Tint"); !ok || size != 32 {
		t.Errorf("StructSize(Tint) = %d, %v, want 32", size, ok)
	}
	if _, ok := s.StructSize("Missing"); ok {
		t.Error("unknown struct reported a size")
	}

	layouts := s.VertexLayouts()
	if len(layouts) != 1 {
		t.Fatalf("VertexLayouts() = %+v", layouts)
	}
	wantAttrs := []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatUint32, Offset: 8, ShaderLocation: 1},
	}
	if layouts[0].ArrayStride != 12 || len(layouts[0].Attributes) != len(wantAttrs) {
		t.Fatalf("vertex layout = %+v", layouts[0])
	}
	for i, want := range wantAttrs {
		if layouts[0].Attributes[i] != want {
			t.Errorf("attribute %d = %+v, want %+v", i, layouts[0].Attributes[i], want)
		}
	}

	entries := s.BindGroupLayoutDescriptors()[1].Entries
	if len(entries) != 3 {
		t.Fatalf("group 1 has %d entries", len(entries))
	}
	tests := []struct {
		name  string
		check func(wgpu.BindGroupLayoutEntry) bool
	}{
		{"read-only storage buffer", func(e wgpu.BindGroupLayoutEntry) bool {
			return e.Buffer.Type == wgpu.BufferBindingTypeReadOnlyStorage && e.Buffer.MinBindingSize == 32
		}},
		{"filtering sampler", func(e wgpu.BindGroupLayoutEntry) bool {
			return e.Sampler.Type == wgpu.SamplerBindingTypeFiltering
		}},
		{"float texture", func(e wgpu.BindGroupLayoutEntry) bool {
			return e.Texture.ViewDimension == wgpu.TextureViewDimension2D &&
				e.Texture.SampleType == wgpu.TextureSampleTypeUnfilterableFloat
		}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if entries[i].Binding != uint32(i) || !tt.check(entries[i]) {
				t.Errorf("entry %d = %+v", i, entries[i])
			}
		})
	}
	if s.BindGroupVarName(1, 2) != "tex" {
		t.Errorf("BindGroupVarName(1, 2) = %q", s.BindGroupVarName(1, 2))
	}
}

func TestNewShaderRejectsInvalidWGSL(t *testing.T) {
	if _, err := NewShader("broken", "fn main( {"); err == nil {
		t.Error("expected a parse error")
	}
}
