package shader

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/ir"
)

// reflection is what a shader learns about itself from the lowered naga module.
type reflection struct {
	vertexEntryPoint   string
	fragmentEntryPoint string
	vertexLayouts      []wgpu.VertexBufferLayout
	bindGroups         map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames    map[int]map[int]string
	structSizes        map[string]uint64
}

// reflectModule reads entry points, vertex inputs, resource bindings and struct sizes from a
// lowered module. Struct sizes are the spans naga computed with WGSL host-shareable layout rules.
//
// Parameters:
//   - m: the lowered module
//   - visibility: the stages every bind group entry is visible to
//
// Returns:
//   - reflection: the reflected layouts
func reflectModule(m *ir.Module, visibility wgpu.ShaderStage) reflection {
	r := reflection{
		bindGroups:      map[int]wgpu.BindGroupLayoutDescriptor{},
		bindingVarNames: map[int]map[int]string{},
		structSizes:     map[string]uint64{},
	}
	for _, t := range m.Types {
		if st, ok := t.Inner.(ir.StructType); ok && t.Name != "" {
			r.structSizes[t.Name] = uint64(st.Span)
		}
	}

	for _, ep := range m.EntryPoints {
		switch ep.Stage {
		case ir.StageVertex:
			if r.vertexEntryPoint != "" {
				continue
			}
			r.vertexEntryPoint = ep.Name
			if layout, ok := vertexLayout(m, ep.Function.Arguments); ok {
				r.vertexLayouts = []wgpu.VertexBufferLayout{layout}
			}
		case ir.StageFragment:
			if r.fragmentEntryPoint == "" {
				r.fragmentEntryPoint = ep.Name
			}
		}
	}

	groups := map[int][]wgpu.BindGroupLayoutEntry{}
	for _, gv := range m.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		entry, ok := bindingEntry(m, gv, visibility)
		if !ok {
			continue
		}
		g, b := int(gv.Binding.Group), int(gv.Binding.Binding)
		groups[g] = append(groups[g], entry)
		if r.bindingVarNames[g] == nil {
			r.bindingVarNames[g] = map[int]string{}
		}
		r.bindingVarNames[g][b] = gv.Name
	}
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
		r.bindGroups[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return r
}

// vertexLayout packs every @location input of a vertex entry point, loose or inside a struct
// argument, into one tightly packed buffer layout. Built-in inputs take no buffer space.
func vertexLayout(m *ir.Module, args []ir.FunctionArgument) (wgpu.VertexBufferLayout, bool) {
	var attrs []wgpu.VertexAttribute
	var offset uint64
	add := func(binding *ir.Binding, th ir.TypeHandle) bool {
		if binding == nil {
			return true
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return true
		}
		format, size, ok := vertexFormat(m.Types[th].Inner)
		if !ok {
			return false
		}
		attrs = append(attrs, wgpu.VertexAttribute{Format: format, Offset: offset, ShaderLocation: loc.Location})
		offset += size
		return true
	}

	for _, arg := range args {
		if st, ok := m.Types[arg.Type].Inner.(ir.StructType); ok && arg.Binding == nil {
			for _, member := range st.Members {
				if !add(member.Binding, member.Type) {
					return wgpu.VertexBufferLayout{}, false
				}
			}
			continue
		}
		if !add(arg.Binding, arg.Type) {
			return wgpu.VertexBufferLayout{}, false
		}
	}
	if len(attrs) == 0 {
		return wgpu.VertexBufferLayout{}, false
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// vertexFormat maps a 32-bit scalar or vector input type to its vertex format and byte size.
func vertexFormat(inner ir.TypeInner) (wgpu.VertexFormat, uint64, bool) {
	var kind ir.ScalarKind
	var n uint64 = 1
	switch t := inner.(type) {
	case ir.ScalarType:
		if t.Width != 4 {
			return 0, 0, false
		}
		kind = t.Kind
	case ir.VectorType:
		if t.Scalar.Width != 4 {
			return 0, 0, false
		}
		kind, n = t.Scalar.Kind, uint64(t.Size)
	default:
		return 0, 0, false
	}

	formats := map[ir.ScalarKind][4]wgpu.VertexFormat{
		ir.ScalarFloat: {wgpu.VertexFormatFloat32, wgpu.VertexFormatFloat32x2, wgpu.VertexFormatFloat32x3, wgpu.VertexFormatFloat32x4},
		ir.ScalarUint:  {wgpu.VertexFormatUint32, wgpu.VertexFormatUint32x2, wgpu.VertexFormatUint32x3, wgpu.VertexFormatUint32x4},
		ir.ScalarSint:  {wgpu.VertexFormatSint32, wgpu.VertexFormatSint32x2, wgpu.VertexFormatSint32x3, wgpu.VertexFormatSint32x4},
	}
	row, ok := formats[kind]
	if !ok {
		return 0, 0, false
	}
	return row[n-1], 4 * n, true
}

// bindingEntry describes one bound global as a bind group layout entry. Uniform and storage
// buffers carry the bound struct's size as their minimum binding size.
func bindingEntry(m *ir.Module, gv ir.GlobalVariable, visibility wgpu.ShaderStage) (wgpu.BindGroupLayoutEntry, bool) {
	entry := wgpu.BindGroupLayoutEntry{Binding: gv.Binding.Binding, Visibility: visibility}
	inner := m.Types[gv.Type].Inner

	switch gv.Space {
	case ir.SpaceUniform, ir.SpaceStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		if gv.Space == ir.SpaceStorage {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
			if gv.Access == ir.StorageRead {
				entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			}
		}
		if st, ok := inner.(ir.StructType); ok {
			entry.Buffer.MinBindingSize = uint64(st.Span)
		}
		return entry, true
	case ir.SpaceHandle:
	default:
		return entry, false
	}

	switch t := inner.(type) {
	case ir.SamplerType:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if t.Comparison {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	case ir.ImageType:
		if t.Class != ir.ImageClassSampled || t.Dim != ir.Dim2D {
			return entry, false
		}
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		if t.Arrayed {
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2DArray
		}
		entry.Texture.Multisampled = t.Multisampled
		// identity maps are read with textureLoad, so float textures bind unfilterable
		switch t.SampledKind {
		case ir.ScalarSint:
			entry.Texture.SampleType = wgpu.TextureSampleTypeSint
		case ir.ScalarUint:
			entry.Texture.SampleType = wgpu.TextureSampleTypeUint
		default:
			entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		}
	default:
		return entry, false
	}
	return entry, true
}
