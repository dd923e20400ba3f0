package shader

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
)

type shader struct {
	key                        string
	source                     string
	vertexEntryPoint           string
	fragmentEntryPoint         string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	structSizes                map[string]uint64
	module                     *wgpu.ShaderModuleDescriptor

	pp PreProcessor
}

// Shader holds one pre-processed WGSL program with a vertex and a fragment entry point,
// along with the layouts parsed from it.
type Shader interface {
	// Key returns the shader's unique identifier.
	//
	// Returns:
	//   - string: the shader key
	Key() string

	// Source returns the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source
	Source() string

	// Module returns the shader module descriptor for GPU creation.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the module descriptor
	Module() *wgpu.ShaderModuleDescriptor

	// VertexEntryPoint returns the name of the @vertex function.
	//
	// Returns:
	//   - string: the entry point, empty if none
	VertexEntryPoint() string

	// FragmentEntryPoint returns the name of the @fragment function.
	//
	// Returns:
	//   - string: the entry point, empty if none
	FragmentEntryPoint() string

	// VertexLayouts returns the vertex buffer layouts parsed from vertex input structs.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: one layout per vertex input struct
	VertexLayouts() []wgpu.VertexBufferLayout

	// BindGroupLayoutDescriptors returns the parsed bind group layouts keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: the layouts
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the WGSL variable name at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index
	//
	// Returns:
	//   - string: the variable name, empty if not declared
	BindGroupVarName(group, binding int) string

	// StructSize returns the WGSL byte size of a struct declared in the source.
	//
	// Parameters:
	//   - name: the WGSL struct name
	//
	// Returns:
	//   - uint64: the size in bytes
	//   - bool: false if the struct is unknown
	StructSize(name string) (uint64, bool)

	// UniformSlot returns where the uniform of a registered struct type is bound.
	//
	// Parameters:
	//   - structType: the struct annotation argument
	//
	// Returns:
	//   - group, binding: the slot
	//   - ok: false if no @oxy:group declares it
	UniformSlot(structType AnnotationArg) (group, binding int, ok bool)

	// TextureSlot returns where the texture of a role is bound.
	//
	// Parameters:
	//   - role: the texture role
	//
	// Returns:
	//   - group, binding: the slot
	//   - ok: false if no @oxy:texture declares it
	TextureSlot(role AnnotationArg) (group, binding int, ok bool)

	// Declarations returns the group and texture annotations collected from the source.
	//
	// Returns:
	//   - []Annotation: the declarations
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes, parses and lowers a WGSL program with naga. Syntax and type errors
// surface at construction instead of at pipeline creation, and every layout is reflected from
// the lowered module.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and labels
//   - source: the raw WGSL source with @oxy: annotations
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing or parsing fails
func NewShader(key, source string) (Shader, error) {
	s := &shader{
		key: key,
		pp:  NewPreProcessor(),
	}
	processed, err := s.pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to pre-process source: %w", key, err)
	}
	ast, err := naga.Parse(processed)
	if err != nil {
		return nil, fmt.Errorf("shader %s: invalid WGSL: %w", key, err)
	}
	module, err := naga.LowerWithSource(ast, processed)
	if err != nil {
		return nil, fmt.Errorf("shader %s: invalid WGSL: %w", key, err)
	}
	s.source = processed
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: processed,
		},
	}
	r := reflectModule(module, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	s.vertexEntryPoint = r.vertexEntryPoint
	s.fragmentEntryPoint = r.fragmentEntryPoint
	s.vertexLayouts = r.vertexLayouts
	s.structSizes = r.structSizes
	s.bindGroupLayoutDescriptors, s.bindingVarNames = r.bindGroups, r.bindingVarNames
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) VertexEntryPoint() string {
	return s.vertexEntryPoint
}

func (s *shader) FragmentEntryPoint() string {
	return s.fragmentEntryPoint
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) StructSize(name string) (uint64, bool) {
	size, ok := s.structSizes[name]
	return size, ok
}

func (s *shader) UniformSlot(structType AnnotationArg) (int, int, bool) {
	for _, d := range s.pp.Declarations() {
		if d.Type == AnnotationTypeBindingGroup && d.Args[2] == structType {
			return *d.Group, *d.Binding, true
		}
	}
	return -1, -1, false
}

func (s *shader) TextureSlot(role AnnotationArg) (int, int, bool) {
	for _, d := range s.pp.Declarations() {
		if d.Type == AnnotationTypeTexture && d.Args[0] == role {
			return *d.Group, *d.Binding, true
		}
	}
	return -1, -1, false
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

// OcclusionProgramKey is the key of the shared identity/main-pass program.
const OcclusionProgramKey = "occlusion"

var (
	occlusionOnce    sync.Once
	occlusionProgram Shader
	occlusionErr     error
)

// OcclusionProgram returns the shared identity/main-pass program, parsing it on first use.
//
// Returns:
//   - Shader: the parsed program
//   - error: an error if the embedded source fails to parse
func OcclusionProgram() (Shader, error) {
	occlusionOnce.Do(func() {
		occlusionProgram, occlusionErr = NewShader(OcclusionProgramKey, shading.OcclusionShaderSource)
	})
	return occlusionProgram, occlusionErr
}
