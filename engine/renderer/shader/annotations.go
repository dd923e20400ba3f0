// annotations.go defines the annotation types, argument constants, and parser for the
// WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed with
// @oxy: that drive struct injection, uniform declarations and identity map bindings.
// The parsed results are stored as Annotation values and consumed by the renderer
// backends to wire GPU resources by role instead of by variable name.
package shader

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

var (
	// ErrUnknownInclude is returned when an @oxy:include names a struct that is not registered.
	ErrUnknownInclude = errors.New("shader: unknown include")
	// ErrMalformedAnnotation is returned for annotations with the wrong argument count or values.
	ErrMalformedAnnotation = errors.New("shader: malformed annotation")
)

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition.
	//
	// Syntax: // @oxy:include <struct_type>
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration for a
	// registered struct and records it as a declaration.
	//
	// Syntax: // @oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: // @oxy:group 0 0 storage_uniform params occlusion_params
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeTexture generates a texture_2d<f32> binding named after its role and
	// records it as a declaration, so backends can bind identity maps by role.
	//
	// Syntax: // @oxy:texture <group> <binding> <role>
	//
	// Example: // @oxy:texture 0 1 collision_map
	AnnotationTypeTexture AnnotationType = "texture"
)

// Annotation represents a single parsed @oxy: annotation.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = struct type key
	//   - group:   [0] = address space, [1] = var name, [2] = struct type key
	//   - texture: [0] = texture role
	Args []AnnotationArg

	// Line is the 1-based source line the annotation was found on.
	Line int

	// Group and Binding are set for group and texture annotations.
	Group   *int
	Binding *int
}

// AnnotationArg is a typed argument of an annotation.
type AnnotationArg string

// Struct types accepted by @oxy:include and @oxy:group.
const (
	// AnnotationArgVertex is the per-vertex input struct (one common-space vec2).
	AnnotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgOcclusionParams is the per-draw OcclusionParams uniform.
	AnnotationArgOcclusionParams AnnotationArg = "occlusion_params"
)

// Address spaces accepted by @oxy:group.
const (
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead    AnnotationArg = "storage_read"
)

// Texture roles accepted by @oxy:texture.
const (
	// AnnotationArgCollisionMap is the identity map of the item's collision channel.
	AnnotationArgCollisionMap AnnotationArg = "collision_map"

	// AnnotationArgMaskMap is the coverage map of the item's mask channel.
	AnnotationArgMaskMap AnnotationArg = "mask_map"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgVertex,
	AnnotationArgOcclusionParams,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
}

var validTextureRoles = []AnnotationArg{
	AnnotationArgCollisionMap,
	AnnotationArgMaskMap,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty annotation: %w", lineNum, ErrMalformedAnnotation)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: include requires exactly one argument: %w", lineNum, ErrMalformedAnnotation)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: %q: %w", lineNum, args[1], ErrUnknownInclude)
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: group requires group, binding, address space, name and type: %w", lineNum, ErrMalformedAnnotation)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q: %w", lineNum, args[3], ErrMalformedAnnotation)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: %q: %w", lineNum, args[5], ErrUnknownInclude)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case string(AnnotationTypeTexture):
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: texture requires group, binding and role: %w", lineNum, ErrMalformedAnnotation)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validTextureRoles, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown texture role %q: %w", lineNum, args[3], ErrMalformedAnnotation)
		}
		return &Annotation{
			Type:    AnnotationTypeTexture,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q: %w", lineNum, args[0], ErrMalformedAnnotation)
	}
}

// parseSlot parses the group and binding numbers shared by group and texture annotations.
func parseSlot(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, groupArg, ErrMalformedAnnotation)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, bindingArg, ErrMalformedAnnotation)
	}
	return group, binding, nil
}
