package mesh

import (
	"fmt"
	"strings"
)

// Algorithm selects the accelerator built for a mesh.
type Algorithm int

const (
	// AlgorithmAuto defers the choice to the source kind heuristic.
	AlgorithmAuto Algorithm = iota
	// AlgorithmBVH builds a surface bounding volume hierarchy, suited to
	// long range traversals such as muons crossing a terrain.
	AlgorithmBVH
	// AlgorithmVoxels builds a volumetric grid, suited to dense short range
	// scattering inside the mesh.
	AlgorithmVoxels
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmAuto:
		return "auto"
	case AlgorithmBVH:
		return "bvh"
	case AlgorithmVoxels:
		return "voxels"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm parses an algorithm name. The empty string means auto and
// "geant4" is accepted as an alias of voxels.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return AlgorithmAuto, nil
	case "bvh":
		return AlgorithmBVH, nil
	case "voxels", "geant4":
		return AlgorithmVoxels, nil
	}
	return AlgorithmAuto, fmt.Errorf("mesh: unknown algorithm %q (expected bvh or voxels)", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	v, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Source tells where a mesh comes from.
type Source int

const (
	// SourceModel is an imported CAD or solid model export (STL).
	SourceModel Source = iota
	// SourceMap is a tessellated digital elevation model.
	SourceMap
)

// Resolve picks the algorithm of a mesh: a per-mesh choice wins over the
// global override, which wins over the source heuristic.
func Resolve(global, local Algorithm, src Source) Algorithm {
	if local != AlgorithmAuto {
		return local
	}
	if global != AlgorithmAuto {
		return global
	}
	if src == SourceMap {
		return AlgorithmBVH
	}
	return AlgorithmVoxels
}
