package mesh

import (
	"errors"
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
)

// ErrBadVertices is returned for vertex buffers that do not hold whole
// triangles.
var ErrBadVertices = errors.New("mesh: vertex buffer length is not a multiple of 9")

// FacetsFromVertices converts a flat buffer of triangle vertex triples,
// expressed in unit millimetres per buffer unit, into facets. Degenerate
// triangles are skipped.
func FacetsFromVertices(vertices []float32, unit float64) ([]Facet, error) {
	if len(vertices)%9 != 0 {
		return nil, ErrBadVertices
	}
	facets := make([]Facet, 0, len(vertices)/9)
	at := func(i int) r3.Vector {
		return r3.Vector{
			X: float64(vertices[i]) * unit,
			Y: float64(vertices[i+1]) * unit,
			Z: float64(vertices[i+2]) * unit,
		}
	}
	for i := 0; i < len(vertices); i += 9 {
		if f, ok := NewFacet(at(i), at(i+3), at(i+6)); ok {
			facets = append(facets, f)
		}
	}
	return facets, nil
}

// LoadSTL reads a binary or ASCII STL file and returns its vertex buffer.
func LoadSTL(path string) (vertices []float32, err error) {
	// The ASCII reader indexes past the end of a truncated vertex list.
	defer func() {
		if r := recover(); r != nil {
			vertices, err = nil, fmt.Errorf("mesh: %s: malformed STL (%v)", path, r)
		}
	}()
	triangles, err := render.LoadSTL(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", path, err)
	}
	if len(triangles) == 0 {
		return nil, fmt.Errorf("mesh: %s: %w", path, ErrEmpty)
	}
	vertices = make([]float32, 0, 9*len(triangles))
	for _, t := range triangles {
		for _, v := range t {
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
		}
	}
	return vertices, nil
}

// SaveSTL writes facets to path as binary STL, dividing coordinates by
// unit.
func SaveSTL(path string, facets []Facet, unit float64) error {
	scale := func(v r3.Vector) v3.Vec {
		return v3.Vec{X: v.X / unit, Y: v.Y / unit, Z: v.Z / unit}
	}
	triangles := make([]*sdf.Triangle3, len(facets))
	for i := range facets {
		f := &facets[i]
		triangles[i] = &sdf.Triangle3{scale(f.V0), scale(f.V1), scale(f.V2)}
	}
	if err := render.SaveSTL(path, triangles); err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	return nil
}
