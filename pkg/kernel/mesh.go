package kernel

import (
	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/golang/geo/r3"
)

// Mesh is a triangle mesh with flat buffers: vertices and normals hold 3
// floats per vertex, indices 3 entries per triangle. Path names the placed
// volume the surface belongs to.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Path     string    `json:"path"`
	Material string    `json:"material,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

func (m *Mesh) vertex(i uint32) r3.Vector {
	return r3.Vector{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// Extent returns the bounding box of the vertices.
func (m *Mesh) Extent() geom.Extent {
	e := geom.EmptyExtent()
	for i := range uint32(m.VertexCount()) {
		e = e.Expand(m.vertex(i))
	}
	return e
}

// Facets returns the triangles of m. Degenerate triangles are skipped.
func (m *Mesh) Facets() []mesh.Facet {
	out := make([]mesh.Facet, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		f, ok := mesh.NewFacet(m.vertex(m.Indices[i]), m.vertex(m.Indices[i+1]), m.vertex(m.Indices[i+2]))
		if ok {
			out = append(out, f)
		}
	}
	return out
}

// Append adds one triangle with a flat normal.
func (m *Mesh) Append(v0, v1, v2, n r3.Vector) {
	base := uint32(m.VertexCount())
	for j, v := range [3]r3.Vector{v0, v1, v2} {
		m.Vertices = append(m.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
		m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
		m.Indices = append(m.Indices, base+uint32(j))
	}
}

// FromFacets returns the mesh of facets placed by t.
func FromFacets(facets []mesh.Facet, t geom.Transform) *Mesh {
	m := &Mesh{
		Vertices: make([]float32, 0, 9*len(facets)),
		Normals:  make([]float32, 0, 9*len(facets)),
		Indices:  make([]uint32, 0, 3*len(facets)),
	}
	for i := range facets {
		f := &facets[i]
		m.Append(t.Apply(f.V0), t.Apply(f.V1), t.Apply(f.V2), t.ApplyAxis(f.Normal))
	}
	return m
}
