package solid

import (
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/golang/geo/r3"
)

// Tessellated is a closed triangulated surface. The facets and their
// accelerator belong to a shared mesh that may back several solids.
type Tessellated struct {
	base
	mesh *mesh.Shared
}

// NewTessellated returns a solid over m. The caller keeps the ownership of
// the mesh reference.
func NewTessellated(name string, m *mesh.Shared) *Tessellated {
	return &Tessellated{base: base{name}, mesh: m}
}

func (s *Tessellated) Kind() Kind { return KindTessellated }

// Mesh returns the shared surface.
func (s *Tessellated) Mesh() *mesh.Shared { return s.mesh }

func (s *Tessellated) SurfaceArea() float64 { return s.mesh.Area() }
func (s *Tessellated) CubicVolume() float64 { return s.mesh.Volume() }

var upward = r3.Vector{Z: 1}

// parityRay is tilted off the axes so that it seldom runs along the edges
// of axis aligned or gridded meshes.
var parityRay = r3.Vector{X: 0.0917, Y: 0.0452, Z: 1}.Normalize()

func (s *Tessellated) Inside(p r3.Vector) EInside {
	accel := s.mesh.Accelerator()
	if accel.Near(p, geom.HalfTolerance) {
		return Surface
	}
	if !s.mesh.Extent().Contains(p, 0) {
		return Outside
	}
	if accel.Hits(p, parityRay, mesh.Both)%2 == 1 {
		return Inside
	}
	return Outside
}

func (s *Tessellated) SurfaceNormal(p r3.Vector) r3.Vector {
	_, i := s.mesh.Accelerator().Closest(p)
	if i < 0 {
		return upward
	}
	return s.mesh.Facets()[i].Normal
}

func (s *Tessellated) DistanceToIn(p, d r3.Vector) float64 {
	t, _, ok := s.mesh.Accelerator().Intersect(p, d, mesh.Front)
	if !ok || t <= geom.HalfTolerance {
		return geom.Infinity
	}
	return t
}

// SafetyToIn uses the bounding box, a cheap lower bound.
func (s *Tessellated) SafetyToIn(p r3.Vector) float64 {
	return s.mesh.Extent().Distance(p)
}

func (s *Tessellated) DistanceToOut(p, d r3.Vector) float64 {
	t, _, ok := s.mesh.Accelerator().Intersect(p, d, mesh.Back)
	if !ok {
		return 0
	}
	return t
}

func (s *Tessellated) SafetyToOut(p r3.Vector) float64 {
	dist, _ := s.mesh.Accelerator().Closest(p)
	if math.IsInf(dist, 1) {
		return 0
	}
	return dist
}

func (s *Tessellated) PointOnSurface(rng Rand) (r3.Vector, bool) {
	p, _ := s.mesh.SurfacePoint(rng)
	return p, true
}

func (s *Tessellated) Extent() geom.Extent { return s.mesh.Extent() }

// calculateExtent bounds the transformed vertices.
func (s *Tessellated) calculateExtent(t geom.Transform) geom.Extent {
	ext := geom.EmptyExtent()
	for _, f := range s.mesh.Facets() {
		ext = ext.Expand(t.Apply(f.V0)).Expand(t.Apply(f.V1)).Expand(t.Apply(f.V2))
	}
	return ext
}
