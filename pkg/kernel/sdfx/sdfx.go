// Package sdfx implements kernel.Kernel with the github.com/deadsy/sdfx
// SDF library: solids are converted to signed distance fields and meshed
// with marching cubes.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/kernel"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// DefaultMeshCells is the marching cubes resolution along the longest
// side of a bounding box.
const DefaultMeshCells = 200

// Kernel meshes solids with marching cubes. Tessellated solids are not
// resampled: their own facets are returned.
type Kernel struct {
	cells int
}

// New returns a kernel meshing with the given resolution. Non positive
// values select DefaultMeshCells.
func New(cells int) *Kernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &Kernel{cells: cells}
}

// Cells returns the marching cubes resolution.
func (k *Kernel) Cells() int { return k.cells }

// ToMesh converts s placed by t to a triangle mesh.
func (k *Kernel) ToMesh(s solid.Solid, t geom.Transform) (*kernel.Mesh, error) {
	if ts, ok := s.(*solid.Tessellated); ok {
		return kernel.FromFacets(ts.Mesh().Facets(), t), nil
	}
	field, err := SDF(s)
	if err != nil {
		return nil, err
	}
	field = place(field, t)

	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(field, renderer)
	if len(triangles) == 0 {
		return nil, fmt.Errorf("sdfx: %q: empty surface at %d cells", s.Name(), k.cells)
	}

	out := &kernel.Mesh{
		Vertices: make([]float32, 0, 9*len(triangles)),
		Normals:  make([]float32, 0, 9*len(triangles)),
		Indices:  make([]uint32, 0, 3*len(triangles)),
	}
	for _, tri := range triangles {
		n := tri.Normal()
		out.Append(toR3(tri[0]), toR3(tri[1]), toR3(tri[2]), toR3(n))
	}
	return out, nil
}

// SDF returns the signed distance field of s in its local frame. Boxes,
// orbs, full tubes, displaced and subtraction solids map onto sdfx
// shapes; other solids are sampled through their safety distances.
func SDF(s solid.Solid) (sdf.SDF3, error) {
	switch s := s.(type) {
	case *solid.Box:
		h := s.HalfLengths()
		return sdf.Box3D(v3.Vec{X: 2 * h.X, Y: 2 * h.Y, Z: 2 * h.Z}, 0)
	case *solid.Orb:
		return sdf.Sphere3D(s.Radius())
	case *solid.Tubs:
		rmin, rmax, dz, _, dphi := s.Dimensions()
		if dphi < 2*math.Pi {
			return newSampled(s), nil
		}
		outer, err := sdf.Cylinder3D(2*dz, rmax, 0)
		if err != nil {
			return nil, fmt.Errorf("sdfx: %q: %w", s.Name(), err)
		}
		if rmin == 0 {
			return outer, nil
		}
		inner, err := sdf.Cylinder3D(2*dz, rmin, 0)
		if err != nil {
			return nil, fmt.Errorf("sdfx: %q: %w", s.Name(), err)
		}
		return sdf.Difference3D(outer, inner), nil
	case *solid.Displaced:
		inner, err := SDF(s.Constituent())
		if err != nil {
			return nil, err
		}
		return place(inner, s.Transform()), nil
	case *solid.Subtraction:
		a, b, t := s.Constituents()
		fa, err := SDF(a)
		if err != nil {
			return nil, err
		}
		fb, err := SDF(b)
		if err != nil {
			return nil, err
		}
		return sdf.Difference3D(fa, place(fb, t)), nil
	default:
		return newSampled(s), nil
	}
}

// place moves f by t. Pure translations use the sdfx transform.
func place(f sdf.SDF3, t geom.Transform) sdf.SDF3 {
	switch {
	case t.IsIdentity():
		return f
	case !t.IsRotated():
		return sdf.Transform3D(f, sdf.Translate3d(fromR3(t.Trans)))
	default:
		return &transformed{inner: f, t: t, bb: box3(extent(f.BoundingBox()).Transform(t))}
	}
}

// transformed is f placed by a rigid transform.
type transformed struct {
	inner sdf.SDF3
	t     geom.Transform
	bb    sdf.Box3
}

func (s *transformed) Evaluate(p v3.Vec) float64 {
	return s.inner.Evaluate(fromR3(s.t.InverseApply(toR3(p))))
}

func (s *transformed) BoundingBox() sdf.Box3 { return s.bb }

// sampled is the distance field of a solid without an sdfx equivalent.
// Its magnitude is a lower bound of the true distance, exact in sign.
type sampled struct {
	s  solid.Solid
	bb sdf.Box3
}

func newSampled(s solid.Solid) *sampled {
	return &sampled{s: s, bb: box3(s.Extent())}
}

func (s *sampled) Evaluate(p v3.Vec) float64 {
	q := toR3(p)
	switch s.s.Inside(q) {
	case solid.Inside:
		return -s.s.SafetyToOut(q)
	case solid.Outside:
		return s.s.SafetyToIn(q)
	default:
		return 0
	}
}

func (s *sampled) BoundingBox() sdf.Box3 { return s.bb }

func toR3(v v3.Vec) r3.Vector   { return r3.Vector{X: v.X, Y: v.Y, Z: v.Z} }
func fromR3(v r3.Vector) v3.Vec { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

func box3(e geom.Extent) sdf.Box3 {
	return sdf.Box3{Min: fromR3(e.Min), Max: fromR3(e.Max)}
}

func extent(b sdf.Box3) geom.Extent {
	return geom.Extent{Min: toR3(b.Min), Max: toR3(b.Max)}
}
