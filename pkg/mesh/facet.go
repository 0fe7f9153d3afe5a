// Package mesh builds the triangle surfaces behind tessellated solids and
// the accelerators answering ray and point queries against them.
//
// A Shared mesh is built once and never mutated afterwards, so a single
// instance serves every placement of the same named mesh.
package mesh

import (
	"cmp"
	"math"
	"slices"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// intersectEpsilon is the determinant and distance threshold of ray and
// triangle intersections.
const intersectEpsilon = 1e-12

// edgeEpsilon widens facets in barycentric coordinates, so that a ray
// through a shared edge hits at least one of the adjacent facets.
const edgeEpsilon = 1e-9

// Side selects which facet orientations a ray query considers.
type Side int

const (
	// Front facets face the ray: it crosses them from outside to inside.
	Front Side = iota
	// Back facets face away from the ray.
	Back
	// Both orientations.
	Both
)

// Facet is an oriented triangle. The normal follows the right hand rule
// over V0, V1, V2 and points outwards for a consistently wound surface.
type Facet struct {
	V0, V1, V2 r3.Vector
	Normal     r3.Vector
	Area       float64
}

// NewFacet returns the facet spanned by three vertices. It reports false
// for degenerate triangles.
func NewFacet(v0, v1, v2 r3.Vector) (Facet, bool) {
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	norm := n.Norm()
	if norm < intersectEpsilon || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Facet{}, false
	}
	return Facet{V0: v0, V1: v1, V2: v2, Normal: n.Mul(1 / norm), Area: 0.5 * norm}, true
}

// Extent returns the bounding box of the facet.
func (f *Facet) Extent() geom.Extent {
	return geom.EmptyExtent().Expand(f.V0).Expand(f.V1).Expand(f.V2)
}

// Centroid returns the mean of the vertices.
func (f *Facet) Centroid() r3.Vector {
	return f.V0.Add(f.V1).Add(f.V2).Mul(1.0 / 3.0)
}

// Closest returns the point of the facet closest to p.
func (f *Facet) Closest(p r3.Vector) r3.Vector {
	a, b, c := f.V0, f.V1, f.V2
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	return a.Add(ab.Mul(vb * denom)).Add(ac.Mul(vc * denom))
}

// Distance returns the distance from p to the facet.
func (f *Facet) Distance(p r3.Vector) float64 {
	return p.Sub(f.Closest(p)).Norm()
}

// Intersect returns the distance along d at which the ray from p crosses
// the facet, restricted to the given side.
func (f *Facet) Intersect(p, d r3.Vector, side Side) (float64, bool) {
	e1 := f.V1.Sub(f.V0)
	e2 := f.V2.Sub(f.V0)
	h := d.Cross(e2)
	det := e1.Dot(h)
	switch side {
	case Front:
		if det <= intersectEpsilon {
			return 0, false
		}
	case Back:
		if det >= -intersectEpsilon {
			return 0, false
		}
	default:
		if math.Abs(det) < intersectEpsilon {
			return 0, false
		}
	}
	inv := 1 / det
	s := p.Sub(f.V0)
	u := inv * s.Dot(h)
	if u < -edgeEpsilon || u > 1+edgeEpsilon {
		return 0, false
	}
	q := s.Cross(e1)
	v := inv * d.Dot(q)
	if v < -edgeEpsilon || u+v > 1+edgeEpsilon {
		return 0, false
	}
	t := inv * e2.Dot(q)
	if t <= intersectEpsilon {
		return 0, false
	}
	return t, true
}

// crossing is a ray and facet intersection at distance t. exit is set when
// the ray leaves through the facet.
type crossing struct {
	t    float64
	exit bool
}

func newCrossing(f *Facet, d r3.Vector, t float64) crossing {
	return crossing{t: t, exit: d.Dot(f.Normal) > 0}
}

// countCrossings returns the number of distinct surface crossings among
// cs. Hits closer than geom.CarTolerance are one crossing when they agree
// on direction, as for a ray through a shared edge or vertex. Hits that
// disagree are a ray grazing a silhouette edge, which enters and leaves at
// once and does not count.
func countCrossings(cs []crossing) int {
	slices.SortFunc(cs, func(a, b crossing) int { return cmp.Compare(a.t, b.t) })
	count := 0
	for i := 0; i < len(cs); {
		enter, exit := !cs[i].exit, cs[i].exit
		j := i + 1
		for ; j < len(cs) && cs[j].t-cs[i].t <= geom.CarTolerance; j++ {
			if cs[j].exit {
				exit = true
			} else {
				enter = true
			}
		}
		if enter != exit {
			count++
		}
		i = j
	}
	return count
}
