package geometry

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/golang/geo/r3"
)

// Check looks for overlaps with Monte Carlo trials, mothers before
// daughters, and returns the first one found as an *OverlapError. A
// non-positive resolution selects DefaultCheckResolution.
//
// For every daughter, resolution surface points must lie within the
// mother and outside of every sibling. For every pair of siblings with
// intersecting bounding boxes, resolution points are drawn in the
// intersection and must not be inside both.
func (g *Geometry) Check(resolution int) error {
	if resolution <= 0 {
		resolution = DefaultCheckResolution
	}
	err := g.Walk(func(pv *PlacedVolume) error {
		return g.checkMother(pv, resolution)
	})
	if err != nil {
		g.logger.Info("overlap check failed", "resolution", resolution, "error", err)
		return err
	}
	g.logger.Debug("overlap check passed", "resolution", resolution)
	return nil
}

func (g *Geometry) rng(path string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return rand.New(rand.NewPCG(g.seed, h.Sum64()))
}

func (g *Geometry) checkMother(m *PlacedVolume, resolution int) error {
	if len(m.daughters) == 0 {
		return nil
	}
	rng := g.rng(m.path)
	fault := func(path, other string, protrudes bool, p r3.Vector) error {
		return &OverlapError{
			Path:      path,
			Other:     other,
			Protrudes: protrudes,
			Point:     geom.Array3(p, geom.CM),
		}
	}

	for i, d := range m.daughters {
		for range resolution {
			p, ok := d.solid.PointOnSurface(rng)
			if !ok {
				g.logger.Debug("no surface to sample", "path", d.path)
				break
			}
			q := d.transform.Apply(p)
			if m.solid.Inside(q) == solid.Outside {
				return fault(d.path, m.path, true, q)
			}
			for j, o := range m.daughters {
				if j == i {
					continue
				}
				if o.solid.Inside(o.transform.InverseApply(q)) == solid.Inside {
					return fault(d.path, o.path, false, q)
				}
			}
		}
	}

	extents := make([]geom.Extent, len(m.daughters))
	for i, d := range m.daughters {
		extents[i] = solid.CalculateExtent(d.solid, d.transform)
	}
	for i, a := range m.daughters {
		for j := i + 1; j < len(m.daughters); j++ {
			b := m.daughters[j]
			box, ok := intersection(extents[i], extents[j])
			if !ok {
				continue
			}
			size := box.Size()
			for range resolution {
				q := box.Min.Add(r3.Vector{
					X: rng.Float64() * size.X,
					Y: rng.Float64() * size.Y,
					Z: rng.Float64() * size.Z,
				})
				if a.solid.Inside(a.transform.InverseApply(q)) == solid.Inside &&
					b.solid.Inside(b.transform.InverseApply(q)) == solid.Inside {
					return fault(a.path, b.path, false, q)
				}
			}
		}
	}
	return nil
}

// intersection returns the common part of a and b when it is thicker than
// the surface band along every axis.
func intersection(a, b geom.Extent) (geom.Extent, bool) {
	out := geom.Extent{
		Min: r3.Vector{X: max(a.Min.X, b.Min.X), Y: max(a.Min.Y, b.Min.Y), Z: max(a.Min.Z, b.Min.Z)},
		Max: r3.Vector{X: min(a.Max.X, b.Max.X), Y: min(a.Max.Y, b.Max.Y), Z: min(a.Max.Z, b.Max.Z)},
	}
	size := out.Size()
	ok := size.X > geom.CarTolerance && size.Y > geom.CarTolerance && size.Z > geom.CarTolerance
	return out, ok
}
