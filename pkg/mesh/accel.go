package mesh

import (
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// Accelerator answers ray and proximity queries over a fixed facet set.
// Implementations are read-only after construction and safe for
// concurrent use.
type Accelerator interface {
	// Intersect returns the nearest crossing along unit direction d and the
	// index of the crossed facet.
	Intersect(p, d r3.Vector, side Side) (t float64, index int, ok bool)
	// Hits counts the distinct surface crossings of the ray. Facets
	// meeting at a crossed edge or vertex count once.
	Hits(p, d r3.Vector, side Side) int
	// Closest returns the distance from p to the nearest facet and its
	// index.
	Closest(p r3.Vector) (dist float64, index int)
	// Near reports whether any facet lies within delta of p.
	Near(p r3.Vector, delta float64) bool
}

var (
	_ Accelerator = (*BVH)(nil)
	_ Accelerator = (*Voxels)(nil)
)

// boxPad grows node and voxel boxes so that flat, axis aligned facets
// still have a volume.
const boxPad = geom.HalfTolerance

func padded(e geom.Extent) geom.Extent {
	pad := r3.Vector{X: boxPad, Y: boxPad, Z: boxPad}
	return geom.Extent{Min: e.Min.Sub(pad), Max: e.Max.Add(pad)}
}

func reciprocal(d r3.Vector) r3.Vector {
	inv := func(x float64) float64 {
		if x == 0 {
			return math.Inf(1)
		}
		return 1 / x
	}
	return r3.Vector{X: inv(d.X), Y: inv(d.Y), Z: inv(d.Z)}
}

// rayBox clips the ray p + t·d, t in [0, tmax], against e. inv holds the
// component reciprocals of d, infinite for components parallel to an axis.
func rayBox(e geom.Extent, p, inv r3.Vector, tmax float64) (float64, float64, bool) {
	tmin := 0.0
	for axis := 0; axis < 3; axis++ {
		o := geom.Axis(p, axis)
		iv := geom.Axis(inv, axis)
		lo, hi := geom.Axis(e.Min, axis), geom.Axis(e.Max, axis)
		if math.IsInf(iv, 0) {
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		t0, t1 := (lo-o)*iv, (hi-o)*iv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmax < tmin {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}
