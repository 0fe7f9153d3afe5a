package solid

import (
	"math"

	"github.com/chazu/calzone/pkg/geom"
)

// extentCalculator is implemented by solids with a tighter bound under a
// transform than their transformed bounding box.
type extentCalculator interface {
	calculateExtent(t geom.Transform) geom.Extent
}

// CalculateExtent returns the axis-aligned extent of s placed by t, in the
// frame t maps into. Untransformed solids report their exact extent.
func CalculateExtent(s Solid, t geom.Transform) geom.Extent {
	if t.IsIdentity() {
		return s.Extent()
	}
	if c, ok := s.(extentCalculator); ok {
		return c.calculateExtent(t)
	}
	return s.Extent().Transform(t)
}

func intersectExtent(a, b geom.Extent) geom.Extent {
	out := a
	out.Min.X, out.Max.X = math.Max(a.Min.X, b.Min.X), math.Min(a.Max.X, b.Max.X)
	out.Min.Y, out.Max.Y = math.Max(a.Min.Y, b.Min.Y), math.Min(a.Max.Y, b.Max.Y)
	out.Min.Z, out.Max.Z = math.Max(a.Min.Z, b.Min.Z), math.Min(a.Max.Z, b.Max.Z)
	return out
}
