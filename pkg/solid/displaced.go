package solid

import (
	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// Displaced wraps a solid placed by a rigid transform. It does not own the
// wrapped solid for query purposes; ownership is tracked by the caller.
type Displaced struct {
	base
	solid Solid
	t     geom.Transform
}

// NewDisplaced returns s moved by t.
func NewDisplaced(name string, s Solid, t geom.Transform) *Displaced {
	return &Displaced{base: base{name}, solid: s, t: t}
}

func (s *Displaced) Kind() Kind { return KindDisplaced }

// Constituent returns the wrapped solid.
func (s *Displaced) Constituent() Solid { return s.solid }

// Transform returns the displacement.
func (s *Displaced) Transform() geom.Transform { return s.t }

func (s *Displaced) SurfaceArea() float64 { return s.solid.SurfaceArea() }
func (s *Displaced) CubicVolume() float64 { return s.solid.CubicVolume() }

func (s *Displaced) Inside(p r3.Vector) EInside {
	return s.solid.Inside(s.t.InverseApply(p))
}

func (s *Displaced) SurfaceNormal(p r3.Vector) r3.Vector {
	return s.t.ApplyAxis(s.solid.SurfaceNormal(s.t.InverseApply(p)))
}

func (s *Displaced) DistanceToIn(p, d r3.Vector) float64 {
	return s.solid.DistanceToIn(s.t.InverseApply(p), s.t.InverseApplyAxis(d))
}

func (s *Displaced) SafetyToIn(p r3.Vector) float64 {
	return s.solid.SafetyToIn(s.t.InverseApply(p))
}

func (s *Displaced) DistanceToOut(p, d r3.Vector) float64 {
	return s.solid.DistanceToOut(s.t.InverseApply(p), s.t.InverseApplyAxis(d))
}

func (s *Displaced) SafetyToOut(p r3.Vector) float64 {
	return s.solid.SafetyToOut(s.t.InverseApply(p))
}

func (s *Displaced) PointOnSurface(rng Rand) (r3.Vector, bool) {
	p, ok := s.solid.PointOnSurface(rng)
	return s.t.Apply(p), ok
}

func (s *Displaced) Extent() geom.Extent {
	return CalculateExtent(s.solid, s.t)
}

func (s *Displaced) calculateExtent(t geom.Transform) geom.Extent {
	return CalculateExtent(s.solid, t.Compose(s.t))
}
