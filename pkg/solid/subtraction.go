package solid

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

const (
	// maxBooleanSteps bounds the surface hopping of DistanceToIn.
	maxBooleanSteps = 10000
	// estimateSamples is the Monte Carlo budget of area and volume estimates.
	estimateSamples = 200000
	// maxSurfaceTrials bounds the rejection loop of PointOnSurface.
	maxSurfaceTrials = 100000
)

// Subtraction is the boolean difference a − b, where b is placed in a's
// frame by t.
type Subtraction struct {
	base
	a, b Solid
	t    geom.Transform

	once   sync.Once
	area   float64
	volume float64
}

// NewSubtraction returns a − b with b placed by t in a's frame.
func NewSubtraction(name string, a, b Solid, t geom.Transform) *Subtraction {
	return &Subtraction{base: base{name}, a: a, b: b, t: t}
}

func (s *Subtraction) Kind() Kind { return KindSubtraction }

// Constituents returns the minuend, the subtrahend and the subtrahend
// placement.
func (s *Subtraction) Constituents() (Solid, Solid, geom.Transform) {
	return s.a, s.b, s.t
}

func (s *Subtraction) Inside(p r3.Vector) EInside {
	ia := s.a.Inside(p)
	if ia == Outside {
		return Outside
	}
	pb := s.t.InverseApply(p)
	ib := s.b.Inside(pb)
	switch {
	case ib == Outside:
		return ia
	case ib == Inside:
		return Outside
	case ia == Inside:
		return Surface
	}
	// On both surfaces: coincident faces with the same orientation leave
	// nothing behind.
	na := s.a.SurfaceNormal(p)
	nb := s.t.ApplyAxis(s.b.SurfaceNormal(pb))
	if na.Sub(nb).Norm2() < 1000*geom.AngTolerance {
		return Outside
	}
	return Surface
}

func (s *Subtraction) SurfaceNormal(p r3.Vector) r3.Vector {
	pb := s.t.InverseApply(p)
	if s.a.Inside(p) == Surface && s.b.Inside(pb) != Inside {
		return s.a.SurfaceNormal(p)
	}
	if s.b.Inside(pb) == Surface && s.a.Inside(p) != Outside {
		return s.t.ApplyAxis(s.b.SurfaceNormal(pb)).Mul(-1)
	}
	// Off the surface, take the closest constituent.
	if s.a.SafetyToOut(p) < s.b.SafetyToIn(pb) {
		return s.a.SurfaceNormal(p)
	}
	return s.t.ApplyAxis(s.b.SurfaceNormal(pb)).Mul(-1)
}

func (s *Subtraction) SafetyToIn(p r3.Vector) float64 {
	pb := s.t.InverseApply(p)
	if s.a.Inside(p) != Outside && s.b.Inside(pb) != Outside {
		return s.b.SafetyToOut(pb)
	}
	return s.a.SafetyToIn(p)
}

func (s *Subtraction) SafetyToOut(p r3.Vector) float64 {
	if s.Inside(p) == Outside {
		return 0
	}
	return math.Min(s.a.SafetyToOut(p), s.b.SafetyToIn(s.t.InverseApply(p)))
}

// DistanceToIn hops between the constituent surfaces until it reaches a
// point of a that is not swallowed by b.
func (s *Subtraction) DistanceToIn(p, d r3.Vector) float64 {
	db := s.t.InverseApplyAxis(d)
	dist := 0.0
	for i := 0; i < maxBooleanSteps; i++ {
		q := p.Add(d.Mul(dist))
		qb := s.t.InverseApply(q)
		if s.b.Inside(qb) != Outside {
			if step := s.b.DistanceToOut(qb, db); step > geom.HalfTolerance {
				dist += step
				continue
			}
		}
		switch s.a.Inside(q) {
		case Inside:
			return dist
		case Surface:
			if s.a.DistanceToOut(q, d) > geom.HalfTolerance {
				return dist
			}
		}
		step := s.a.DistanceToIn(q, d)
		if step >= geom.Infinity {
			return geom.Infinity
		}
		if step < geom.HalfTolerance {
			step = geom.HalfTolerance
		}
		dist += step
	}
	return geom.Infinity
}

func (s *Subtraction) DistanceToOut(p, d r3.Vector) float64 {
	toA := s.a.DistanceToOut(p, d)
	toB := s.b.DistanceToIn(s.t.InverseApply(p), s.t.InverseApplyAxis(d))
	return math.Min(toA, toB)
}

// PointOnSurface rejects the surface points of a inside b and those of b
// outside a. It gives up after maxSurfaceTrials rejections, which happens
// when b swallows a.
func (s *Subtraction) PointOnSurface(rng Rand) (r3.Vector, bool) {
	areaA, areaB := s.a.SurfaceArea(), s.b.SurfaceArea()
	for i := 0; i < maxSurfaceTrials; i++ {
		if rng.Float64()*(areaA+areaB) < areaA {
			p, ok := s.a.PointOnSurface(rng)
			if ok && s.b.Inside(s.t.InverseApply(p)) == Outside {
				return p, true
			}
		} else {
			p, ok := s.b.PointOnSurface(rng)
			if !ok {
				continue
			}
			if p = s.t.Apply(p); s.a.Inside(p) == Inside {
				return p, true
			}
		}
	}
	return r3.Vector{}, false
}

// estimate computes the area and volume by Monte Carlo sampling with a
// fixed seed, so repeated calls agree.
func (s *Subtraction) estimate() {
	rng := rand.New(rand.NewPCG(0x5eed, uint64(len(s.name))))

	var keptA, keptB int
	for i := 0; i < estimateSamples; i++ {
		if p, ok := s.a.PointOnSurface(rng); ok && s.b.Inside(s.t.InverseApply(p)) == Outside {
			keptA++
		}
		if p, ok := s.b.PointOnSurface(rng); ok && s.a.Inside(s.t.Apply(p)) == Inside {
			keptB++
		}
	}
	n := float64(estimateSamples)
	s.area = s.a.SurfaceArea()*float64(keptA)/n + s.b.SurfaceArea()*float64(keptB)/n

	ext := s.a.Extent()
	size := ext.Size()
	var inside int
	for i := 0; i < estimateSamples; i++ {
		p := r3.Vector{
			X: ext.Min.X + size.X*rng.Float64(),
			Y: ext.Min.Y + size.Y*rng.Float64(),
			Z: ext.Min.Z + size.Z*rng.Float64(),
		}
		if s.Inside(p) != Outside {
			inside++
		}
	}
	s.volume = size.X * size.Y * size.Z * float64(inside) / n
}

func (s *Subtraction) SurfaceArea() float64 {
	s.once.Do(s.estimate)
	return s.area
}

func (s *Subtraction) CubicVolume() float64 {
	s.once.Do(s.estimate)
	return s.volume
}

func (s *Subtraction) Extent() geom.Extent {
	return s.a.Extent()
}

func (s *Subtraction) calculateExtent(t geom.Transform) geom.Extent {
	return CalculateExtent(s.a, t)
}
