package solid

import (
	"fmt"
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// Tubs is a cylindrical section: radii [rmin, rmax], half length dz along
// the z axis and an azimuthal section. rmin = 0 gives a full cylinder and
// a 2π section a closed one.
type Tubs struct {
	base
	rmin, rmax, dz float64
	phi            phiSection
}

// NewTubs returns a cylindrical section. Angles are in radians.
func NewTubs(name string, rmin, rmax, dz, sphi, dphi float64) (*Tubs, error) {
	if rmin < 0 || rmax <= rmin+geom.CarTolerance {
		return nil, fmt.Errorf("solid: tubs %q: bad radii (%g, %g)", name, rmin, rmax)
	}
	if dz < geom.CarTolerance {
		return nil, fmt.Errorf("solid: tubs %q: bad half length %g", name, dz)
	}
	if dphi <= 0 {
		return nil, fmt.Errorf("solid: tubs %q: empty section %g", name, dphi)
	}
	if rmin < geom.CarTolerance {
		rmin = 0
	}
	return &Tubs{base: base{name}, rmin: rmin, rmax: rmax, dz: dz, phi: newPhiSection(sphi, dphi)}, nil
}

func (s *Tubs) Kind() Kind { return KindTubs }

// Dimensions returns rmin, rmax, the half length and the section start and
// span in radians.
func (s *Tubs) Dimensions() (rmin, rmax, dz, sphi, dphi float64) {
	return s.rmin, s.rmax, s.dz, s.phi.start, s.phi.delta
}

func (s *Tubs) SurfaceArea() float64 {
	dphi := s.phi.delta
	area := dphi * (s.rmax + s.rmin) * 2 * s.dz
	area += dphi * (s.rmax*s.rmax - s.rmin*s.rmin)
	if !s.phi.full {
		area += 4 * (s.rmax - s.rmin) * s.dz
	}
	return area
}

func (s *Tubs) CubicVolume() float64 {
	return s.phi.delta * s.dz * (s.rmax*s.rmax - s.rmin*s.rmin)
}

func (s *Tubs) signedDistance(p r3.Vector) (float64, r3.Vector) {
	rho := math.Hypot(p.X, p.Y)
	radial := r3.Vector{X: 1}
	if rho > 0 {
		radial = r3.Vector{X: p.X / rho, Y: p.Y / rho}
	}

	d := math.Abs(p.Z) - s.dz
	n := r3.Vector{Z: math.Copysign(1, p.Z)}
	if v := rho - s.rmax; v > d {
		d, n = v, radial
	}
	if s.rmin > 0 {
		if v := s.rmin - rho; v > d {
			d, n = v, radial.Mul(-1)
		}
	}
	if !s.phi.full {
		if v, np := s.phi.distance(p); v > d {
			d, n = v, np
		}
	}
	return d, n
}

func (s *Tubs) intersections(p, d r3.Vector, hits []hit) []hit {
	hits = planeHit(p, d, r3.Vector{Z: 1}, s.dz, hits)
	hits = planeHit(p, d, r3.Vector{Z: -1}, s.dz, hits)
	hits = cylinderHits(p, d, s.rmax, 1, hits)
	if s.rmin > 0 {
		hits = cylinderHits(p, d, s.rmin, -1, hits)
	}
	return s.phi.hits(p, d, hits)
}

func (s *Tubs) Inside(p r3.Vector) EInside {
	d, _ := s.signedDistance(p)
	return classify(d)
}

func (s *Tubs) SurfaceNormal(p r3.Vector) r3.Vector {
	_, n := s.signedDistance(p)
	return n
}

func (s *Tubs) SafetyToIn(p r3.Vector) float64 {
	d, _ := s.signedDistance(p)
	return math.Max(0, d)
}

func (s *Tubs) SafetyToOut(p r3.Vector) float64 {
	d, _ := s.signedDistance(p)
	return math.Max(0, -d)
}

func (s *Tubs) DistanceToIn(p, d r3.Vector) float64 {
	return boundedDistanceToIn(s, p, d)
}

func (s *Tubs) DistanceToOut(p, d r3.Vector) float64 {
	return boundedDistanceToOut(s, p, d)
}

func (s *Tubs) PointOnSurface(rng Rand) (r3.Vector, bool) {
	dphi := s.phi.delta
	r2 := s.rmax*s.rmax - s.rmin*s.rmin
	weights := []float64{
		dphi * s.rmax * 2 * s.dz, // outer wall
		dphi * s.rmin * 2 * s.dz, // inner wall
		0.5 * dphi * r2,          // +z cap
		0.5 * dphi * r2,          // -z cap
		0, 0,
	}
	if !s.phi.full {
		weights[4] = 2 * (s.rmax - s.rmin) * s.dz
		weights[5] = weights[4]
	}
	z := s.dz * (2*rng.Float64() - 1)
	switch pick(rng, weights) {
	case 0:
		phi := s.phi.sample(rng)
		return r3.Vector{X: s.rmax * math.Cos(phi), Y: s.rmax * math.Sin(phi), Z: z}, true
	case 1:
		phi := s.phi.sample(rng)
		return r3.Vector{X: s.rmin * math.Cos(phi), Y: s.rmin * math.Sin(phi), Z: z}, true
	case 2, 3:
		zc := s.dz
		if rng.Float64() < 0.5 {
			zc = -s.dz
		}
		phi := s.phi.sample(rng)
		r := radialSample(rng, s.rmin, s.rmax)
		return r3.Vector{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: zc}, true
	default:
		phi := s.phi.start
		if rng.Float64() < 0.5 {
			phi += s.phi.delta
		}
		r := s.rmin + (s.rmax-s.rmin)*rng.Float64()
		return r3.Vector{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}, true
	}
}

func (s *Tubs) Extent() geom.Extent {
	if s.phi.full {
		return geom.Symmetric(r3.Vector{X: s.rmax, Y: s.rmax, Z: s.dz})
	}
	e := geom.EmptyExtent()
	for _, phi := range s.phi.extremes() {
		c, sn := math.Cos(phi), math.Sin(phi)
		for _, r := range [2]float64{s.rmin, s.rmax} {
			for _, z := range [2]float64{-s.dz, s.dz} {
				e = e.Expand(r3.Vector{X: r * c, Y: r * sn, Z: z})
			}
		}
	}
	return e
}

// calculateExtent bounds the two rim polygons under t. The polygon is
// circumscribed so the bound stays conservative.
func (s *Tubs) calculateExtent(t geom.Transform) geom.Extent {
	const segments = 72
	if !s.phi.full {
		return s.Extent().Transform(t)
	}
	rOut := s.rmax / math.Cos(math.Pi/segments)
	e := geom.EmptyExtent()
	for i := 0; i < segments; i++ {
		phi := 2 * math.Pi * float64(i) / segments
		x, y := rOut*math.Cos(phi), rOut*math.Sin(phi)
		e = e.Expand(t.Apply(r3.Vector{X: x, Y: y, Z: -s.dz}))
		e = e.Expand(t.Apply(r3.Vector{X: x, Y: y, Z: s.dz}))
	}
	// Never looser than the transformed box.
	box := s.Extent().Transform(t)
	return intersectExtent(e, box)
}
