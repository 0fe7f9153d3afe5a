package solid

import (
	"fmt"
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// Orb is a full solid sphere.
type Orb struct {
	base
	r float64
}

// NewOrb returns a full sphere of radius r.
func NewOrb(name string, r float64) (*Orb, error) {
	if r < 10*geom.CarTolerance {
		return nil, fmt.Errorf("solid: orb %q: bad radius %g", name, r)
	}
	return &Orb{base: base{name}, r: r}, nil
}

func (o *Orb) Kind() Kind { return KindOrb }

// Radius returns the orb radius.
func (o *Orb) Radius() float64 { return o.r }

func (o *Orb) SurfaceArea() float64 { return 4 * math.Pi * o.r * o.r }
func (o *Orb) CubicVolume() float64 { return 4.0 / 3.0 * math.Pi * o.r * o.r * o.r }

func (o *Orb) Inside(p r3.Vector) EInside {
	return classify(p.Norm() - o.r)
}

func (o *Orb) SurfaceNormal(p r3.Vector) r3.Vector {
	if p.Norm2() == 0 {
		return r3.Vector{Z: 1}
	}
	return p.Normalize()
}

func (o *Orb) SafetyToIn(p r3.Vector) float64  { return math.Max(0, p.Norm()-o.r) }
func (o *Orb) SafetyToOut(p r3.Vector) float64 { return math.Max(0, o.r-p.Norm()) }

func (o *Orb) DistanceToIn(p, d r3.Vector) float64 {
	rr := p.Norm2()
	pd := p.Dot(d)
	// On the surface and not moving inward.
	if rr-o.r*o.r >= -2*o.r*geom.HalfTolerance && pd >= 0 {
		return geom.Infinity
	}
	disc := pd*pd - (rr - o.r*o.r)
	if disc <= 0 {
		return geom.Infinity
	}
	t := -pd - math.Sqrt(disc)
	if t < geom.HalfTolerance {
		return 0
	}
	return t
}

func (o *Orb) DistanceToOut(p, d r3.Vector) float64 {
	rr := p.Norm2()
	pd := p.Dot(d)
	if rr-o.r*o.r >= -2*o.r*geom.HalfTolerance && pd > 0 {
		return 0
	}
	disc := pd*pd - (rr - o.r*o.r)
	if disc < 0 {
		return 0
	}
	return math.Max(0, -pd+math.Sqrt(disc))
}

func (o *Orb) PointOnSurface(rng Rand) (r3.Vector, bool) {
	cost := 2*rng.Float64() - 1
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	phi := 2 * math.Pi * rng.Float64()
	return r3.Vector{X: o.r * sint * math.Cos(phi), Y: o.r * sint * math.Sin(phi), Z: o.r * cost}, true
}

func (o *Orb) Extent() geom.Extent {
	return geom.Symmetric(r3.Vector{X: o.r, Y: o.r, Z: o.r})
}

func (o *Orb) calculateExtent(t geom.Transform) geom.Extent {
	c := t.Trans
	h := r3.Vector{X: o.r, Y: o.r, Z: o.r}
	return geom.Extent{Min: c.Sub(h), Max: c.Add(h)}
}

// Sphere is a spherical shell section: radii [rmin, rmax], an azimuthal
// section and a zenith section [stheta, stheta+dtheta] measured from +z.
type Sphere struct {
	base
	rmin, rmax     float64
	phi            phiSection
	stheta, etheta float64
}

// NewSphere returns a spherical section. Angles are in radians.
func NewSphere(name string, rmin, rmax, sphi, dphi, stheta, dtheta float64) (*Sphere, error) {
	if rmin < 0 || rmax <= rmin+geom.CarTolerance {
		return nil, fmt.Errorf("solid: sphere %q: bad radii (%g, %g)", name, rmin, rmax)
	}
	if dphi <= 0 || dtheta <= 0 || stheta < 0 || stheta+dtheta > math.Pi+geom.AngTolerance {
		return nil, fmt.Errorf("solid: sphere %q: bad section (phi %g+%g, theta %g+%g)",
			name, sphi, dphi, stheta, dtheta)
	}
	if rmin < geom.CarTolerance {
		rmin = 0
	}
	etheta := math.Min(stheta+dtheta, math.Pi)
	if stheta < geom.AngTolerance {
		stheta = 0
	}
	if etheta > math.Pi-geom.AngTolerance {
		etheta = math.Pi
	}
	return &Sphere{
		base:   base{name},
		rmin:   rmin,
		rmax:   rmax,
		phi:    newPhiSection(sphi, dphi),
		stheta: stheta,
		etheta: etheta,
	}, nil
}

func (s *Sphere) Kind() Kind { return KindSphere }

// Dimensions returns the radii and the sections in radians.
func (s *Sphere) Dimensions() (rmin, rmax, sphi, dphi, stheta, dtheta float64) {
	return s.rmin, s.rmax, s.phi.start, s.phi.delta, s.stheta, s.etheta - s.stheta
}

func (s *Sphere) fullTheta() bool {
	return s.stheta == 0 && s.etheta == math.Pi
}

func (s *Sphere) SurfaceArea() float64 {
	dphi := s.phi.delta
	dcos := math.Cos(s.stheta) - math.Cos(s.etheta)
	r2 := s.rmax*s.rmax - s.rmin*s.rmin
	area := dphi * dcos * (s.rmax*s.rmax + s.rmin*s.rmin)
	if !s.phi.full {
		area += (s.etheta - s.stheta) * r2
	}
	if s.stheta > 0 {
		area += 0.5 * dphi * math.Sin(s.stheta) * r2
	}
	if s.etheta < math.Pi {
		area += 0.5 * dphi * math.Sin(s.etheta) * r2
	}
	return area
}

func (s *Sphere) CubicVolume() float64 {
	dcos := math.Cos(s.stheta) - math.Cos(s.etheta)
	return s.phi.delta * dcos * (s.rmax*s.rmax*s.rmax - s.rmin*s.rmin*s.rmin) / 3
}

func (s *Sphere) signedDistance(p r3.Vector) (float64, r3.Vector) {
	r := p.Norm()
	rho := math.Hypot(p.X, p.Y)
	radial := r3.Vector{Z: 1}
	if r > 0 {
		radial = p.Mul(1 / r)
	}
	planar := r3.Vector{X: 1}
	if rho > 0 {
		planar = r3.Vector{X: p.X / rho, Y: p.Y / rho}
	}

	d, n := r-s.rmax, radial
	if s.rmin > 0 {
		if v := s.rmin - r; v > d {
			d, n = v, radial.Mul(-1)
		}
	}
	if !s.phi.full {
		if v, np := s.phi.distance(p); v > d {
			d, n = v, np
		}
	}
	if s.stheta > 0 {
		c, sn := math.Cos(s.stheta), math.Sin(s.stheta)
		if v := p.Z*sn - rho*c; v > d {
			d, n = v, planar.Mul(-c).Add(r3.Vector{Z: sn})
		}
	}
	if s.etheta < math.Pi {
		c, sn := math.Cos(s.etheta), math.Sin(s.etheta)
		if v := rho*c - p.Z*sn; v > d {
			d, n = v, planar.Mul(c).Add(r3.Vector{Z: -sn})
		}
	}
	return d, n
}

// coneHits intersects the line with the cone of half angle theta about
// +z. outward is +1 when the shape lies at larger zenith angles.
func coneHits(p, d r3.Vector, theta, outward float64, hits []hit) []hit {
	c, sn := math.Cos(theta), math.Sin(theta)
	if math.Abs(c) < 1e-12 {
		// The cone degenerates into the z = 0 plane.
		return planeHit(p, d, r3.Vector{Z: -sn * outward}, 0, hits)
	}
	c2, s2 := c*c, sn*sn
	a := (d.X*d.X+d.Y*d.Y)*c2 - d.Z*d.Z*s2
	b := (p.X*d.X+p.Y*d.Y)*c2 - p.Z*d.Z*s2
	k := (p.X*p.X+p.Y*p.Y)*c2 - p.Z*p.Z*s2
	var roots [2]float64
	nroots := 0
	if math.Abs(a) < 1e-15 {
		if b != 0 {
			roots[0] = -k / (2 * b)
			nroots = 1
		}
	} else {
		disc := b*b - a*k
		if disc < 0 {
			return hits
		}
		sq := math.Sqrt(disc)
		roots[0], roots[1] = (-b-sq)/a, (-b+sq)/a
		nroots = 2
	}
	for _, t := range roots[:nroots] {
		q := p.Add(d.Mul(t))
		if q.Z*c < -geom.HalfTolerance {
			continue // mirror nappe
		}
		rho := math.Hypot(q.X, q.Y)
		if rho == 0 {
			continue
		}
		planar := r3.Vector{X: q.X / rho, Y: q.Y / rho}
		n := planar.Mul(c).Add(r3.Vector{Z: -sn}).Mul(outward)
		hits = append(hits, hit{t: t, n: n})
	}
	return hits
}

func (s *Sphere) intersections(p, d r3.Vector, hits []hit) []hit {
	hits = sphereHits(p, d, s.rmax, 1, hits)
	if s.rmin > 0 {
		hits = sphereHits(p, d, s.rmin, -1, hits)
	}
	hits = s.phi.hits(p, d, hits)
	if s.stheta > 0 {
		hits = coneHits(p, d, s.stheta, -1, hits)
	}
	if s.etheta < math.Pi {
		hits = coneHits(p, d, s.etheta, 1, hits)
	}
	return hits
}

func (s *Sphere) Inside(p r3.Vector) EInside {
	d, _ := s.signedDistance(p)
	return classify(d)
}

func (s *Sphere) SurfaceNormal(p r3.Vector) r3.Vector {
	_, n := s.signedDistance(p)
	return n
}

func (s *Sphere) SafetyToIn(p r3.Vector) float64 {
	d, _ := s.signedDistance(p)
	return math.Max(0, d)
}

func (s *Sphere) SafetyToOut(p r3.Vector) float64 {
	d, _ := s.signedDistance(p)
	return math.Max(0, -d)
}

func (s *Sphere) DistanceToIn(p, d r3.Vector) float64 {
	return boundedDistanceToIn(s, p, d)
}

func (s *Sphere) DistanceToOut(p, d r3.Vector) float64 {
	return boundedDistanceToOut(s, p, d)
}

func (s *Sphere) PointOnSurface(rng Rand) (r3.Vector, bool) {
	dphi := s.phi.delta
	cos0, cos1 := math.Cos(s.stheta), math.Cos(s.etheta)
	r2 := s.rmax*s.rmax - s.rmin*s.rmin
	weights := []float64{
		dphi * (cos0 - cos1) * s.rmax * s.rmax,
		dphi * (cos0 - cos1) * s.rmin * s.rmin,
		0, 0, 0,
	}
	if !s.phi.full {
		weights[2] = (s.etheta - s.stheta) * r2
	}
	if s.stheta > 0 {
		weights[3] = 0.5 * dphi * math.Sin(s.stheta) * r2
	}
	if s.etheta < math.Pi {
		weights[4] = 0.5 * dphi * math.Sin(s.etheta) * r2
	}
	polar := func(r, theta, phi float64) r3.Vector {
		st := math.Sin(theta)
		return r3.Vector{X: r * st * math.Cos(phi), Y: r * st * math.Sin(phi), Z: r * math.Cos(theta)}
	}
	switch pick(rng, weights) {
	case 0, 1:
		r := s.rmax
		if weights[1] > 0 && rng.Float64()*(s.rmax*s.rmax+s.rmin*s.rmin) < s.rmin*s.rmin {
			r = s.rmin
		}
		cost := cos1 + (cos0-cos1)*rng.Float64()
		return polar(r, math.Acos(cost), s.phi.sample(rng)), true
	case 2:
		phi := s.phi.start
		if rng.Float64() < 0.5 {
			phi += s.phi.delta
		}
		r := radialSample(rng, s.rmin, s.rmax)
		theta := s.stheta + (s.etheta-s.stheta)*rng.Float64()
		return polar(r, theta, phi), true
	case 3:
		return polar(radialSample(rng, s.rmin, s.rmax), s.stheta, s.phi.sample(rng)), true
	default:
		return polar(radialSample(rng, s.rmin, s.rmax), s.etheta, s.phi.sample(rng)), true
	}
}

func (s *Sphere) Extent() geom.Extent {
	if s.phi.full && s.fullTheta() {
		return geom.Symmetric(r3.Vector{X: s.rmax, Y: s.rmax, Z: s.rmax})
	}
	thetas := []float64{s.stheta, s.etheta}
	if s.stheta < 0.5*math.Pi && s.etheta > 0.5*math.Pi {
		thetas = append(thetas, 0.5*math.Pi)
	}
	e := geom.EmptyExtent()
	for _, r := range [2]float64{s.rmin, s.rmax} {
		for _, theta := range thetas {
			st, ct := math.Sin(theta), math.Cos(theta)
			for _, phi := range s.phi.extremes() {
				e = e.Expand(r3.Vector{X: r * st * math.Cos(phi), Y: r * st * math.Sin(phi), Z: r * ct})
			}
		}
	}
	return e
}
