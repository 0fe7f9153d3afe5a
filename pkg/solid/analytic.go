package solid

import (
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// hit is the intersection of a ray with one bounding surface of a shape.
// n is the outward normal of the shape at the hit point.
type hit struct {
	t float64
	n r3.Vector
}

// bounded is implemented by shapes described as an intersection of
// bounding surfaces (tube and sphere sections). The generic queries below
// are derived from it.
type bounded interface {
	// signedDistance returns an approximate signed distance to the shape,
	// negative inside and exact in sign, and the outward normal of the
	// closest bounding surface.
	signedDistance(p r3.Vector) (float64, r3.Vector)
	// intersections appends the hits of the line p+t·d with every
	// bounding surface, regardless of whether the hit lies on the shape.
	intersections(p, d r3.Vector, hits []hit) []hit
}

// onBoundary reports whether q lies within the surface band.
func onBoundary(s bounded, q r3.Vector) bool {
	dist, _ := s.signedDistance(q)
	return math.Abs(dist) <= geom.HalfTolerance
}

func boundedDistanceToIn(s bounded, p, d r3.Vector) float64 {
	var buf [12]hit
	best := geom.Infinity
	for _, h := range s.intersections(p, d, buf[:0]) {
		if h.t < -geom.HalfTolerance || h.t >= best || h.n.Dot(d) >= 0 {
			continue
		}
		if onBoundary(s, p.Add(d.Mul(h.t))) {
			best = h.t
		}
	}
	if best >= geom.Infinity {
		return geom.Infinity
	}
	return math.Max(best, 0)
}

func boundedDistanceToOut(s bounded, p, d r3.Vector) float64 {
	var buf [12]hit
	best := geom.Infinity
	for _, h := range s.intersections(p, d, buf[:0]) {
		if h.t < -geom.HalfTolerance || h.t >= best || h.n.Dot(d) <= 0 {
			continue
		}
		if onBoundary(s, p.Add(d.Mul(h.t))) {
			best = h.t
		}
	}
	if best >= geom.Infinity {
		return 0
	}
	return math.Max(best, 0)
}

// planeHit intersects the line p+t·d with the plane n·x = c, n being the
// outward normal of the shape on that plane.
func planeHit(p, d, n r3.Vector, c float64, hits []hit) []hit {
	den := n.Dot(d)
	if den == 0 {
		return hits
	}
	return append(hits, hit{t: (c - n.Dot(p)) / den, n: n})
}

// cylinderHits intersects the line with the infinite cylinder x²+y² = r².
// outward selects the normal orientation: +1 for an outer wall, -1 for an
// inner wall.
func cylinderHits(p, d r3.Vector, r, outward float64, hits []hit) []hit {
	a := d.X*d.X + d.Y*d.Y
	if a == 0 {
		return hits
	}
	b := p.X*d.X + p.Y*d.Y
	c := p.X*p.X + p.Y*p.Y - r*r
	disc := b*b - a*c
	if disc < 0 {
		return hits
	}
	sq := math.Sqrt(disc)
	for _, t := range [2]float64{(-b - sq) / a, (-b + sq) / a} {
		q := p.Add(d.Mul(t))
		n := r3.Vector{X: q.X, Y: q.Y}.Mul(outward / r)
		hits = append(hits, hit{t: t, n: n})
	}
	return hits
}

// sphereHits intersects the line with the sphere |x| = r.
func sphereHits(p, d r3.Vector, r, outward float64, hits []hit) []hit {
	a := d.Norm2()
	b := p.Dot(d)
	c := p.Norm2() - r*r
	disc := b*b - a*c
	if disc < 0 {
		return hits
	}
	sq := math.Sqrt(disc)
	for _, t := range [2]float64{(-b - sq) / a, (-b + sq) / a} {
		q := p.Add(d.Mul(t))
		hits = append(hits, hit{t: t, n: q.Mul(outward / r)})
	}
	return hits
}

// phiSection is an azimuthal section [start, start+delta] about the z axis.
// Spans of 2π or more are closed.
type phiSection struct {
	full         bool
	start, delta float64
	ns, ne       r3.Vector // outward normals of the start and end planes
}

func newPhiSection(start, delta float64) phiSection {
	if delta >= 2*math.Pi-geom.AngTolerance {
		return phiSection{full: true, start: 0, delta: 2 * math.Pi}
	}
	start = math.Mod(start, 2*math.Pi)
	if start < 0 {
		start += 2 * math.Pi
	}
	end := start + delta
	return phiSection{
		start: start,
		delta: delta,
		ns:    r3.Vector{X: math.Sin(start), Y: -math.Cos(start)},
		ne:    r3.Vector{X: -math.Sin(end), Y: math.Cos(end)},
	}
}

// distance returns the signed distance of p to the wedge and the matching
// outward normal. Sections up to π are the intersection of two
// half-spaces, wider ones their union.
func (s phiSection) distance(p r3.Vector) (float64, r3.Vector) {
	ds, de := s.ns.Dot(p), s.ne.Dot(p)
	if s.delta <= math.Pi {
		if ds > de {
			return ds, s.ns
		}
		return de, s.ne
	}
	if ds < de {
		return ds, s.ns
	}
	return de, s.ne
}

func (s phiSection) hits(p, d r3.Vector, hits []hit) []hit {
	if s.full {
		return hits
	}
	hits = planeHit(p, d, s.ns, 0, hits)
	return planeHit(p, d, s.ne, 0, hits)
}

// contains reports whether the azimuth phi lies in the section.
func (s phiSection) contains(phi float64) bool {
	if s.full {
		return true
	}
	rel := math.Mod(phi-s.start, 2*math.Pi)
	if rel < 0 {
		rel += 2 * math.Pi
	}
	return rel <= s.delta+geom.AngTolerance
}

// sample returns an azimuth uniformly distributed in the section.
func (s phiSection) sample(rng Rand) float64 {
	return s.start + s.delta*rng.Float64()
}

// extremes returns the azimuths at which planar extents are reached:
// the section edges and the axis directions it contains.
func (s phiSection) extremes() []float64 {
	if s.full {
		return []float64{0, 0.5 * math.Pi, math.Pi, 1.5 * math.Pi}
	}
	out := []float64{s.start, s.start + s.delta}
	for _, a := range [4]float64{0, 0.5 * math.Pi, math.Pi, 1.5 * math.Pi} {
		if s.contains(a) {
			out = append(out, a)
		}
	}
	return out
}

// pick chooses an index with probability proportional to weights.
func pick(rng Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	u := rng.Float64() * total
	for i, w := range weights {
		if u < w {
			return i
		}
		u -= w
	}
	return len(weights) - 1
}

// radialSample draws a radius in [rmin, rmax] with density proportional
// to r, uniform over an annulus.
func radialSample(rng Rand, rmin, rmax float64) float64 {
	return math.Sqrt(rmin*rmin + rng.Float64()*(rmax*rmax-rmin*rmin))
}
