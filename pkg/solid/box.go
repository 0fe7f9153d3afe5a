package solid

import (
	"fmt"
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// Box is a rectangular cuboid centred on the origin.
type Box struct {
	base
	dx, dy, dz float64 // half lengths
}

// NewBox returns a box with the given half lengths.
func NewBox(name string, dx, dy, dz float64) (*Box, error) {
	if dx < 2*geom.CarTolerance || dy < 2*geom.CarTolerance || dz < 2*geom.CarTolerance {
		return nil, fmt.Errorf("solid: box %q: half lengths (%g, %g, %g) too small", name, dx, dy, dz)
	}
	return &Box{base: base{name}, dx: dx, dy: dy, dz: dz}, nil
}

func (b *Box) Kind() Kind { return KindBox }

// HalfLengths returns the half lengths along x, y and z.
func (b *Box) HalfLengths() r3.Vector { return r3.Vector{X: b.dx, Y: b.dy, Z: b.dz} }

func (b *Box) SurfaceArea() float64 {
	return 8 * (b.dx*b.dy + b.dy*b.dz + b.dz*b.dx)
}

func (b *Box) CubicVolume() float64 {
	return 8 * b.dx * b.dy * b.dz
}

func (b *Box) distance(p r3.Vector) float64 {
	return math.Max(math.Max(math.Abs(p.X)-b.dx, math.Abs(p.Y)-b.dy), math.Abs(p.Z)-b.dz)
}

func (b *Box) Inside(p r3.Vector) EInside {
	return classify(b.distance(p))
}

func (b *Box) SafetyToIn(p r3.Vector) float64 {
	return math.Max(0, b.distance(p))
}

func (b *Box) SafetyToOut(p r3.Vector) float64 {
	return math.Max(0, -b.distance(p))
}

func (b *Box) SurfaceNormal(p r3.Vector) r3.Vector {
	const delta = geom.HalfTolerance
	var n r3.Vector
	if math.Abs(math.Abs(p.X)-b.dx) <= delta {
		n.X = math.Copysign(1, p.X)
	}
	if math.Abs(math.Abs(p.Y)-b.dy) <= delta {
		n.Y = math.Copysign(1, p.Y)
	}
	if math.Abs(math.Abs(p.Z)-b.dz) <= delta {
		n.Z = math.Copysign(1, p.Z)
	}
	if n.Norm2() > 0 {
		return n.Normalize()
	}
	// Off the surface, use the closest face.
	ex := math.Abs(math.Abs(p.X) - b.dx)
	ey := math.Abs(math.Abs(p.Y) - b.dy)
	ez := math.Abs(math.Abs(p.Z) - b.dz)
	switch {
	case ex <= ey && ex <= ez:
		return r3.Vector{X: math.Copysign(1, p.X)}
	case ey <= ez:
		return r3.Vector{Y: math.Copysign(1, p.Y)}
	default:
		return r3.Vector{Z: math.Copysign(1, p.Z)}
	}
}

// slab returns the entry and exit parameters of the line p+t·d across the
// slab |x| <= h.
func slab(p, d, h float64) (tmin, tmax float64) {
	if d == 0 {
		if math.Abs(p) <= h {
			return math.Inf(-1), math.Inf(1)
		}
		return math.Inf(1), math.Inf(-1)
	}
	inv := 1 / d
	t0 := (-h - p) * inv
	t1 := (h - p) * inv
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	return t0, t1
}

func (b *Box) DistanceToIn(p, d r3.Vector) float64 {
	const delta = geom.HalfTolerance
	// On the surface and moving away.
	if (math.Abs(p.X)-b.dx) >= -delta && p.X*d.X >= 0 ||
		(math.Abs(p.Y)-b.dy) >= -delta && p.Y*d.Y >= 0 ||
		(math.Abs(p.Z)-b.dz) >= -delta && p.Z*d.Z >= 0 {
		return geom.Infinity
	}
	txmin, txmax := slab(p.X, d.X, b.dx)
	tymin, tymax := slab(p.Y, d.Y, b.dy)
	tzmin, tzmax := slab(p.Z, d.Z, b.dz)
	tmin := math.Max(math.Max(txmin, tymin), tzmin)
	tmax := math.Min(math.Min(txmax, tymax), tzmax)
	if tmax <= tmin+delta {
		return geom.Infinity
	}
	if tmin < delta {
		return 0
	}
	return tmin
}

func (b *Box) DistanceToOut(p, d r3.Vector) float64 {
	const delta = geom.HalfTolerance
	if (math.Abs(p.X)-b.dx) >= -delta && p.X*d.X > 0 ||
		(math.Abs(p.Y)-b.dy) >= -delta && p.Y*d.Y > 0 ||
		(math.Abs(p.Z)-b.dz) >= -delta && p.Z*d.Z > 0 {
		return 0
	}
	exit := func(p, d, h float64) float64 {
		if d == 0 {
			return math.MaxFloat64
		}
		return (math.Copysign(h, d) - p) / d
	}
	t := math.Min(math.Min(exit(p.X, d.X, b.dx), exit(p.Y, d.Y, b.dy)), exit(p.Z, d.Z, b.dz))
	return math.Max(t, 0)
}

func (b *Box) PointOnSurface(rng Rand) (r3.Vector, bool) {
	sxy, syz, szx := b.dx*b.dy, b.dy*b.dz, b.dz*b.dx
	u := rng.Float64() * (sxy + syz + szx)
	a := 2*rng.Float64() - 1
	c := 2*rng.Float64() - 1
	sign := 1.0
	if rng.Float64() < 0.5 {
		sign = -1.0
	}
	switch {
	case u < sxy:
		return r3.Vector{X: a * b.dx, Y: c * b.dy, Z: sign * b.dz}, true
	case u < sxy+syz:
		return r3.Vector{X: sign * b.dx, Y: a * b.dy, Z: c * b.dz}, true
	default:
		return r3.Vector{X: c * b.dx, Y: sign * b.dy, Z: a * b.dz}, true
	}
}

func (b *Box) Extent() geom.Extent {
	return geom.Symmetric(b.HalfLengths())
}
