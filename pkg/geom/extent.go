package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Extent is an axis-aligned bounding box.
type Extent struct {
	Min, Max r3.Vector
}

// EmptyExtent returns an inverted extent that any Expand will overwrite.
func EmptyExtent() Extent {
	inf := math.Inf(1)
	return Extent{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// Symmetric returns the extent [-h, h] per axis.
func Symmetric(h r3.Vector) Extent {
	return Extent{Min: h.Mul(-1), Max: h}
}

// IsEmpty reports whether no point was ever added to e.
func (e Extent) IsEmpty() bool {
	return e.Min.X > e.Max.X || e.Min.Y > e.Max.Y || e.Min.Z > e.Max.Z
}

// Expand grows e to include p.
func (e Extent) Expand(p r3.Vector) Extent {
	return Extent{
		Min: r3.Vector{X: math.Min(e.Min.X, p.X), Y: math.Min(e.Min.Y, p.Y), Z: math.Min(e.Min.Z, p.Z)},
		Max: r3.Vector{X: math.Max(e.Max.X, p.X), Y: math.Max(e.Max.Y, p.Y), Z: math.Max(e.Max.Z, p.Z)},
	}
}

// Union returns the smallest extent containing e and o.
func (e Extent) Union(o Extent) Extent {
	if o.IsEmpty() {
		return e
	}
	return e.Expand(o.Min).Expand(o.Max)
}

// Size returns the edge lengths.
func (e Extent) Size() r3.Vector {
	return e.Max.Sub(e.Min)
}

// Center returns the midpoint.
func (e Extent) Center() r3.Vector {
	return e.Max.Add(e.Min).Mul(0.5)
}

// Contains reports whether p lies within e grown by eps.
func (e Extent) Contains(p r3.Vector, eps float64) bool {
	return p.X >= e.Min.X-eps && p.X <= e.Max.X+eps &&
		p.Y >= e.Min.Y-eps && p.Y <= e.Max.Y+eps &&
		p.Z >= e.Min.Z-eps && p.Z <= e.Max.Z+eps
}

// Overlaps reports whether e and o intersect, grown by eps.
func (e Extent) Overlaps(o Extent, eps float64) bool {
	return e.Min.X <= o.Max.X+eps && o.Min.X <= e.Max.X+eps &&
		e.Min.Y <= o.Max.Y+eps && o.Min.Y <= e.Max.Y+eps &&
		e.Min.Z <= o.Max.Z+eps && o.Min.Z <= e.Max.Z+eps
}

// Distance returns the distance from p to e, zero when p is inside.
func (e Extent) Distance(p r3.Vector) float64 {
	dx := math.Max(0, math.Max(e.Min.X-p.X, p.X-e.Max.X))
	dy := math.Max(0, math.Max(e.Min.Y-p.Y, p.Y-e.Max.Y))
	dz := math.Max(0, math.Max(e.Min.Z-p.Z, p.Z-e.Max.Z))
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Corners returns the eight corners of e.
func (e Extent) Corners() [8]r3.Vector {
	var c [8]r3.Vector
	for i := 0; i < 8; i++ {
		c[i] = r3.Vector{X: e.Min.X, Y: e.Min.Y, Z: e.Min.Z}
		if i&1 != 0 {
			c[i].X = e.Max.X
		}
		if i&2 != 0 {
			c[i].Y = e.Max.Y
		}
		if i&4 != 0 {
			c[i].Z = e.Max.Z
		}
	}
	return c
}

// Transform returns the axis-aligned extent of e's corners under t.
func (e Extent) Transform(t Transform) Extent {
	if t.IsIdentity() {
		return e
	}
	out := EmptyExtent()
	for _, c := range e.Corners() {
		out = out.Expand(t.Apply(c))
	}
	return out
}

// Axis returns the component of v along axis 0, 1 or 2.
func Axis(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Vec converts an (x, y, z) triple.
func Vec(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

// Array3 returns the components of v scaled by 1/unit.
func Array3(v r3.Vector, unit float64) [3]float64 {
	return [3]float64{v.X / unit, v.Y / unit, v.Z / unit}
}

// Array returns ([min x, max x, min y, max y, min z, max z]) scaled by 1/unit.
func (e Extent) Array(unit float64) [6]float64 {
	return [6]float64{
		e.Min.X / unit, e.Max.X / unit,
		e.Min.Y / unit, e.Max.Y / unit,
		e.Min.Z / unit, e.Max.Z / unit,
	}
}
