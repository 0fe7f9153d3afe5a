package mesh

import (
	"math"
	"slices"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

const (
	// maxVoxelsPerAxis bounds the grid resolution.
	maxVoxelsPerAxis = 256
	// facetsPerVoxel is the targeted mean cell occupancy.
	facetsPerVoxel = 2
)

// Voxels is a uniform grid over the mesh extent. Each cell lists the facets
// whose bounding box overlaps it.
type Voxels struct {
	facets []Facet
	extent geom.Extent
	n      [3]int
	cell   r3.Vector
	cells  [][]int32
}

// NewVoxels builds the grid over facets. The slice is retained and must
// not be modified afterwards.
func NewVoxels(facets []Facet) (*Voxels, error) {
	v := &Voxels{facets: facets}
	if len(facets) == 0 {
		return v, nil
	}
	ext := geom.EmptyExtent()
	for i := range facets {
		ext = ext.Union(facets[i].Extent())
	}
	size := ext.Size()
	if math.IsNaN(size.X+size.Y+size.Z) || math.IsInf(size.X+size.Y+size.Z, 0) {
		return nil, ErrNonFinite
	}
	v.extent = padded(ext)
	size = v.extent.Size()

	target := math.Max(1, float64(len(facets))/facetsPerVoxel)
	edge := math.Cbrt(size.X * size.Y * size.Z / target)
	if edge <= 0 || math.IsNaN(edge) {
		edge = math.Max(size.X, math.Max(size.Y, size.Z))
	}
	for axis := 0; axis < 3; axis++ {
		n := int(math.Ceil(geom.Axis(size, axis) / edge))
		v.n[axis] = min(max(n, 1), maxVoxelsPerAxis)
	}
	v.cell = r3.Vector{
		X: size.X / float64(v.n[0]),
		Y: size.Y / float64(v.n[1]),
		Z: size.Z / float64(v.n[2]),
	}
	v.cells = make([][]int32, v.n[0]*v.n[1]*v.n[2])
	for i := range facets {
		lo := v.index(facets[i].Extent().Min)
		hi := v.index(facets[i].Extent().Max)
		for iz := lo[2]; iz <= hi[2]; iz++ {
			for iy := lo[1]; iy <= hi[1]; iy++ {
				for ix := lo[0]; ix <= hi[0]; ix++ {
					c := v.flat(ix, iy, iz)
					v.cells[c] = append(v.cells[c], int32(i))
				}
			}
		}
	}
	return v, nil
}

// Resolution returns the number of cells along each axis.
func (v *Voxels) Resolution() [3]int { return v.n }

// index returns the clamped cell coordinates of p.
func (v *Voxels) index(p r3.Vector) [3]int {
	var idx [3]int
	for axis := 0; axis < 3; axis++ {
		f := (geom.Axis(p, axis) - geom.Axis(v.extent.Min, axis)) / geom.Axis(v.cell, axis)
		i := int(math.Floor(f))
		idx[axis] = min(max(i, 0), v.n[axis]-1)
	}
	return idx
}

func (v *Voxels) flat(ix, iy, iz int) int {
	return ix + v.n[0]*(iy+v.n[1]*iz)
}

func (v *Voxels) cellBox(ix, iy, iz int) geom.Extent {
	lo := r3.Vector{
		X: v.extent.Min.X + float64(ix)*v.cell.X,
		Y: v.extent.Min.Y + float64(iy)*v.cell.Y,
		Z: v.extent.Min.Z + float64(iz)*v.cell.Z,
	}
	return geom.Extent{Min: lo, Max: lo.Add(v.cell)}
}

// traverse walks the cells pierced by the ray in order, calling visit with
// the cell index and the ray parameter at which the ray leaves it. The
// walk stops when visit returns false.
func (v *Voxels) traverse(p, d r3.Vector, visit func(cell int, tExit float64) bool) {
	if len(v.cells) == 0 {
		return
	}
	inv := reciprocal(d)
	tEnter, tLeave, ok := rayBox(v.extent, p, inv, math.Inf(1))
	if !ok {
		return
	}
	idx := v.index(p.Add(d.Mul(tEnter)))
	var step [3]int
	var tNext, tDelta [3]float64
	for axis := 0; axis < 3; axis++ {
		da := geom.Axis(d, axis)
		h := geom.Axis(v.cell, axis)
		lo := geom.Axis(v.extent.Min, axis) + float64(idx[axis])*h
		pa := geom.Axis(p, axis)
		switch {
		case da > 0:
			step[axis] = 1
			tNext[axis] = (lo + h - pa) / da
			tDelta[axis] = h / da
		case da < 0:
			step[axis] = -1
			tNext[axis] = (lo - pa) / da
			tDelta[axis] = -h / da
		default:
			tNext[axis] = math.Inf(1)
			tDelta[axis] = math.Inf(1)
		}
	}
	for {
		axis := 0
		if tNext[1] < tNext[axis] {
			axis = 1
		}
		if tNext[2] < tNext[axis] {
			axis = 2
		}
		exit := math.Min(tNext[axis], tLeave)
		if !visit(v.flat(idx[0], idx[1], idx[2]), exit) {
			return
		}
		if tNext[axis] > tLeave {
			return
		}
		idx[axis] += step[axis]
		if idx[axis] < 0 || idx[axis] >= v.n[axis] {
			return
		}
		tNext[axis] += tDelta[axis]
	}
}

func (v *Voxels) Intersect(p, d r3.Vector, side Side) (float64, int, bool) {
	best, bestIndex := math.Inf(1), -1
	v.traverse(p, d, func(cell int, tExit float64) bool {
		for _, i := range v.cells[cell] {
			if t, ok := v.facets[i].Intersect(p, d, side); ok && t < best {
				best, bestIndex = t, int(i)
			}
		}
		// A hit inside this cell cannot be beaten by later cells.
		return best > tExit+boxPad
	})
	if bestIndex < 0 {
		return 0, -1, false
	}
	return best, bestIndex, true
}

func (v *Voxels) Hits(p, d r3.Vector, side Side) int {
	var crossed []int32
	v.traverse(p, d, func(cell int, _ float64) bool {
		for _, i := range v.cells[cell] {
			if _, ok := v.facets[i].Intersect(p, d, side); ok {
				crossed = append(crossed, i)
			}
		}
		return true
	})
	// Facets spanning several cells are seen more than once.
	slices.Sort(crossed)
	crossed = slices.Compact(crossed)
	cs := make([]crossing, 0, len(crossed))
	for _, i := range crossed {
		f := &v.facets[i]
		t, _ := f.Intersect(p, d, side)
		cs = append(cs, newCrossing(f, d, t))
	}
	return countCrossings(cs)
}

func (v *Voxels) Closest(p r3.Vector) (float64, int) {
	if len(v.cells) == 0 {
		return math.Inf(1), -1
	}
	best, bestIndex := math.Inf(1), -1
	c := v.index(p)
	hmin := math.Min(v.cell.X, math.Min(v.cell.Y, v.cell.Z))
	rmax := max(v.n[0], max(v.n[1], v.n[2]))
	for r := 0; r <= rmax; r++ {
		// Cells of shell r are at least (r-1) full cells away from p's cell.
		if math.Max(float64(r-1)*hmin, v.extent.Distance(p)) >= best {
			break
		}
		v.shell(c, r, func(ix, iy, iz int) {
			if v.cellBox(ix, iy, iz).Distance(p) >= best {
				return
			}
			for _, i := range v.cells[v.flat(ix, iy, iz)] {
				if dist := v.facets[i].Distance(p); dist < best {
					best, bestIndex = dist, int(i)
				}
			}
		})
	}
	return best, bestIndex
}

// shell calls fn for every cell at Chebyshev distance r from c.
func (v *Voxels) shell(c [3]int, r int, fn func(ix, iy, iz int)) {
	for iz := max(c[2]-r, 0); iz <= min(c[2]+r, v.n[2]-1); iz++ {
		for iy := max(c[1]-r, 0); iy <= min(c[1]+r, v.n[1]-1); iy++ {
			for ix := max(c[0]-r, 0); ix <= min(c[0]+r, v.n[0]-1); ix++ {
				dx, dy, dz := abs(ix-c[0]), abs(iy-c[1]), abs(iz-c[2])
				if max(dx, max(dy, dz)) != r {
					continue
				}
				fn(ix, iy, iz)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (v *Voxels) Near(p r3.Vector, delta float64) bool {
	if len(v.cells) == 0 || !v.extent.Contains(p, delta) {
		return false
	}
	d := r3.Vector{X: delta, Y: delta, Z: delta}
	lo, hi := v.index(p.Sub(d)), v.index(p.Add(d))
	for iz := lo[2]; iz <= hi[2]; iz++ {
		for iy := lo[1]; iy <= hi[1]; iy++ {
			for ix := lo[0]; ix <= hi[0]; ix++ {
				for _, i := range v.cells[v.flat(ix, iy, iz)] {
					if v.facets[i].Distance(p) <= delta {
						return true
					}
				}
			}
		}
	}
	return false
}
