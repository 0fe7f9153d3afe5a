package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// DefaultExtraDepth is the depth added below the lowest map node, in map
// units.
const DefaultExtraDepth = 100.0

// Map is a digital elevation model sampled on a regular x-y grid. Z holds
// Ny rows of Nx elevations, row i lying at y index i.
type Map struct {
	Nx, Ny int
	X0, X1 float64
	Y0, Y1 float64
	Z      []float32
}

// MapOptions controls the closing of a map into a solid.
type MapOptions struct {
	// Regular repeats the top grid on the bottom face instead of closing it
	// with a single quad.
	Regular bool
	// Origin is subtracted from every vertex.
	Origin r3.Vector
	// ExtraDepth is the thickness below the lowest node. Zero selects
	// DefaultExtraDepth.
	ExtraDepth float64
}

// Validate checks the grid shape.
func (m *Map) Validate() error {
	if m.Nx < 2 || m.Ny < 2 {
		return fmt.Errorf("mesh: map: expected at least 2x2 nodes, found %dx%d", m.Nx, m.Ny)
	}
	if len(m.Z) != m.Nx*m.Ny {
		return fmt.Errorf("mesh: map: expected %d elevations, found %d", m.Nx*m.Ny, len(m.Z))
	}
	return nil
}

type orientation int

const (
	leftHanded orientation = iota
	rightHanded
)

// Tessellate closes the map into a solid: the elevation surface on top,
// four vertical walls and a flat bottom at the lowest elevation minus the
// extra depth. It returns a flat vertex buffer of triangle triples with
// outward winding.
func (m *Map) Tessellate(opts MapOptions) ([]float32, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	depth := opts.ExtraDepth
	if depth == 0 {
		depth = DefaultExtraDepth
	}
	zmin := float32(math.MaxFloat32)
	for _, z := range m.Z {
		zmin = min(zmin, z)
	}
	zbot := zmin - float32(depth)

	nx, ny := m.Nx, m.Ny
	kx := (m.X1 - m.X0) / float64(nx-1)
	ky := (m.Y1 - m.Y0) / float64(ny-1)
	getX := func(j int) float32 {
		switch j {
		case 0:
			return float32(m.X0)
		case nx - 1:
			return float32(m.X1)
		}
		return float32(m.X0 + kx*float64(j))
	}
	getY := func(i int) float32 {
		switch i {
		case 0:
			return float32(m.Y0)
		case ny - 1:
			return float32(m.Y1)
		}
		return float32(m.Y0 + ky*float64(i))
	}
	getZ := func(i, j int) float32 { return m.Z[i*nx+j] }

	var left, right orientation
	switch sgn := (m.X1 - m.X0) * (m.Y1 - m.Y0); {
	case sgn > 0:
		left, right = leftHanded, rightHanded
	case sgn < 0:
		left, right = rightHanded, leftHanded
	default:
		return nil, errors.New("mesh: map: degenerate x or y span")
	}

	size := 18 * ((nx+1)*(ny+1) - 3)
	if opts.Regular {
		size = 36 * (nx*ny - 1)
	}
	buf := make([]float32, 0, size)
	xc, yc, zc := float32(opts.Origin.X), float32(opts.Origin.Y), float32(opts.Origin.Z)
	type vertex [3]float32
	vtx := func(x, y, z float32) vertex { return vertex{x - xc, y - yc, z - zc} }
	push := func(o orientation, v0, v1, v2, v3 vertex) {
		if o == leftHanded {
			buf = append(buf, v0[:]...)
			buf = append(buf, v1[:]...)
			buf = append(buf, v2[:]...)
			buf = append(buf, v2[:]...)
			buf = append(buf, v3[:]...)
			buf = append(buf, v0[:]...)
			return
		}
		buf = append(buf, v0[:]...)
		buf = append(buf, v3[:]...)
		buf = append(buf, v2[:]...)
		buf = append(buf, v2[:]...)
		buf = append(buf, v1[:]...)
		buf = append(buf, v0[:]...)
	}

	// Top surface.
	for i := 0; i < ny-1; i++ {
		y0, y1 := getY(i), getY(i+1)
		for j := 0; j < nx-1; j++ {
			x0, x1 := getX(j), getX(j+1)
			push(left,
				vtx(x0, y0, getZ(i, j)),
				vtx(x1, y0, getZ(i, j+1)),
				vtx(x1, y1, getZ(i+1, j+1)),
				vtx(x0, y1, getZ(i+1, j)))
		}
	}

	// Walls at constant y.
	for _, i := range [2]int{0, ny - 1} {
		o := left
		if i == 0 {
			o = right
		}
		y := getY(i)
		for j := 0; j < nx-1; j++ {
			x0, x1 := getX(j), getX(j+1)
			push(o,
				vtx(x0, y, getZ(i, j)),
				vtx(x1, y, getZ(i, j+1)),
				vtx(x1, y, zbot),
				vtx(x0, y, zbot))
		}
	}

	// Walls at constant x.
	for _, j := range [2]int{0, nx - 1} {
		o := right
		if j == 0 {
			o = left
		}
		x := getX(j)
		for i := 0; i < ny-1; i++ {
			y0, y1 := getY(i), getY(i+1)
			push(o,
				vtx(x, y0, getZ(i, j)),
				vtx(x, y1, getZ(i+1, j)),
				vtx(x, y1, zbot),
				vtx(x, y0, zbot))
		}
	}

	// Bottom.
	if opts.Regular {
		for i := 0; i < ny-1; i++ {
			y0, y1 := getY(i), getY(i+1)
			for j := 0; j < nx-1; j++ {
				x0, x1 := getX(j), getX(j+1)
				push(right,
					vtx(x0, y0, zbot),
					vtx(x1, y0, zbot),
					vtx(x1, y1, zbot),
					vtx(x0, y1, zbot))
			}
		}
	} else {
		x0, x1 := getX(0), getX(nx-1)
		y0, y1 := getY(0), getY(ny-1)
		push(right,
			vtx(x0, y0, zbot),
			vtx(x1, y0, zbot),
			vtx(x1, y1, zbot),
			vtx(x0, y1, zbot))
	}
	return buf, nil
}
