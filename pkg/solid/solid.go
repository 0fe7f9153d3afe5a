// Package solid implements the closed set of shapes a volume can be made
// of: boxes, tube and sphere sections, displaced and subtraction solids,
// and triangulated solids backed by a shared mesh accelerator.
//
// Solids are immutable once constructed. Coordinates are local to the
// solid and expressed in millimetres.
package solid

import (
	"fmt"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// EInside classifies a point against a solid.
type EInside int

const (
	Outside EInside = iota
	Surface
	Inside
)

func (e EInside) String() string {
	switch e {
	case Outside:
		return "outside"
	case Surface:
		return "surface"
	case Inside:
		return "inside"
	default:
		return fmt.Sprintf("EInside(%d)", int(e))
	}
}

// Kind tags the concrete shape behind a Solid.
type Kind int

const (
	KindBox Kind = iota
	KindTubs
	KindOrb
	KindSphere
	KindDisplaced
	KindSubtraction
	KindTessellated
)

// String returns the entity type name used in descriptions and exports.
func (k Kind) String() string {
	switch k {
	case KindBox:
		return "G4Box"
	case KindTubs:
		return "G4Tubs"
	case KindOrb:
		return "G4Orb"
	case KindSphere:
		return "G4Sphere"
	case KindDisplaced:
		return "G4DisplacedSolid"
	case KindSubtraction:
		return "G4SubtractionSolid"
	case KindTessellated:
		return "G4TessellatedSolid"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rand is a source of uniform deviates in [0, 1).
type Rand interface {
	Float64() float64
}

// Solid is the query interface shared by every shape.
//
// The set of implementations is closed: the unexported method keeps
// other packages from adding variants.
type Solid interface {
	Kind() Kind
	Name() string

	SurfaceArea() float64
	CubicVolume() float64
	Inside(p r3.Vector) EInside
	SurfaceNormal(p r3.Vector) r3.Vector

	// DistanceToIn returns the distance along unit direction d from an
	// outside point p to the solid, or geom.Infinity if it is never hit.
	DistanceToIn(p, d r3.Vector) float64
	// SafetyToIn returns a lower bound of the distance from p to the solid.
	SafetyToIn(p r3.Vector) float64
	// DistanceToOut returns the distance along unit direction d from an
	// inside point p to the solid boundary.
	DistanceToOut(p, d r3.Vector) float64
	// SafetyToOut returns a lower bound of the distance from an inside
	// point p to the boundary.
	SafetyToOut(p r3.Vector) float64

	// PointOnSurface draws a point uniformly distributed over the
	// surface. It reports false when no surface point could be found.
	PointOnSurface(rng Rand) (r3.Vector, bool)
	Extent() geom.Extent

	sealed()
}

// base carries the name shared by every solid.
type base struct {
	name string
}

func (b base) Name() string { return b.name }
func (base) sealed()        {}

// classify maps a signed distance to an EInside using the surface band.
func classify(d float64) EInside {
	switch {
	case d > geom.HalfTolerance:
		return Outside
	case d > -geom.HalfTolerance:
		return Surface
	default:
		return Inside
	}
}

// Compile-time interface checks.
var (
	_ Solid = (*Box)(nil)
	_ Solid = (*Tubs)(nil)
	_ Solid = (*Orb)(nil)
	_ Solid = (*Sphere)(nil)
	_ Solid = (*Displaced)(nil)
	_ Solid = (*Subtraction)(nil)
	_ Solid = (*Tessellated)(nil)
)
