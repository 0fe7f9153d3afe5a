// Package kernel defines the meshing backend used to export placed solids
// as triangle surfaces. A backend turns any solid, placed by a transform,
// into a Mesh in millimetres.
package kernel

import (
	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/solid"
)

// Kernel tessellates solids.
type Kernel interface {
	// ToMesh returns the surface of s placed by t.
	ToMesh(s solid.Solid, t geom.Transform) (*Mesh, error)
}

// Func adapts a function to the Kernel interface.
type Func func(s solid.Solid, t geom.Transform) (*Mesh, error)

// ToMesh calls f.
func (f Func) ToMesh(s solid.Solid, t geom.Transform) (*Mesh, error) { return f(s, t) }
