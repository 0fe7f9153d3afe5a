// Package geom provides the vector, rotation, rigid transform and extent
// primitives shared by solids, meshes and the geometry builder.
//
// All internal lengths are in millimetres and angles in radians. The unit
// constants convert from the user-facing centimetre/degree convention.
package geom

import "math"

// Length, area, volume and angle units.
const (
	MM  = 1.0
	CM  = 10.0 * MM
	M   = 1000.0 * MM
	CM2 = CM * CM
	CM3 = CM * CM * CM
	Deg = math.Pi / 180.0
)

// Tolerances used for Inside classification and ray queries.
const (
	// CarTolerance is the width of the surface band.
	CarTolerance = 1e-9 * M
	// HalfTolerance is half the surface band, the distance within which a
	// point is considered to lie on a surface.
	HalfTolerance = 0.5 * CarTolerance
	// AngTolerance is the angular counterpart of CarTolerance.
	AngTolerance = 1e-9
	// Infinity is returned by distance queries that never reach a surface.
	Infinity = 9.0e99
)
