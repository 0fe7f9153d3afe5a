package geometry

import (
	"errors"
	"fmt"
)

// ErrMemory is returned when a solid could not be created.
var ErrMemory = errors.New("geometry: could not create solid")

// ErrReleased is returned by queries on a geometry whose last reference
// was dropped.
var ErrReleased = errors.New("geometry: released")

// ValueError reports a user or configuration error. Path names the
// offending volume, when there is one.
type ValueError struct {
	Path   string
	Reason string
}

func (e *ValueError) Error() string {
	return "geometry: " + e.Reason
}

// badVolume returns the error of a volume that could not be built.
func badVolume(path, format string, args ...any) *ValueError {
	return &ValueError{
		Path:   path,
		Reason: fmt.Sprintf("bad '%s' volume (%s)", path, fmt.Sprintf(format, args...)),
	}
}

func unknownVolume(path string) *ValueError {
	return &ValueError{Path: path, Reason: fmt.Sprintf("unknown volume '%s'", path)}
}

// OverlapError is the first fault found by Check. Other is the sibling, or
// the mother when Protrudes is set. Point is in centimetres, in the mother
// frame.
type OverlapError struct {
	Path      string
	Other     string
	Protrudes bool
	Point     [3]float64
}

func (e *OverlapError) Error() string {
	if e.Protrudes {
		return fmt.Sprintf("geometry: '%s' protrudes from mother '%s' at (%g, %g, %g) cm",
			e.Path, e.Other, e.Point[0], e.Point[1], e.Point[2])
	}
	return fmt.Sprintf("geometry: '%s' overlaps with '%s' at (%g, %g, %g) cm",
		e.Path, e.Other, e.Point[0], e.Point[1], e.Point[2])
}
