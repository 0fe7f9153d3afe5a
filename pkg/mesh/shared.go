package mesh

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// ErrEmpty is returned when a mesh has no usable facet.
var ErrEmpty = errors.New("mesh: no facets")

// Rand is a source of uniform deviates in [0, 1).
type Rand interface {
	Float64() float64
}

// Shared is an immutable facet set with its accelerator. A single Shared
// backs every placement of a named mesh.
type Shared struct {
	name      string
	algorithm Algorithm
	facets    []Facet
	cdf       []float64
	area      float64
	volume    float64
	extent    geom.Extent
	accel     Accelerator

	refs atomic.Int64
}

// NewShared builds the accelerator selected by algorithm over facets.
// algorithm must be resolved; AlgorithmAuto is rejected.
func NewShared(name string, facets []Facet, algorithm Algorithm) (*Shared, error) {
	if len(facets) == 0 {
		return nil, ErrEmpty
	}
	s := &Shared{name: name, algorithm: algorithm, facets: facets}
	var err error
	switch algorithm {
	case AlgorithmBVH:
		s.accel, err = NewBVH(facets)
	case AlgorithmVoxels:
		s.accel, err = NewVoxels(facets)
	default:
		return nil, fmt.Errorf("mesh: %s: unresolved algorithm %s", name, algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", name, err)
	}

	s.cdf = make([]float64, len(facets))
	s.extent = geom.EmptyExtent()
	for i := range facets {
		f := &facets[i]
		s.area += f.Area
		s.cdf[i] = s.area
		s.volume += f.V0.Dot(f.V1.Cross(f.V2)) / 6
		s.extent = s.extent.Union(f.Extent())
	}
	return s, nil
}

// Name returns the mesh name.
func (s *Shared) Name() string { return s.name }

// Algorithm returns the accelerator kind.
func (s *Shared) Algorithm() Algorithm { return s.algorithm }

// Facets returns the facets. The slice must not be modified.
func (s *Shared) Facets() []Facet { return s.facets }

// Accelerator returns the spatial index.
func (s *Shared) Accelerator() Accelerator { return s.accel }

// Area returns the total facet area.
func (s *Shared) Area() float64 { return s.area }

// Volume returns the enclosed volume, meaningful for closed consistently
// wound surfaces only.
func (s *Shared) Volume() float64 { return s.volume }

// Extent returns the bounding box of the facets.
func (s *Shared) Extent() geom.Extent { return s.extent }

// Refs returns the number of holders registered for this mesh.
func (s *Shared) Refs() int64 { return s.refs.Load() }

// SurfacePoint draws a point uniformly distributed over the surface and
// returns it with the index of its facet.
func (s *Shared) SurfacePoint(rng Rand) (r3.Vector, int) {
	target := rng.Float64() * s.area
	i := sort.SearchFloat64s(s.cdf, target)
	if i >= len(s.facets) {
		i = len(s.facets) - 1
	}
	u, v := rng.Float64(), rng.Float64()
	if u+v > 1 {
		u, v = 1-u, 1-v
	}
	f := &s.facets[i]
	p := f.V0.Add(f.V1.Sub(f.V0).Mul(u)).Add(f.V2.Sub(f.V0).Mul(v))
	return p, i
}
