package geometry

import (
	"log/slog"

	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
)

const (
	// DefaultEnvelopeSafety is the envelope padding, in centimetres, used
	// when an envelope declares none.
	DefaultEnvelopeSafety = 0.01
	// DefaultCheckResolution is the number of trials per volume of Check.
	DefaultCheckResolution = 1000
)

type options struct {
	logger    *slog.Logger
	meshes    *mesh.Registry
	materials *material.Registry
	algorithm mesh.Algorithm
	safety    float64
	seed      uint64
}

func defaultOptions() options {
	return options{
		logger:    slog.Default(),
		meshes:    mesh.NewRegistry(),
		materials: material.Default,
		safety:    DefaultEnvelopeSafety,
		seed:      0x5eed,
	}
}

// Option configures Build.
type Option func(*options)

// WithLogger sets the logger of the build and of the resulting geometry.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeshRegistry sets the cache in which named meshes are shared. By
// default every build gets its own cache; pass a common registry to share
// meshes between live geometries.
func WithMeshRegistry(r *mesh.Registry) Option {
	return func(o *options) { o.meshes = r }
}

// WithMaterials sets the registry materials are resolved from. User
// definitions of the document are added to it.
func WithMaterials(r *material.Registry) Option {
	return func(o *options) { o.materials = r }
}

// WithAlgorithm sets the global mesh algorithm override. Per-mesh choices
// still take precedence.
func WithAlgorithm(a mesh.Algorithm) Option {
	return func(o *options) { o.algorithm = a }
}

// WithEnvelopeSafety sets the default envelope padding, in centimetres.
func WithEnvelopeSafety(cm float64) Option {
	return func(o *options) { o.safety = cm }
}

// WithSeed sets the seed of the random streams used by Check.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}
