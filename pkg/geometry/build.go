// Package geometry builds a placed volume tree from a volume description
// and answers spatial queries on it.
//
// All query inputs and outputs are in centimetres and expressed in a
// reference frame named by the pathname of an ancestor volume. An empty
// frame selects the world volume.
package geometry

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/chazu/calzone/pkg/spec"
	"github.com/google/uuid"
)

// Build validates doc, registers its materials and builds the volume
// tree. A failed build releases everything acquired so far and returns no
// geometry.
func Build(doc *spec.Document, opts ...Option) (*Geometry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	g, err := build(doc, o)
	buildSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		buildsTotal.WithLabelValues("error").Inc()
		o.logger.Debug("geometry build failed", "error", err)
		return nil, err
	}
	buildsTotal.WithLabelValues("success").Inc()
	liveGeometries.Inc()
	o.logger.Info("geometry built",
		"world", g.world.path,
		"volumes", len(g.elements),
		"meshes", len(g.meshes),
		"uid", g.uid,
		"duration", time.Since(start))
	return g, nil
}

// BuildVolume builds a geometry from a bare volume tree, resolving
// materials from the configured registry only.
func BuildVolume(root *spec.VolumeSpec, opts ...Option) (*Geometry, error) {
	return Build(&spec.Document{Volume: root}, opts...)
}

func build(doc *spec.Document, o options) (*Geometry, error) {
	if doc == nil || doc.Volume == nil {
		return nil, &ValueError{Reason: "missing root volume"}
	}
	for _, f := range doc.Validate() {
		if f.Severity == spec.SeverityWarning {
			o.logger.Warn("volume description", "path", f.Path, "warning", f.Message)
			continue
		}
		if f.Path == "" {
			return nil, &ValueError{Reason: f.Message}
		}
		return nil, &ValueError{Path: f.Path, Reason: fmt.Sprintf("bad '%s' volume (%s)", f.Path, f.Message)}
	}
	if doc.Materials != nil {
		if err := o.materials.Define(doc.Materials); err != nil {
			return nil, &ValueError{Reason: err.Error()}
		}
	}

	root := doc.Volume
	b := newBuilder(o)
	if err := b.buildSolids(root.Name, root); err != nil {
		b.abort()
		return nil, err
	}
	world, err := b.buildVolumes(root.Name, root)
	if err != nil {
		b.abort()
		return nil, err
	}

	t, err := root.Transform()
	if err != nil {
		b.abort()
		return nil, badVolume(root.Name, "bad rotation (%s)", err)
	}
	if !t.IsIdentity() {
		b.orphans = append(b.orphans, world.solid)
		world.solid = solid.NewDisplaced(world.path, world.solid, t)
	}
	world.transform = geom.Identity()

	g := &Geometry{
		uid:       uuid.New(),
		logger:    o.logger,
		seed:      o.seed,
		materials: o.materials,
		world:     world,
		orphans:   b.orphans,
		meshes:    b.meshes,
		registry:  o.meshes,
		elements:  make(map[string]*PlacedVolume),
		mothers:   make(map[*PlacedVolume]*PlacedVolume),
	}
	g.index(world, nil)
	g.refs.Store(1)
	g.handle = register(g)
	return g, nil
}

// buildVolumes consumes the solid of v and its descendants and returns
// the placed tree rooted at v.
func (b *builder) buildVolumes(path string, v *spec.VolumeSpec) (*PlacedVolume, error) {
	s, ok := b.solids[path]
	if !ok {
		return nil, badVolume(path, "could not create solid")
	}
	delete(b.solids, path)

	m, err := b.opts.materials.Lookup(v.Material)
	if err != nil {
		return nil, badVolume(path, "undefined '%s' material", v.Material)
	}
	t, err := v.Transform()
	if err != nil {
		return nil, badVolume(path, "bad rotation (%s)", err)
	}
	pv := &PlacedVolume{
		path:      path,
		name:      v.Name,
		solid:     s,
		material:  m,
		transform: t,
		daughters: make([]*PlacedVolume, 0, len(v.Volumes)),
	}
	pv.setRoles(v.Roles)
	b.opts.logger.Debug("volume placed",
		"path", path, "solid", s.Kind(), "material", m.Name, "sensitive", pv.Sensitive())

	for _, d := range v.Volumes {
		dpv, err := b.buildVolumes(path+"."+d.Name, d)
		if err != nil {
			return nil, err
		}
		pv.daughters = append(pv.daughters, dpv)
	}
	return pv, nil
}

func (g *Geometry) index(pv, mother *PlacedVolume) {
	g.elements[pv.path] = pv
	if mother != nil {
		g.mothers[pv] = mother
	}
	for _, d := range pv.daughters {
		g.index(d, pv)
	}
}

// IsValueError reports whether err is a user or configuration error.
func IsValueError(err error) bool {
	var verr *ValueError
	return errors.As(err, &verr)
}
