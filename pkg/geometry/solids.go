package geometry

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/chazu/calzone/pkg/spec"
	"github.com/golang/geo/r3"
)

// builder holds the state of a single build pass. solids maps pathnames
// to solids built but not yet placed; orphans keeps the pre-subtraction
// and undisplaced shapes that the final tree references indirectly.
type builder struct {
	opts    options
	solids  map[string]solid.Solid
	orphans []solid.Solid
	meshes  []*mesh.Shared
}

func newBuilder(opts options) *builder {
	return &builder{opts: opts, solids: make(map[string]solid.Solid)}
}

// abort releases every mesh acquired during the pass and forgets the
// solids built so far.
func (b *builder) abort() {
	for _, m := range b.meshes {
		b.opts.meshes.Release(m)
	}
	b.meshes = nil
	b.orphans = nil
	clear(b.solids)
}

// buildSolids builds the solids of v and of its descendants, depth first.
// On return, b.solids[path] holds the solid of v, with subtractions among
// its daughters already applied to their entries.
func (b *builder) buildSolids(path string, v *spec.VolumeSpec) error {
	type placed struct {
		s solid.Solid
		t geom.Transform
	}
	daughters := make([]placed, 0, len(v.Volumes))
	transforms := make(map[string]geom.Transform, len(v.Volumes))
	var subtractions [][2]string
	for _, d := range v.Volumes {
		dpath := path + "." + d.Name
		if err := b.buildSolids(dpath, d); err != nil {
			return err
		}
		t, err := d.Transform()
		if err != nil {
			return badVolume(dpath, "bad rotation (%s)", err)
		}
		daughters = append(daughters, placed{b.solids[dpath], t})
		transforms[d.Name] = t
		for _, target := range d.Subtract {
			subtractions = append(subtractions, [2]string{d.Name, target})
		}
	}

	subtract := func(item [2]string) error {
		path0, path1 := path+"."+item[0], path+"."+item[1]
		s0, ok := b.solids[path0]
		if !ok {
			return unknownVolume(path0)
		}
		s1, ok := b.solids[path1]
		if !ok {
			return unknownVolume(path1)
		}
		t := transforms[item[0]].Inverse().Compose(transforms[item[1]])
		b.orphans = append(b.orphans, s0)
		b.solids[path0] = solid.NewSubtraction(path0, s0, s1, t)
		return nil
	}
	for _, pair := range v.Overlaps {
		if err := subtract(pair); err != nil {
			return err
		}
	}
	for _, item := range subtractions {
		if err := subtract(item); err != nil {
			return err
		}
	}

	var (
		s   solid.Solid
		err error
	)
	switch shape := v.Shape; shape.Kind() {
	case spec.ShapeBox:
		size := geom.Vec(shape.Box.Size).Mul(0.5 * geom.CM)
		s, err = solid.NewBox(path, size.X, size.Y, size.Z)
	case spec.ShapeCylinder:
		s, err = newCylinder(path, shape.Cylinder)
	case spec.ShapeSphere:
		s, err = newSphere(path, shape.Sphere)
	case spec.ShapeEnvelope:
		extent := geom.EmptyExtent()
		for _, d := range daughters {
			extent = extent.Union(solid.CalculateExtent(d.s, d.t))
		}
		s, err = b.envelope(path, shape.Envelope, extent)
	case spec.ShapeMesh:
		s, err = b.tessellation(path, shape.Mesh)
	default:
		return badVolume(path, "missing shape")
	}
	if err != nil {
		var verr *ValueError
		if errors.As(err, &verr) {
			return err
		}
		b.opts.logger.Debug("solid construction failed", "path", path, "error", err)
		return badVolume(path, "could not create solid")
	}
	b.solids[path] = s
	return nil
}

func newCylinder(path string, c *spec.Cylinder) (solid.Solid, error) {
	var rmin float64
	if c.Thickness > 0 {
		rmin = (c.Radius - c.Thickness) * geom.CM
	}
	sphi, dphi := 0.0, 2*math.Pi
	if sec := c.Section; sec != nil {
		sphi, dphi = sec[0]*geom.Deg, (sec[1]-sec[0])*geom.Deg
	}
	return solid.NewTubs(path, rmin, c.Radius*geom.CM, 0.5*c.Length*geom.CM, sphi, dphi)
}

// newSphere returns an Orb when the sphere is neither hollow nor
// sectioned.
func newSphere(path string, s *spec.Sphere) (solid.Solid, error) {
	if s.Thickness <= 0 && s.AzimuthSection == nil && s.ZenithSection == nil {
		return solid.NewOrb(path, s.Radius*geom.CM)
	}
	var rmin float64
	if s.Thickness > 0 {
		rmin = (s.Radius - s.Thickness) * geom.CM
	}
	sphi, dphi := 0.0, 2*math.Pi
	if sec := s.AzimuthSection; sec != nil {
		sphi, dphi = sec[0]*geom.Deg, (sec[1]-sec[0])*geom.Deg
	}
	stheta, dtheta := 0.0, math.Pi
	if sec := s.ZenithSection; sec != nil {
		stheta, dtheta = sec[0]*geom.Deg, (sec[1]-sec[0])*geom.Deg
	}
	return solid.NewSphere(path, rmin, s.Radius*geom.CM, sphi, dphi, stheta, dtheta)
}

// envelope returns the bounding shape of extent. Boxes are padded per
// side. Cylinders are padded per side along z and by the largest x or y
// padding radially, spheres by the largest padding. A shape whose center
// is off the origin is wrapped in a displacement. An empty extent, when
// there are no daughters, collapses to the origin.
func (b *builder) envelope(path string, e *spec.Envelope, extent geom.Extent) (solid.Solid, error) {
	if extent.IsEmpty() {
		extent = geom.Extent{}
	}
	pad := e.Sides(b.opts.safety)
	for i := range pad {
		pad[i] *= geom.CM
	}
	padded := geom.Extent{
		Min: extent.Min.Sub(r3.Vector{X: pad[0], Y: pad[2], Z: pad[4]}),
		Max: extent.Max.Add(r3.Vector{X: pad[1], Y: pad[3], Z: pad[5]}),
	}
	size := extent.Size()

	var (
		s      solid.Solid
		center r3.Vector
		err    error
	)
	switch e.EnvelopeShape() {
	case spec.ShapeCylinder:
		radius := 0.5*math.Hypot(size.X, size.Y) + max(pad[0], pad[1], pad[2], pad[3])
		s, err = solid.NewTubs(path, 0, radius, 0.5*padded.Size().Z, 0, 2*math.Pi)
		c := extent.Center()
		center = r3.Vector{X: c.X, Y: c.Y, Z: padded.Center().Z}
	case spec.ShapeSphere:
		radius := 0.5*size.Norm() + max(pad[0], pad[1], pad[2], pad[3], pad[4], pad[5])
		s, err = solid.NewOrb(path, radius)
		center = extent.Center()
	default:
		h := padded.Size().Mul(0.5)
		s, err = solid.NewBox(path, h.X, h.Y, h.Z)
		center = padded.Center()
	}
	if err != nil {
		return nil, err
	}

	if math.Abs(center.X) <= geom.CarTolerance &&
		math.Abs(center.Y) <= geom.CarTolerance &&
		math.Abs(center.Z) <= geom.CarTolerance {
		return s, nil
	}
	b.orphans = append(b.orphans, s)
	return solid.NewDisplaced(path, s, geom.Translation(center)), nil
}

// tessellation returns a mesh solid, sharing the facets and accelerator
// of any mesh already registered under the same key.
func (b *builder) tessellation(path string, m *spec.Mesh) (solid.Solid, error) {
	name := m.Key()
	if name == "" {
		name = path
	}
	digest, err := meshDigest(m)
	if err != nil {
		return nil, badVolume(path, "bad mesh (%s)", err)
	}
	key := mesh.Key{
		Name:      name,
		Unit:      m.Unit(),
		Algorithm: mesh.Resolve(b.opts.algorithm, m.Algorithm, m.Source()),
		Digest:    digest,
	}
	shared, err := b.opts.meshes.Acquire(key, func() ([]mesh.Facet, error) {
		vertices, err := loadVertices(m)
		if err != nil {
			return nil, err
		}
		facets, err := mesh.FacetsFromVertices(vertices, key.Unit)
		if err != nil {
			return nil, err
		}
		meshTriangles.Add(float64(len(facets)))
		return facets, nil
	})
	if err != nil {
		return nil, badVolume(path, "bad mesh (%s)", err)
	}
	b.meshes = append(b.meshes, shared)
	b.opts.logger.Debug("mesh acquired",
		"path", path, "mesh", key.Name, "algorithm", key.Algorithm, "refs", shared.Refs())
	return solid.NewTessellated(path, shared), nil
}

// meshDigest fingerprints the data m is built from. Files are identified
// by their path, size and modification time.
func meshDigest(m *spec.Mesh) (uint64, error) {
	h := fnv.New64a()
	if m.Map == nil {
		if !m.IsSTL() {
			return 0, fmt.Errorf("unsupported format '%s'", m.Path)
		}
		info, err := os.Stat(m.Path)
		if err != nil {
			return 0, err
		}
		fmt.Fprint(h, "file", m.Path, info.Size(), info.ModTime().UnixNano())
		return h.Sum64(), nil
	}
	fmt.Fprint(h, "map", m.Map.X, m.Map.Y, m.Map.Z)
	if m.Origin != nil {
		fmt.Fprint(h, "origin", *m.Origin)
	}
	if m.ExtraDepth != nil {
		fmt.Fprint(h, "depth", *m.ExtraDepth)
	}
	if m.Regular != nil {
		fmt.Fprint(h, "regular", *m.Regular)
	}
	return h.Sum64(), nil
}

// loadVertices returns the flat triangle vertices of m, in mesh units.
func loadVertices(m *spec.Mesh) ([]float32, error) {
	if m.Map == nil {
		if !m.IsSTL() {
			return nil, fmt.Errorf("unsupported format '%s'", m.Path)
		}
		return mesh.LoadSTL(m.Path)
	}
	grid, err := m.Map.Grid()
	if err != nil {
		return nil, err
	}
	var opts mesh.MapOptions
	if m.Origin != nil {
		opts.Origin = geom.Vec(*m.Origin)
	}
	if m.ExtraDepth != nil {
		opts.ExtraDepth = *m.ExtraDepth
	}
	if m.Regular != nil {
		opts.Regular = *m.Regular
	}
	return grid.Tessellate(opts)
}
