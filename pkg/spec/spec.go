// Package spec is the in-memory description of a volume tree, before it is
// built into a geometry: named volumes with a material, exactly one shape,
// a placement relative to their mother and ordered daughter volumes.
//
// Lengths are in centimetres and angles in degrees, as written by users.
// Specs are decoded from YAML (Decode, LoadFile) or produced by the Lisp
// front-end, and can be edited with the Document operations before being
// built.
package spec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
)

// ShapeKind tags the shape variant of a volume.
type ShapeKind int

const (
	ShapeNone ShapeKind = iota
	ShapeBox
	ShapeCylinder
	ShapeSphere
	ShapeEnvelope
	ShapeMesh
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeNone:
		return "none"
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	case ShapeSphere:
		return "sphere"
	case ShapeEnvelope:
		return "envelope"
	case ShapeMesh:
		return "mesh"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Box is a rectangular box of full side lengths Size.
type Box struct {
	Size [3]float64 `yaml:"size" validate:"dive,gt=0"`
}

// Cylinder is a tube along z. A positive Thickness makes it hollow, with
// an inner radius of Radius - Thickness. Section restricts the azimuth to
// [start, end] degrees.
type Cylinder struct {
	Radius    float64     `yaml:"radius" validate:"gt=0"`
	Length    float64     `yaml:"length" validate:"gt=0"`
	Thickness float64     `yaml:"thickness,omitempty" validate:"gte=0,ltfield=Radius"`
	Section   *[2]float64 `yaml:"section,omitempty"`
}

// Sphere is a ball, optionally hollow and sectioned in azimuth and zenith.
type Sphere struct {
	Radius         float64     `yaml:"radius" validate:"gt=0"`
	Thickness      float64     `yaml:"thickness,omitempty" validate:"gte=0,ltfield=Radius"`
	AzimuthSection *[2]float64 `yaml:"azimuth_section,omitempty"`
	ZenithSection  *[2]float64 `yaml:"zenith_section,omitempty"`
}

// Envelope is a shape sized to enclose the daughter volumes. Padding holds
// one uniform value, three per-axis values or six per-side values ordered
// -x, +x, -y, +y, -z, +z. A nil Padding selects the default safety.
type Envelope struct {
	Shape   string    `yaml:"shape,omitempty" validate:"omitempty,oneof=box cylinder sphere"`
	Padding []float64 `yaml:"padding,omitempty" validate:"padding"`
}

// EnvelopeShape returns the bounding shape kind, box by default.
func (e *Envelope) EnvelopeShape() ShapeKind {
	switch e.Shape {
	case "cylinder":
		return ShapeCylinder
	case "sphere":
		return ShapeSphere
	default:
		return ShapeBox
	}
}

// Sides expands the padding to six per-side values. def is used when no
// padding is given.
func (e *Envelope) Sides(def float64) [6]float64 {
	var out [6]float64
	switch len(e.Padding) {
	case 1:
		for i := range out {
			out[i] = e.Padding[0]
		}
	case 3:
		for i := range 3 {
			out[2*i], out[2*i+1] = e.Padding[i], e.Padding[i]
		}
	case 6:
		copy(out[:], e.Padding)
	default:
		for i := range out {
			out[i] = def
		}
	}
	return out
}

// MapSpec is an inline elevation model: Z holds one row of elevations per
// y node, spanning X and Y.
type MapSpec struct {
	X [2]float64  `yaml:"x"`
	Y [2]float64  `yaml:"y"`
	Z [][]float64 `yaml:"z" validate:"min=2,dive,min=2"`
}

// Grid converts m to a mesh elevation grid.
func (m *MapSpec) Grid() (*mesh.Map, error) {
	g := &mesh.Map{Ny: len(m.Z), X0: m.X[0], X1: m.X[1], Y0: m.Y[0], Y1: m.Y[1]}
	if g.Ny > 0 {
		g.Nx = len(m.Z[0])
	}
	g.Z = make([]float32, 0, g.Nx*g.Ny)
	for i, row := range m.Z {
		if len(row) != g.Nx {
			return nil, fmt.Errorf("spec: map row %d has %d nodes, expected %d", i, len(row), g.Nx)
		}
		for _, z := range row {
			g.Z = append(g.Z, float32(z))
		}
	}
	return g, g.Validate()
}

// Mesh is a triangulated shape, read from an STL file or tessellated from
// an elevation model. Origin, ExtraDepth and Regular only apply to maps.
// Name keys mesh sharing and defaults to the path.
type Mesh struct {
	Path       string         `yaml:"path,omitempty" validate:"required_without=Map"`
	Map        *MapSpec       `yaml:"map,omitempty"`
	Units      string         `yaml:"units,omitempty" validate:"omitempty,oneof=mm cm m km"`
	Algorithm  mesh.Algorithm `yaml:"algorithm,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	Origin     *[3]float64    `yaml:"origin,omitempty"`
	ExtraDepth *float64       `yaml:"extra_depth,omitempty" validate:"omitnil,gte=0"`
	Regular    *bool          `yaml:"regular,omitempty"`
}

// Unit returns the length of one mesh unit, in millimetres. Meshes are in
// centimetres by default.
func (m *Mesh) Unit() float64 {
	switch m.Units {
	case "mm":
		return geom.MM
	case "m":
		return geom.M
	case "km":
		return 1000 * geom.M
	default:
		return geom.CM
	}
}

// Key returns the sharing name of the mesh.
func (m *Mesh) Key() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Path
}

// Source returns the kind of data the mesh comes from.
func (m *Mesh) Source() mesh.Source {
	if m.Map != nil {
		return mesh.SourceMap
	}
	return mesh.SourceModel
}

// IsSTL reports whether the mesh is read from an STL file.
func (m *Mesh) IsSTL() bool {
	return m.Path != "" && strings.EqualFold(filepath.Ext(m.Path), ".stl")
}

// Shape holds the shape of a volume. Exactly one field is set.
type Shape struct {
	Box      *Box
	Cylinder *Cylinder
	Sphere   *Sphere
	Envelope *Envelope
	Mesh     *Mesh
}

// Kinds lists the set variants, in declaration order.
func (s Shape) Kinds() []ShapeKind {
	var out []ShapeKind
	if s.Box != nil {
		out = append(out, ShapeBox)
	}
	if s.Cylinder != nil {
		out = append(out, ShapeCylinder)
	}
	if s.Sphere != nil {
		out = append(out, ShapeSphere)
	}
	if s.Envelope != nil {
		out = append(out, ShapeEnvelope)
	}
	if s.Mesh != nil {
		out = append(out, ShapeMesh)
	}
	return out
}

// Kind returns the shape variant, or ShapeNone unless exactly one is set.
func (s Shape) Kind() ShapeKind {
	kinds := s.Kinds()
	if len(kinds) != 1 {
		return ShapeNone
	}
	return kinds[0]
}

// VolumeSpec describes one volume and, recursively, its daughters.
type VolumeSpec struct {
	Name     string
	Material string
	Shape    Shape

	// Position is the offset of the volume origin in its mother frame.
	Position [3]float64
	// Rotation rows are the rotated basis vectors. Nil means no rotation.
	Rotation *[3][3]float64

	// Subtract names sibling volumes removed from this one.
	Subtract []string
	// Overlaps holds pairs of daughters whose overlap is patched, in
	// canonical order.
	Overlaps [][2]string

	Roles   Roles
	Volumes []*VolumeSpec
}

// Transform returns the placement of v in its mother frame, in internal
// units.
func (v *VolumeSpec) Transform() (geom.Transform, error) {
	t := geom.Translation(geom.Vec(v.Position).Mul(geom.CM))
	if v.Rotation != nil {
		r, err := geom.RotationFromRows(*v.Rotation)
		if err != nil {
			return geom.Identity(), err
		}
		t.Rot = r
	}
	return t, nil
}

// Daughter returns the direct daughter with the given name.
func (v *VolumeSpec) Daughter(name string) *VolumeSpec {
	for _, d := range v.Volumes {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Clone returns a deep copy of v.
func (v *VolumeSpec) Clone() *VolumeSpec {
	c := *v
	c.Shape = v.Shape.clone()
	if v.Rotation != nil {
		r := *v.Rotation
		c.Rotation = &r
	}
	c.Subtract = append([]string(nil), v.Subtract...)
	c.Overlaps = append([][2]string(nil), v.Overlaps...)
	c.Volumes = make([]*VolumeSpec, len(v.Volumes))
	for i, d := range v.Volumes {
		c.Volumes[i] = d.Clone()
	}
	return &c
}

func (s Shape) clone() Shape {
	var c Shape
	if s.Box != nil {
		b := *s.Box
		c.Box = &b
	}
	if s.Cylinder != nil {
		cy := *s.Cylinder
		c.Cylinder = &cy
	}
	if s.Sphere != nil {
		sp := *s.Sphere
		c.Sphere = &sp
	}
	if s.Envelope != nil {
		e := *s.Envelope
		e.Padding = append([]float64(nil), s.Envelope.Padding...)
		c.Envelope = &e
	}
	if s.Mesh != nil {
		m := *s.Mesh
		c.Mesh = &m
	}
	return c
}

// Document is a root volume together with the user materials it needs.
type Document struct {
	Volume    *VolumeSpec
	Materials *material.Definitions
}
