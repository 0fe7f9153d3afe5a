package geometry

import (
	"math"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/chazu/calzone/pkg/spec"
)

// Volume is a query handle on one placed volume of a geometry.
type Volume struct {
	g  *Geometry
	pv *PlacedVolume
}

// Volume returns the query handle of the volume at pathname path.
func (g *Geometry) Volume(path string) (*Volume, error) {
	pv, err := g.Placed(path)
	if err != nil {
		return nil, err
	}
	return &Volume{g: g, pv: pv}, nil
}

// Root returns the query handle of the world volume.
func (g *Geometry) Root() (*Volume, error) {
	pv, err := g.World()
	if err != nil {
		return nil, err
	}
	return &Volume{g: g, pv: pv}, nil
}

func (v *Volume) Path() string { return v.pv.path }
func (v *Volume) Name() string { return v.pv.name }

// Placed returns the underlying placed volume.
func (v *Volume) Placed() *PlacedVolume { return v.pv }

// ComputeBox returns the axis-aligned bounding box of the volume in frame
// as xmin, xmax, ymin, ymax, zmin, zmax.
func (v *Volume) ComputeBox(frame string) ([6]float64, error) {
	t, err := v.g.transformTo(v.pv, frame)
	if err != nil {
		return [6]float64{}, err
	}
	return solid.CalculateExtent(v.pv.solid, t).Array(geom.CM), nil
}

// ComputeOrigin returns the origin of the volume frame, expressed in
// frame.
func (v *Volume) ComputeOrigin(frame string) ([3]float64, error) {
	t, err := v.g.transformTo(v.pv, frame)
	if err != nil {
		return [3]float64{}, err
	}
	return geom.Array3(t.Trans, geom.CM), nil
}

// ComputeSurface returns the surface area of the solid, in cm².
func (v *Volume) ComputeSurface() float64 {
	return v.pv.solid.SurfaceArea() / geom.CM2
}

// ComputeVolume returns the volume of the solid, in cm³. Unless
// includeDaughters is set the volumes of daughters are removed.
func (v *Volume) ComputeVolume(includeDaughters bool) float64 {
	total := v.pv.solid.CubicVolume()
	if !includeDaughters {
		for _, d := range v.pv.daughters {
			total -= d.solid.CubicVolume()
		}
	}
	return math.Max(total, 0) / geom.CM3
}

// Daughter summarises a daughter volume.
type Daughter struct {
	Path  string `json:"path"`
	Solid string `json:"solid"`
}

// Info summarises a volume.
type Info struct {
	Path      string
	Material  string
	Solid     string
	Mother    string // empty at the root
	Daughters []Daughter
	Roles     spec.Roles
}

// Describe returns a summary of the volume.
func (v *Volume) Describe() Info {
	info := Info{
		Path:      v.pv.path,
		Material:  v.pv.material.Name,
		Solid:     v.pv.solid.Kind().String(),
		Daughters: make([]Daughter, 0, len(v.pv.daughters)),
		Roles:     v.pv.Roles(),
	}
	if m := v.g.Mother(v.pv); m != nil {
		info.Mother = m.path
	}
	for _, d := range v.pv.daughters {
		info.Daughters = append(info.Daughters, Daughter{Path: d.path, Solid: d.solid.Kind().String()})
	}
	return info
}

// Inside classifies point, in cm and expressed in frame, against the
// volume. Unless includeDaughters is set, daughters are carved out of the
// volume: a point inside a daughter is outside and a point on a daughter
// surface is on the surface.
func (v *Volume) Inside(point [3]float64, frame string, includeDaughters bool) (solid.EInside, error) {
	t, err := v.g.transformTo(v.pv, frame)
	if err != nil {
		return solid.Outside, err
	}
	p := t.InverseApply(geom.Vec(point).Mul(geom.CM))
	in := v.pv.solid.Inside(p)
	if includeDaughters || in != solid.Inside {
		return in, nil
	}
	for _, d := range v.pv.daughters {
		switch d.solid.Inside(d.transform.InverseApply(p)) {
		case solid.Surface:
			return solid.Surface, nil
		case solid.Inside:
			return solid.Outside, nil
		}
	}
	return solid.Inside, nil
}

// Sample is a point on the volume surface, in cm, with the outward unit
// normal when requested.
type Sample struct {
	Position [3]float64
	Normal   [3]float64
}

// GenerateOnto returns n points drawn uniformly on the surface of the
// volume, expressed in frame. It fails for solids with an empty surface,
// such as a subtraction whose subtrahend covers the minuend.
func (v *Volume) GenerateOnto(rng solid.Rand, n int, frame string, withNormal bool) ([]Sample, error) {
	t, err := v.g.transformTo(v.pv, frame)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, n)
	for i := range out {
		p, ok := v.pv.solid.PointOnSurface(rng)
		if !ok {
			return nil, badVolume(v.pv.path, "no surface to sample")
		}
		out[i].Position = geom.Array3(t.Apply(p), geom.CM)
		if withNormal {
			out[i].Normal = geom.Array3(t.ApplyAxis(v.pv.solid.SurfaceNormal(p)), 1)
		}
	}
	return out, nil
}

// Roles returns the sensitivity roles of the volume.
func (v *Volume) Roles() spec.Roles { return v.pv.Roles() }

// SetRoles replaces the sensitivity roles of the volume. Setting zero
// roles removes the sensitivity record.
func (v *Volume) SetRoles(r spec.Roles) {
	v.pv.setRoles(r)
	v.g.logger.Debug("roles updated", "path", v.pv.path, "roles", r.String())
}

// ClearRoles removes every role of the volume.
func (v *Volume) ClearRoles() { v.SetRoles(spec.Roles{}) }
