package geometry

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/golang/geo/r3"
)

// GDML elements. Lengths are written in mm and angles in rad.
type (
	gdmlDocument struct {
		XMLName   xml.Name    `xml:"gdml"`
		XSI       string      `xml:"xmlns:xsi,attr"`
		Schema    string      `xml:"xsi:noNamespaceSchemaLocation,attr"`
		Define    gdmlSection `xml:"define"`
		Materials gdmlSection `xml:"materials"`
		Solids    gdmlSection `xml:"solids"`
		Structure gdmlSection `xml:"structure"`
		Setup     gdmlSetup   `xml:"setup"`
	}

	gdmlSection struct {
		Items []any
	}

	gdmlPosition struct {
		XMLName xml.Name `xml:"position"`
		Name    string   `xml:"name,attr,omitempty"`
		X       float64  `xml:"x,attr"`
		Y       float64  `xml:"y,attr"`
		Z       float64  `xml:"z,attr"`
		Unit    string   `xml:"unit,attr"`
	}

	gdmlRotation struct {
		XMLName xml.Name `xml:"rotation"`
		Name    string   `xml:"name,attr,omitempty"`
		X       float64  `xml:"x,attr"`
		Y       float64  `xml:"y,attr"`
		Z       float64  `xml:"z,attr"`
		Unit    string   `xml:"unit,attr"`
	}

	gdmlRef struct {
		Ref string `xml:"ref,attr"`
	}

	gdmlElement struct {
		XMLName xml.Name `xml:"element"`
		Name    string   `xml:"name,attr"`
		Formula string   `xml:"formula,attr"`
		Z       float64  `xml:"Z,attr"`
		Atom    struct {
			Unit  string  `xml:"unit,attr"`
			Value float64 `xml:"value,attr"`
		} `xml:"atom"`
	}

	gdmlFraction struct {
		N   float64 `xml:"n,attr"`
		Ref string  `xml:"ref,attr"`
	}

	gdmlMaterial struct {
		XMLName xml.Name `xml:"material"`
		Name    string   `xml:"name,attr"`
		State   string   `xml:"state,attr,omitempty"`
		D       struct {
			Unit  string  `xml:"unit,attr"`
			Value float64 `xml:"value,attr"`
		} `xml:"D"`
		Fractions []gdmlFraction `xml:"fraction"`
	}

	gdmlBox struct {
		XMLName xml.Name `xml:"box"`
		Name    string   `xml:"name,attr"`
		X       float64  `xml:"x,attr"`
		Y       float64  `xml:"y,attr"`
		Z       float64  `xml:"z,attr"`
		LUnit   string   `xml:"lunit,attr"`
	}

	gdmlTube struct {
		XMLName  xml.Name `xml:"tube"`
		Name     string   `xml:"name,attr"`
		RMin     float64  `xml:"rmin,attr"`
		RMax     float64  `xml:"rmax,attr"`
		Z        float64  `xml:"z,attr"`
		StartPhi float64  `xml:"startphi,attr"`
		DeltaPhi float64  `xml:"deltaphi,attr"`
		AUnit    string   `xml:"aunit,attr"`
		LUnit    string   `xml:"lunit,attr"`
	}

	gdmlOrb struct {
		XMLName xml.Name `xml:"orb"`
		Name    string   `xml:"name,attr"`
		R       float64  `xml:"r,attr"`
		LUnit   string   `xml:"lunit,attr"`
	}

	gdmlSphere struct {
		XMLName    xml.Name `xml:"sphere"`
		Name       string   `xml:"name,attr"`
		RMin       float64  `xml:"rmin,attr"`
		RMax       float64  `xml:"rmax,attr"`
		StartPhi   float64  `xml:"startphi,attr"`
		DeltaPhi   float64  `xml:"deltaphi,attr"`
		StartTheta float64  `xml:"starttheta,attr"`
		DeltaTheta float64  `xml:"deltatheta,attr"`
		AUnit      string   `xml:"aunit,attr"`
		LUnit      string   `xml:"lunit,attr"`
	}

	gdmlSubtraction struct {
		XMLName  xml.Name      `xml:"subtraction"`
		Name     string        `xml:"name,attr"`
		First    gdmlRef       `xml:"first"`
		Second   gdmlRef       `xml:"second"`
		Position *gdmlPosition `xml:"position"`
		Rotation *gdmlRotation `xml:"rotation"`
	}

	gdmlMultiUnion struct {
		XMLName xml.Name        `xml:"multiUnion"`
		Name    string          `xml:"name,attr"`
		Nodes   []gdmlUnionNode `xml:"multiUnionNode"`
	}

	gdmlUnionNode struct {
		Name     string        `xml:"name,attr"`
		Solid    gdmlRef       `xml:"solid"`
		Position *gdmlPosition `xml:"position"`
		Rotation *gdmlRotation `xml:"rotation"`
	}

	gdmlTriangular struct {
		Vertex1 string `xml:"vertex1,attr"`
		Vertex2 string `xml:"vertex2,attr"`
		Vertex3 string `xml:"vertex3,attr"`
		Type    string `xml:"type,attr"`
	}

	gdmlTessellated struct {
		XMLName xml.Name         `xml:"tessellated"`
		Name    string           `xml:"name,attr"`
		AUnit   string           `xml:"aunit,attr"`
		LUnit   string           `xml:"lunit,attr"`
		Facets  []gdmlTriangular `xml:"triangular"`
	}

	gdmlPhysVol struct {
		Name     string        `xml:"name,attr"`
		Volume   gdmlRef       `xml:"volumeref"`
		Position *gdmlPosition `xml:"position"`
		Rotation *gdmlRotation `xml:"rotation"`
	}

	gdmlVolume struct {
		XMLName  xml.Name      `xml:"volume"`
		Name     string        `xml:"name,attr"`
		Material gdmlRef       `xml:"materialref"`
		Solid    gdmlRef       `xml:"solidref"`
		PhysVols []gdmlPhysVol `xml:"physvol"`
	}

	gdmlSetup struct {
		Name    string  `xml:"name,attr"`
		Version string  `xml:"version,attr"`
		World   gdmlRef `xml:"world"`
	}
)

// WriteGDML serialises the placed tree as a GDML document.
func (g *Geometry) WriteGDML(w io.Writer) error {
	world, err := g.World()
	if err != nil {
		return err
	}
	enc := &gdmlWriter{
		materials: g.materials,
		solids:    make(map[solid.Solid]string),
		meshes:    make(map[*mesh.Shared]string),
		used:      make(map[string]bool),
		written:   make(map[string]bool),
	}
	if err := enc.volume(world); err != nil {
		return err
	}
	doc := gdmlDocument{
		XSI:       "http://www.w3.org/2001/XMLSchema-instance",
		Schema:    "http://service-spi.web.cern.ch/service-spi/app/releases/GDML/schema/gdml.xsd",
		Define:    enc.define,
		Materials: enc.materialItems,
		Solids:    enc.solidItems,
		Structure: enc.structure,
		Setup:     gdmlSetup{Name: "Default", Version: "1.0", World: gdmlRef{world.path}},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	x := xml.NewEncoder(w)
	x.Indent("", "  ")
	if err := x.Encode(doc); err != nil {
		return fmt.Errorf("geometry: gdml: %w", err)
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Dump writes the geometry to a GDML file at path.
func (g *Geometry) Dump(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geometry: %w", err)
	}
	if err := g.WriteGDML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type gdmlWriter struct {
	materials *material.Registry
	solids    map[solid.Solid]string
	meshes    map[*mesh.Shared]string
	used      map[string]bool
	written   map[string]bool // materials and elements

	define, materialItems, solidItems, structure gdmlSection
}

// volume writes the daughters of pv before pv itself, as GDML requires
// references to be defined first.
func (w *gdmlWriter) volume(pv *PlacedVolume) error {
	for _, d := range pv.daughters {
		if err := w.volume(d); err != nil {
			return err
		}
	}
	if err := w.material(pv.material.Name, 0); err != nil {
		return err
	}
	v := gdmlVolume{
		Name:     pv.path,
		Material: gdmlRef{pv.material.Name},
		Solid:    gdmlRef{w.solid(pv.solid)},
	}
	for _, d := range pv.daughters {
		pos, rot := placement(d.transform)
		v.PhysVols = append(v.PhysVols, gdmlPhysVol{
			Name:     d.path,
			Volume:   gdmlRef{d.path},
			Position: pos,
			Rotation: rot,
		})
	}
	w.structure.Items = append(w.structure.Items, v)
	return nil
}

func (w *gdmlWriter) material(name string, depth int) error {
	if w.written[name] {
		return nil
	}
	m, err := w.materials.Lookup(name)
	if err != nil {
		return fmt.Errorf("geometry: gdml: %w", err)
	}
	if depth > 64 {
		return fmt.Errorf("geometry: gdml: material '%s' nests too deep", name)
	}
	w.written[name] = true
	out := gdmlMaterial{Name: m.Name}
	if m.State != material.StateUndefined {
		out.State = m.State.String()
	}
	out.D.Unit, out.D.Value = "g/cm3", m.Density
	for _, c := range m.Components {
		ref := c.Name
		if _, err := w.materials.Lookup(c.Name); err == nil {
			if err := w.material(c.Name, depth+1); err != nil {
				return err
			}
		} else {
			e, err := w.materials.Element(c.Name)
			if err != nil {
				return fmt.Errorf("geometry: gdml: %w", err)
			}
			ref = e.Name
			w.element(e)
		}
		out.Fractions = append(out.Fractions, gdmlFraction{N: c.Fraction, Ref: ref})
	}
	w.materialItems.Items = append(w.materialItems.Items, out)
	return nil
}

func (w *gdmlWriter) element(e *material.Element) {
	key := "element:" + e.Name
	if w.written[key] {
		return
	}
	w.written[key] = true
	out := gdmlElement{Name: e.Name, Formula: e.Symbol, Z: e.Z}
	out.Atom.Unit, out.Atom.Value = "g/mole", e.A
	w.materialItems.Items = append(w.materialItems.Items, out)
}

// name returns a unique GDML name for s, based on its own name.
func (w *gdmlWriter) name(s solid.Solid) string {
	base := s.Name()
	name := base
	for i := 1; w.used[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	w.used[name] = true
	w.solids[s] = name
	return name
}

// solid writes s and its constituents and returns its GDML name.
func (w *gdmlWriter) solid(s solid.Solid) string {
	if name, ok := w.solids[s]; ok {
		return name
	}
	var item any
	switch s := s.(type) {
	case *solid.Box:
		h := s.HalfLengths()
		item = gdmlBox{Name: w.name(s), X: 2 * h.X, Y: 2 * h.Y, Z: 2 * h.Z, LUnit: "mm"}
	case *solid.Tubs:
		rmin, rmax, dz, sphi, dphi := s.Dimensions()
		item = gdmlTube{
			Name: w.name(s), RMin: rmin, RMax: rmax, Z: 2 * dz,
			StartPhi: sphi, DeltaPhi: dphi, AUnit: "rad", LUnit: "mm",
		}
	case *solid.Orb:
		item = gdmlOrb{Name: w.name(s), R: s.Radius(), LUnit: "mm"}
	case *solid.Sphere:
		rmin, rmax, sphi, dphi, stheta, dtheta := s.Dimensions()
		item = gdmlSphere{
			Name: w.name(s), RMin: rmin, RMax: rmax,
			StartPhi: sphi, DeltaPhi: dphi, StartTheta: stheta, DeltaTheta: dtheta,
			AUnit: "rad", LUnit: "mm",
		}
	case *solid.Displaced:
		inner := w.solid(s.Constituent())
		name := w.name(s)
		node := gdmlUnionNode{Name: name + "_node", Solid: gdmlRef{inner}}
		node.Position, node.Rotation = placement(s.Transform())
		item = gdmlMultiUnion{Name: name, Nodes: []gdmlUnionNode{node}}
	case *solid.Subtraction:
		a, b, t := s.Constituents()
		first, second := w.solid(a), w.solid(b)
		sub := gdmlSubtraction{Name: w.name(s), First: gdmlRef{first}, Second: gdmlRef{second}}
		sub.Position, sub.Rotation = placement(t)
		item = sub
	case *solid.Tessellated:
		// Placements of one shared mesh reference a single element.
		if name, ok := w.meshes[s.Mesh()]; ok {
			w.solids[s] = name
			return name
		}
		name := w.name(s)
		w.meshes[s.Mesh()] = name
		item = w.tessellated(name, s)
	default:
		panic(fmt.Sprintf("geometry: gdml: unexpected solid %T", s))
	}
	w.solidItems.Items = append(w.solidItems.Items, item)
	return w.solids[s]
}

func (w *gdmlWriter) tessellated(name string, s *solid.Tessellated) gdmlTessellated {
	out := gdmlTessellated{Name: name, AUnit: "rad", LUnit: "mm"}
	facets := s.Mesh().Facets()
	out.Facets = make([]gdmlTriangular, 0, len(facets))
	index := make(map[r3.Vector]string)
	vertex := func(p r3.Vector) string {
		if v, ok := index[p]; ok {
			return v
		}
		v := name + "_v" + strconv.Itoa(len(index))
		index[p] = v
		w.define.Items = append(w.define.Items, gdmlPosition{Name: v, X: p.X, Y: p.Y, Z: p.Z, Unit: "mm"})
		return v
	}
	for i := range facets {
		f := &facets[i]
		out.Facets = append(out.Facets, gdmlTriangular{
			Vertex1: vertex(f.V0), Vertex2: vertex(f.V1), Vertex3: vertex(f.V2), Type: "ABSOLUTE",
		})
	}
	return out
}

// placement converts t to GDML position and rotation elements, omitting
// identities. GDML rotations are frame rotations, the inverse of t.Rot.
func placement(t geom.Transform) (*gdmlPosition, *gdmlRotation) {
	var pos *gdmlPosition
	var rot *gdmlRotation
	if t.IsTranslated() {
		pos = &gdmlPosition{X: t.Trans.X, Y: t.Trans.Y, Z: t.Trans.Z, Unit: "mm"}
	}
	if t.IsRotated() {
		x, y, z := t.Rot.Transpose().AxisAngles()
		rot = &gdmlRotation{X: x, Y: y, Z: z, Unit: "rad"}
	}
	return pos, rot
}
