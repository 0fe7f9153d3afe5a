package spec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/calzone/pkg/mesh"
)

const detector = `
World:
  material: G4_AIR
  box: 200
  overlaps:
    Tank: [Lid, Detector]
    Lid: Tank
  Tank:
    material: Water
    cylinder: {radius: 50, length: 100, thickness: 1, section: [0, 180]}
    position: [0, 0, -10]
    roles: [catch_ingoing, record_deposits]
  Lid:
    material: G4_Fe
    box: [100, 100, 2]
    position: [0, 0, 41]
    rotation: [[0, 1, 0], [-1, 0, 0], [0, 0, 1]]
  Detector:
    material: G4_AIR
    envelope: {shape: sphere, safety: 0.5}
    Probe:
      material: G4_Si
      sphere: 1
materials:
  molecules:
    Water: {density: 1, state: liquid, composition: {H: 2, O: 1}}
`

func mustDecode(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return doc
}

func TestDecode(t *testing.T) {
	doc := mustDecode(t, detector)
	w := doc.Volume
	if w.Name != "World" || w.Material != "G4_AIR" || w.Shape.Box == nil || w.Shape.Box.Size != [3]float64{200, 200, 200} {
		t.Fatalf("root = %+v", w)
	}
	var names []string
	for _, v := range w.Volumes {
		names = append(names, v.Name)
	}
	if got := strings.Join(names, ","); got != "Tank,Lid,Detector" {
		t.Errorf("daughters = %s, want declaration order", got)
	}
	wantOverlaps := [][2]string{{"Detector", "Tank"}, {"Lid", "Tank"}}
	if len(w.Overlaps) != 2 || w.Overlaps[0] != wantOverlaps[0] || w.Overlaps[1] != wantOverlaps[1] {
		t.Errorf("overlaps = %v, want %v", w.Overlaps, wantOverlaps)
	}

	tank := w.Daughter("Tank")
	if c := tank.Shape.Cylinder; c == nil || c.Radius != 50 || c.Thickness != 1 || c.Section == nil || c.Section[1] != 180 {
		t.Errorf("tank shape = %+v", tank.Shape)
	}
	if tank.Position != [3]float64{0, 0, -10} {
		t.Errorf("tank position = %v", tank.Position)
	}
	if tank.Roles != (Roles{Ingoing: ActionCatch, Deposits: ActionRecord}) {
		t.Errorf("tank roles = %v", tank.Roles)
	}
	if lid := w.Daughter("Lid"); lid.Rotation == nil || lid.Rotation[1][0] != -1 {
		t.Errorf("lid rotation = %v", lid.Rotation)
	}
	env := w.Daughter("Detector").Shape.Envelope
	if env == nil || env.EnvelopeShape() != ShapeSphere || len(env.Padding) != 1 || env.Padding[0] != 0.5 {
		t.Errorf("envelope = %+v", env)
	}
	if doc.Materials == nil || doc.Materials.Molecules["Water"].Composition["H"] != 2 {
		t.Errorf("materials = %+v", doc.Materials)
	}
	if errs := doc.Validate(); len(errs) != 0 {
		t.Errorf("Validate: %v", errs)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no root", "materials: {}\n", "expected 1 root volume, found 0"},
		{"two roots", "A: {material: G4_AIR, box: 1}\nB: {material: G4_AIR, box: 1}\n", "expected 1 root volume, found 2"},
		{"unknown property", "A: {material: G4_AIR, box: 1, colour: red}\n", "unknown property or shape 'colour'"},
		{"multiple shapes", "A: {material: G4_AIR, box: 1, sphere: 1}\n", "multiple shape definitions (box, sphere, ..)"},
		{"missing shape", "A: {material: G4_AIR}\n", "missing shape"},
		{"bad name", "A: {material: G4_AIR, box: 1, B_1: {material: G4_AIR, box: 1}}\n", "expected an alphanumeric string"},
		{"undefined overlap", "A: {material: G4_AIR, box: 1, overlaps: {B: C}, B: {material: G4_AIR, box: 1}}\n", "undefined 'C' volume"},
		{"unknown cylinder key", "A: {material: G4_AIR, cylinder: {radius: 1, length: 1, height: 2}}\n", "unknown property 'height'"},
		{"bad role", "A: {material: G4_AIR, box: 1, roles: kill_deposits}\n", "deposits can only be recorded"},
		{"bad algorithm", "A: {material: G4_AIR, mesh: {path: a.stl, algorithm: octree}}\n", "unknown algorithm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func box(name string, daughters ...*VolumeSpec) *VolumeSpec {
	return &VolumeSpec{
		Name:     name,
		Material: "G4_AIR",
		Shape:    Shape{Box: &Box{Size: [3]float64{1, 1, 1}}},
		Volumes:  daughters,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		build func() *VolumeSpec
		path  string
		want  string
	}{
		{
			"subtract chain",
			func() *VolumeSpec {
				a, b, c := box("A"), box("B"), box("C")
				a.Subtract = []string{"B"}
				c.Subtract = []string{"A"}
				return box("World", a, b, c)
			},
			"World.C", "cannot subtract a subtracted volume ('World.A')",
		},
		{
			"subtract self",
			func() *VolumeSpec {
				a := box("A")
				a.Subtract = []string{"A"}
				return box("World", a)
			},
			"World.A", "cannot subtract self ('World.A')",
		},
		{
			"subtract unknown",
			func() *VolumeSpec {
				a := box("A")
				a.Subtract = []string{"Z"}
				return box("World", a)
			},
			"World.A", "unknown volume 'World.Z'",
		},
		{
			"root subtract",
			func() *VolumeSpec {
				w := box("World")
				w.Subtract = []string{"A"}
				return w
			},
			"World", "unknown volume 'A'",
		},
		{
			"subtract overlapping",
			func() *VolumeSpec {
				a, b := box("A"), box("B")
				a.Subtract = []string{"B"}
				w := box("World", a, b)
				w.Overlaps = [][2]string{{"A", "B"}}
				return w
			},
			"World.A", "cannot subtract overlaping volumes",
		},
		{
			"duplicate daughter",
			func() *VolumeSpec { return box("World", box("A"), box("A")) },
			"World", "duplicate 'A' volume",
		},
		{
			"negative size",
			func() *VolumeSpec {
				w := box("World")
				w.Shape.Box.Size[1] = -1
				return w
			},
			"World", "bad box",
		},
		{
			"thick cylinder",
			func() *VolumeSpec {
				w := box("World")
				w.Shape = Shape{Cylinder: &Cylinder{Radius: 1, Length: 1, Thickness: 1}}
				return w
			},
			"World", "thickness: ltfield=radius",
		},
		{
			"bad padding",
			func() *VolumeSpec {
				w := box("World", box("A"))
				w.Shape = Shape{Envelope: &Envelope{Padding: []float64{1, 2}}}
				return w
			},
			"World", "padding: padding",
		},
		{
			"stl origin",
			func() *VolumeSpec {
				w := box("World")
				w.Shape = Shape{Mesh: &Mesh{Path: "rock.stl", Origin: &[3]float64{}}}
				return w
			},
			"World", "invalid option for STL format",
		},
		{
			"bad rotation",
			func() *VolumeSpec {
				w := box("World")
				w.Rotation = &[3][3]float64{{2, 0, 0}, {0, 1, 0}, {0, 0, 1}}
				return w
			},
			"World", "bad rotation",
		},
		{
			"lowercase name",
			func() *VolumeSpec { return box("World", box("detector")) },
			"World.detector", "should be capitalised",
		},
		{
			"zenith section",
			func() *VolumeSpec {
				w := box("World")
				w.Shape = Shape{Sphere: &Sphere{Radius: 1, ZenithSection: &[2]float64{90, 200}}}
				return w
			},
			"World", "bad zenith section",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FirstError(Validate(tt.build()))
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want a ValidationError", err)
			}
			if verr.Path != tt.path || !strings.Contains(verr.Message, tt.want) {
				t.Errorf("got %q at %q, want %q at %q", verr.Message, verr.Path, tt.want, tt.path)
			}
		})
	}
}

func TestValidateEnvelopeWarning(t *testing.T) {
	w := box("World")
	w.Shape = Shape{Envelope: &Envelope{}}
	errs := Validate(w)
	if len(errs) != 1 || errs[0].Severity != SeverityWarning {
		t.Fatalf("findings = %v, want one warning", errs)
	}
	if err := FirstError(errs); err != nil {
		t.Errorf("warning reported as error: %v", err)
	}
}

func TestRoles(t *testing.T) {
	r, err := ParseRoles([]string{"kill_outgoing", "Catch_Ingoing", "record_deposits"})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(r.Strings(), " "); got != "catch_ingoing kill_outgoing record_deposits" {
		t.Errorf("Strings() = %q", got)
	}
	if r.IsZero() || !(Roles{}).IsZero() {
		t.Error("IsZero mismatch")
	}
	for _, bad := range []string{"catch", "hold_ingoing", "catch_sideways", "catch_deposits"} {
		if _, err := ParseRoles([]string{bad}); err == nil {
			t.Errorf("ParseRoles(%q) succeeded", bad)
		}
	}
	if _, err := ParseRoles([]string{"catch_ingoing", "kill_ingoing"}); err == nil {
		t.Error("conflicting roles accepted")
	}
}

func TestTreeOperations(t *testing.T) {
	doc := mustDecode(t, detector)

	if err := doc.Delete("World"); err == nil || !strings.Contains(err.Error(), "cannot delete root volume") {
		t.Errorf("Delete(root) = %v", err)
	}
	if err := doc.Delete("World.Nope"); err == nil || !strings.Contains(err.Error(), "unknown 'World.Nope' volume") {
		t.Errorf("Delete(unknown) = %v", err)
	}
	if err := doc.Delete("World.Lid"); err != nil {
		t.Fatal(err)
	}
	if doc.Contains("World.Lid") || len(doc.Volume.Overlaps) != 1 {
		t.Errorf("after delete: overlaps = %v", doc.Volume.Overlaps)
	}

	water := "G4_WATER"
	if err := doc.Modify("World.Tank", Modification{Material: &water, Position: &[3]float64{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	if tank, _ := doc.Lookup("World.Tank"); tank.Material != water || tank.Position[2] != 3 {
		t.Errorf("modified tank = %+v", tank)
	}
	if err := doc.Modify("World", Modification{Overlaps: [][2]string{{"Tank", "Ghost"}}}); err == nil {
		t.Error("undefined overlap accepted")
	}

	if err := doc.Move("World.Tank", "World.Vessel"); err != nil {
		t.Fatal(err)
	}
	if !doc.Contains("World.Vessel") || doc.Contains("World.Tank") {
		t.Error("rename failed")
	}
	if err := doc.Move("World.Vessel", "World.Detector.Vessel"); err != nil {
		t.Fatal(err)
	}
	if !doc.Contains("World.Detector.Vessel") {
		t.Error("relocation failed")
	}
	if err := doc.Move("World", "World.Other"); err == nil {
		t.Error("moved the root volume")
	}
	if err := doc.Move("World.Detector", "World.Detector.Probe.Detector"); err == nil {
		t.Error("moved a volume inside itself")
	}

	extra := mustDecode(t, "Probe:\n  material: Rock\n  box: 3\nmaterials:\n  mixtures:\n    Rock: {density: 2.6, composition: {G4_CONCRETE: 1}}\n")
	if err := doc.Place(extra, "World.Detector", &[3]float64{0, 0, 5}, nil); err != nil {
		t.Fatal(err)
	}
	probe, err := doc.Lookup("World.Detector.Probe")
	if err != nil || probe.Material != "Rock" || probe.Position[2] != 5 {
		t.Errorf("placed probe = %+v, %v", probe, err)
	}
	if _, ok := doc.Materials.Mixtures["Rock"]; !ok {
		t.Error("materials not merged")
	}

	if path, _, err := doc.Find("Probe"); err != nil || path != "World.Detector.Probe" {
		t.Errorf("Find(Probe) = %q, %v", path, err)
	}
	if err := doc.Place(extra, "", nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := doc.Find("Probe"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("Find(ambiguous) = %v", err)
	}
	if _, _, err := doc.Find("Missing"); err == nil {
		t.Error("Find(Missing) succeeded")
	}
}

func TestLoadFileResolvesMeshPath(t *testing.T) {
	dir := t.TempDir()
	src := "Rock:\n  material: G4_CONCRETE\n  mesh: {path: rock.stl, units: m, algorithm: bvh}\n"
	path := filepath.Join(dir, "rock.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	m := doc.Volume.Shape.Mesh
	if m.Path != filepath.Join(dir, "rock.stl") || m.Key() != "rock.stl" {
		t.Errorf("mesh = %+v", m)
	}
	if m.Algorithm != mesh.AlgorithmBVH || m.Unit() != 1000 || m.Source() != mesh.SourceModel {
		t.Errorf("mesh options = %+v", m)
	}
}

func TestEnvelopeSides(t *testing.T) {
	tests := []struct {
		padding []float64
		want    [6]float64
	}{
		{nil, [6]float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01}},
		{[]float64{2}, [6]float64{2, 2, 2, 2, 2, 2}},
		{[]float64{1, 2, 3}, [6]float64{1, 1, 2, 2, 3, 3}},
		{[]float64{1, 2, 3, 4, 5, 6}, [6]float64{1, 2, 3, 4, 5, 6}},
	}
	for _, tt := range tests {
		e := Envelope{Padding: tt.padding}
		if got := e.Sides(0.01); got != tt.want {
			t.Errorf("Sides(%v) = %v, want %v", tt.padding, got, tt.want)
		}
	}
}

func TestMapSpecGrid(t *testing.T) {
	m := MapSpec{X: [2]float64{0, 2}, Y: [2]float64{0, 1}, Z: [][]float64{{0, 1, 2}, {1, 2, 3}}}
	g, err := m.Grid()
	if err != nil {
		t.Fatal(err)
	}
	if g.Nx != 3 || g.Ny != 2 || g.Z[5] != 3 {
		t.Errorf("grid = %+v", g)
	}
	m.Z[1] = m.Z[1][:2]
	if _, err := m.Grid(); err == nil {
		t.Error("ragged map accepted")
	}
}

func TestClone(t *testing.T) {
	doc := mustDecode(t, detector)
	c := doc.Volume.Clone()
	c.Volumes[0].Name = "Changed"
	c.Daughter("Lid").Rotation[0][0] = 9
	if doc.Volume.Volumes[0].Name != "Tank" || doc.Volume.Daughter("Lid").Rotation[0][0] != 0 {
		t.Error("clone shares state with the original")
	}
}
