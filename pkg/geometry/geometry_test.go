package geometry

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/chazu/calzone/pkg/spec"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func box(name, mat string, size float64, daughters ...*spec.VolumeSpec) *spec.VolumeSpec {
	return &spec.VolumeSpec{
		Name:     name,
		Material: mat,
		Shape:    spec.Shape{Box: &spec.Box{Size: [3]float64{size, size, size}}},
		Volumes:  daughters,
	}
}

func at(v *spec.VolumeSpec, x, y, z float64) *spec.VolumeSpec {
	v.Position = [3]float64{x, y, z}
	return v
}

// testOptions isolates the material and mesh registries of a test.
func testOptions(meshes *mesh.Registry) []Option {
	if meshes == nil {
		meshes = mesh.NewRegistry()
	}
	return []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMaterials(material.NewRegistry()),
		WithMeshRegistry(meshes),
	}
}

func mustBuild(t *testing.T, root *spec.VolumeSpec, opts ...Option) *Geometry {
	t.Helper()
	g, err := BuildVolume(root, append(testOptions(nil), opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !g.Released() {
			g.Drop()
		}
	})
	return g
}

func mustVolume(t *testing.T, g *Geometry, path string) *Volume {
	t.Helper()
	v, err := g.Volume(path)
	require.NoError(t, err)
	return v
}

func assertArray(t *testing.T, want []float64, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], tol, "component %d of %v", i, got)
	}
}

func TestComputeBoxRoot(t *testing.T) {
	g := mustBuild(t, box("Root", "G4_AIR", 2))

	v := mustVolume(t, g, "Root")
	got, err := v.ComputeBox("Root")
	require.NoError(t, err)
	assertArray(t, []float64{-1, 1, -1, 1, -1, 1}, got[:])

	origin, err := v.ComputeOrigin("")
	require.NoError(t, err)
	assertArray(t, []float64{0, 0, 0}, origin[:])
	assert.InDelta(t, 24.0, v.ComputeSurface(), tol)
	assert.InDelta(t, 8.0, v.ComputeVolume(true), tol)
}

func TestEnvelopeRecentering(t *testing.T) {
	mother := &spec.VolumeSpec{
		Name:     "Mother",
		Material: "G4_AIR",
		Shape:    spec.Shape{Envelope: &spec.Envelope{}},
		Volumes:  []*spec.VolumeSpec{at(box("A", "G4_Si", 1), 5, 0, 0)},
	}
	g := mustBuild(t, box("World", "G4_AIR", 100, mother))

	v := mustVolume(t, g, "World.Mother")
	got, err := v.ComputeBox("World.Mother")
	require.NoError(t, err)
	assertArray(t, []float64{4.49, 5.51, -0.51, 0.51, -0.51, 0.51}, got[:])

	origin, err := v.ComputeOrigin("World.Mother")
	require.NoError(t, err)
	assertArray(t, []float64{0, 0, 0}, origin[:])

	assert.Equal(t, solid.KindDisplaced, v.Placed().Solid().Kind())
	assert.Equal(t, 1, g.Orphans())

	in, err := v.Inside([3]float64{5, 0, 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, solid.Inside, in)
	in, err = v.Inside([3]float64{0, 0, 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, solid.Outside, in)
}

func TestEnvelopeShapes(t *testing.T) {
	rc, rs := math.Sqrt2+0.5, math.Sqrt(3)+0.5
	tests := []struct {
		shape  string
		kind   solid.Kind
		bounds []float64
	}{
		{"box", solid.KindBox, []float64{-1.5, 1.5, -1.5, 1.5, -1.5, 1.5}},
		{"cylinder", solid.KindTubs, []float64{-rc, rc, -rc, rc, -1.5, 1.5}},
		{"sphere", solid.KindOrb, []float64{-rs, rs, -rs, rs, -rs, rs}},
	}
	for _, tt := range tests {
		t.Run(tt.shape, func(t *testing.T) {
			env := &spec.VolumeSpec{
				Name:     "Env",
				Material: "G4_AIR",
				Shape:    spec.Shape{Envelope: &spec.Envelope{Shape: tt.shape, Padding: []float64{0.5}}},
				Volumes:  []*spec.VolumeSpec{box("Core", "G4_Si", 2)},
			}
			g := mustBuild(t, box("World", "G4_AIR", 100, env))
			v := mustVolume(t, g, "World.Env")
			assert.Equal(t, tt.kind, v.Placed().Solid().Kind())
			got, err := v.ComputeBox("")
			require.NoError(t, err)
			assertArray(t, tt.bounds, got[:])
		})
	}
}

func TestRotatedPlacement(t *testing.T) {
	a := &spec.VolumeSpec{
		Name:     "A",
		Material: "G4_Si",
		Shape:    spec.Shape{Box: &spec.Box{Size: [3]float64{2, 4, 6}}},
		Position: [3]float64{1, 0, 0},
		Rotation: &[3][3]float64{{0, 1, 0}, {-1, 0, 0}, {0, 0, 1}},
	}
	g := mustBuild(t, box("Root", "G4_AIR", 20, a))
	v := mustVolume(t, g, "Root.A")

	got, err := v.ComputeBox("")
	require.NoError(t, err)
	assertArray(t, []float64{-1, 3, -1, 1, -3, 3}, got[:])

	local, err := v.ComputeBox("Root.A")
	require.NoError(t, err)
	assertArray(t, []float64{-1, 1, -2, 2, -3, 3}, local[:])

	in, err := v.Inside([3]float64{2.5, 0, 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, solid.Inside, in)
	in, err = v.Inside([3]float64{1, 1.5, 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, solid.Outside, in)
}

func TestRootDisplacement(t *testing.T) {
	root := at(box("Root", "G4_AIR", 2), 3, 0, 0)
	g := mustBuild(t, root)
	v := mustVolume(t, g, "Root")
	assert.Equal(t, solid.KindDisplaced, v.Placed().Solid().Kind())
	assert.True(t, v.Placed().Transform().IsIdentity())
	got, err := v.ComputeBox("")
	require.NoError(t, err)
	assertArray(t, []float64{2, 4, -1, 1, -1, 1}, got[:])
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		root func() *spec.VolumeSpec
		want string
	}{
		{
			name: "unknown material",
			root: func() *spec.VolumeSpec { return box("Root", "G4_AIR", 10, box("A", "Unobtainium", 1)) },
			want: "bad 'Root.A' volume (undefined 'Unobtainium' material)",
		},
		{
			name: "subtract chain",
			root: func() *spec.VolumeSpec {
				a, b, c := box("A", "G4_Si", 1), box("B", "G4_Si", 1), box("C", "G4_Si", 1)
				a.Subtract = []string{"B"}
				c.Subtract = []string{"A"}
				return box("Root", "G4_AIR", 10, a, b, c)
			},
			want: "cannot subtract a subtracted volume ('Root.A')",
		},
		{
			name: "unknown subtract target",
			root: func() *spec.VolumeSpec {
				a := box("A", "G4_Si", 1)
				a.Subtract = []string{"Ghost"}
				return box("Root", "G4_AIR", 10, a)
			},
			want: "unknown volume 'Root.Ghost'",
		},
		{
			name: "bad shape",
			root: func() *spec.VolumeSpec {
				return box("Root", "G4_AIR", 10, box("A", "G4_Si", -1))
			},
			want: "bad 'Root.A' volume",
		},
		{
			name: "empty envelope",
			root: func() *spec.VolumeSpec {
				return &spec.VolumeSpec{
					Name: "Root", Material: "G4_AIR",
					Shape: spec.Shape{Envelope: &spec.Envelope{Padding: []float64{0}}},
				}
			},
			want: "bad 'Root' volume (could not create solid)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := testutil.ToFloat64(buildsTotal.WithLabelValues("error"))
			g, err := BuildVolume(tt.root(), testOptions(nil)...)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, IsValueError(err), "error %v", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, failures+1, testutil.ToFloat64(buildsTotal.WithLabelValues("error")))
		})
	}
}

func TestEmptyEnvelopeWithPadding(t *testing.T) {
	root := &spec.VolumeSpec{
		Name: "Root", Material: "G4_AIR",
		Shape: spec.Shape{Envelope: &spec.Envelope{Padding: []float64{1}}},
	}
	g := mustBuild(t, root)
	got, err := mustVolume(t, g, "Root").ComputeBox("")
	require.NoError(t, err)
	assertArray(t, []float64{-1, 1, -1, 1, -1, 1}, got[:])
}

func TestFrames(t *testing.T) {
	a := at(box("A", "G4_Si", 2, at(box("Inner", "G4_Si", 1), 0.25, 0, 0)), 3, 0, 0)
	b := at(box("B", "G4_Si", 2), -3, 0, 0)
	g := mustBuild(t, box("Root", "G4_AIR", 20, a, b))

	inner := mustVolume(t, g, "Root.A.Inner")
	origin, err := inner.ComputeOrigin("")
	require.NoError(t, err)
	assertArray(t, []float64{3.25, 0, 0}, origin[:])
	origin, err = inner.ComputeOrigin("Root.A")
	require.NoError(t, err)
	assertArray(t, []float64{0.25, 0, 0}, origin[:])

	_, err = inner.ComputeBox("Root.B")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'Root.B' does not contain 'Root.A.Inner'")

	_, err = inner.ComputeBox("Nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown volume 'Nowhere'")

	_, err = g.Volume("Root.C")
	require.Error(t, err)
	assert.True(t, IsValueError(err))

	path, err := g.Find("Inner")
	require.NoError(t, err)
	assert.Equal(t, "Root.A.Inner", path)
	assert.Equal(t, []string{"Root", "Root.A", "Root.A.Inner", "Root.B"}, g.Paths())
}

func TestInsideCarvesDaughters(t *testing.T) {
	g := mustBuild(t, box("Root", "G4_AIR", 10, box("A", "G4_Si", 2)))
	root := mustVolume(t, g, "Root")

	tests := []struct {
		point   [3]float64
		include bool
		want    solid.EInside
	}{
		{[3]float64{0, 0, 0}, true, solid.Inside},
		{[3]float64{0, 0, 0}, false, solid.Outside},
		{[3]float64{1, 0, 0}, false, solid.Surface},
		{[3]float64{3, 0, 0}, false, solid.Inside},
		{[3]float64{5, 0, 0}, false, solid.Surface},
		{[3]float64{6, 0, 0}, false, solid.Outside},
	}
	for _, tt := range tests {
		got, err := root.Inside(tt.point, "", tt.include)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Inside(%v, %v)", tt.point, tt.include)
	}

	assert.InDelta(t, 1000.0, root.ComputeVolume(true), tol)
	assert.InDelta(t, 992.0, root.ComputeVolume(false), tol)
}

func TestGenerateOnto(t *testing.T) {
	g := mustBuild(t, box("Root", "G4_AIR", 20, at(box("A", "G4_Si", 2), 5, 0, 0)))
	a := mustVolume(t, g, "Root.A")

	rng := rand.New(rand.NewPCG(1, 2))
	samples, err := a.GenerateOnto(rng, 500, "", true)
	require.NoError(t, err)
	require.Len(t, samples, 500)
	for _, s := range samples {
		in, err := a.Inside(s.Position, "", true)
		require.NoError(t, err)
		require.Equal(t, solid.Surface, in, "point %v", s.Position)
		n := s.Normal
		require.InDelta(t, 1.0, math.Sqrt(n[0]*n[0]+n[1]*n[1]+n[2]*n[2]), 1e-6)
	}

	local, err := a.GenerateOnto(rng, 10, "Root.A", false)
	require.NoError(t, err)
	for _, s := range local {
		for i := range 3 {
			assert.LessOrEqual(t, math.Abs(s.Position[i]), 1+tol)
		}
		assert.Equal(t, [3]float64{}, s.Normal)
	}
}

func TestCheck(t *testing.T) {
	t.Run("coincident", func(t *testing.T) {
		g := mustBuild(t, box("Root", "G4_AIR", 10, box("A", "G4_Si", 2), box("B", "G4_Si", 2)))
		err := g.Check(1000)
		var overlap *OverlapError
		require.True(t, errors.As(err, &overlap), "error %v", err)
		assert.False(t, overlap.Protrudes)
		assert.Contains(t, []string{"Root.A", "Root.B"}, overlap.Path)
	})
	t.Run("separated", func(t *testing.T) {
		g := mustBuild(t, box("Root", "G4_AIR", 10,
			at(box("A", "G4_Si", 2), -2, 0, 0),
			at(box("B", "G4_Si", 2), 2, 0, 0)))
		assert.NoError(t, g.Check(1000))
	})
	t.Run("protrudes", func(t *testing.T) {
		g := mustBuild(t, box("Root", "G4_AIR", 10, at(box("A", "G4_Si", 4), 4, 0, 0)))
		err := g.Check(0)
		var overlap *OverlapError
		require.True(t, errors.As(err, &overlap), "error %v", err)
		assert.True(t, overlap.Protrudes)
		assert.Equal(t, "Root.A", overlap.Path)
		assert.Equal(t, "Root", overlap.Other)
	})
	t.Run("patched", func(t *testing.T) {
		root := box("Root", "G4_AIR", 20,
			box("A", "G4_Si", 4),
			at(box("B", "G4_Si", 4), 2, 0, 0))
		root.Overlaps = [][2]string{{"A", "B"}}
		g := mustBuild(t, root)
		assert.Equal(t, solid.KindSubtraction, mustVolume(t, g, "Root.A").Placed().Solid().Kind())
		assert.NoError(t, g.Check(500))
	})
}

func TestSubtract(t *testing.T) {
	a := box("A", "G4_Si", 4)
	a.Subtract = []string{"B"}
	b := at(box("B", "G4_Si", 2), 1, 0, 0)
	g := mustBuild(t, box("Root", "G4_AIR", 20, a, b))

	v := mustVolume(t, g, "Root.A")
	sub, ok := v.Placed().Solid().(*solid.Subtraction)
	require.True(t, ok)
	_, _, tr := sub.Constituents()
	assert.InDelta(t, 10.0, tr.Trans.X, tol)

	in, err := v.Inside([3]float64{1, 0, 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, solid.Outside, in)
	in, err = v.Inside([3]float64{-1, 0, 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, solid.Inside, in)
	assert.Equal(t, 1, g.Orphans())
}

func TestSwallowedSubtraction(t *testing.T) {
	a := box("A", "G4_Si", 2)
	a.Subtract = []string{"B"}
	g := mustBuild(t, box("Root", "G4_AIR", 20, a, box("B", "G4_Si", 4)))

	_, err := mustVolume(t, g, "Root.A").GenerateOnto(rand.New(rand.NewPCG(1, 2)), 10, "", false)
	var verr *ValueError
	require.True(t, errors.As(err, &verr), "error %v", err)
	assert.Contains(t, verr.Reason, "no surface to sample")

	assert.NoError(t, g.Check(50))
}

func TestReferenceCounting(t *testing.T) {
	live := testutil.ToFloat64(liveGeometries)
	g, err := BuildVolume(box("Root", "G4_AIR", 2), testOptions(nil)...)
	require.NoError(t, err)
	assert.Equal(t, live+1, testutil.ToFloat64(liveGeometries))

	h := g.Handle()
	found, ok := Lookup(h)
	require.True(t, ok)
	assert.Same(t, g, found)

	g.Clone()
	g.Clone()
	assert.EqualValues(t, 3, g.Refs())

	g.Drop()
	g.Drop()
	assert.False(t, g.Released())
	_, err = g.Volume("Root")
	require.NoError(t, err)

	require.NoError(t, Release(h))
	assert.True(t, g.Released())
	assert.Equal(t, live, testutil.ToFloat64(liveGeometries))

	_, ok = Lookup(h)
	assert.False(t, ok)
	assert.Error(t, Release(h))
	_, err = g.Volume("Root")
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, g.Check(10), ErrReleased)
}

func terrain(name string) *spec.Mesh {
	return &spec.Mesh{
		Name: name,
		Map: &spec.MapSpec{
			X: [2]float64{-5, 5},
			Y: [2]float64{-5, 5},
			Z: [][]float64{{0, 1, 0}, {1, 2, 1}, {0, 1, 0}},
		},
		ExtraDepth: ptr(3.0),
	}
}

func ptr[T any](v T) *T { return &v }

func TestMeshSharing(t *testing.T) {
	meshes := mesh.NewRegistry()
	hill := func(name string, x float64) *spec.VolumeSpec {
		return &spec.VolumeSpec{
			Name:     name,
			Material: "G4_CONCRETE",
			Shape:    spec.Shape{Mesh: terrain("hill")},
			Position: [3]float64{x, 0, 0},
		}
	}
	root := box("World", "G4_AIR", 100, hill("East", 20), hill("West", -20))
	g, err := BuildVolume(root, testOptions(meshes)...)
	require.NoError(t, err)

	east := mustVolume(t, g, "World.East").Placed().Solid().(*solid.Tessellated)
	west := mustVolume(t, g, "World.West").Placed().Solid().(*solid.Tessellated)
	assert.Same(t, east.Mesh(), west.Mesh())
	assert.Equal(t, 1, meshes.Len())
	assert.EqualValues(t, 2, east.Mesh().Refs())
	assert.Equal(t, mesh.AlgorithmBVH, east.Mesh().Algorithm())

	got, err := mustVolume(t, g, "World.East").ComputeBox("")
	require.NoError(t, err)
	assertArray(t, []float64{15, 25, -5, 5, -3, 2}, got[:])

	// (20, 0, z) runs through the peak vertex of the grid.
	eastVolume := mustVolume(t, g, "World.East")
	for _, tt := range []struct {
		point [3]float64
		want  solid.EInside
	}{
		{[3]float64{20, 0, 1}, solid.Inside},
		{[3]float64{20, 0, -2}, solid.Inside},
		{[3]float64{20, 0, 2.5}, solid.Outside},
		{[3]float64{22.5, 0, 1}, solid.Inside},
		{[3]float64{20, 2.5, 1}, solid.Inside},
		{[3]float64{20, 0, -4}, solid.Outside},
	} {
		got, err := eastVolume.Inside(tt.point, "", true)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.point)
	}

	g.Drop()
	assert.Equal(t, 0, meshes.Len())
}

func TestMeshContentKeys(t *testing.T) {
	peaked := func(peak float64) *spec.VolumeSpec {
		m := terrain("hill")
		m.Map.Z = [][]float64{{0, 1, 0}, {1, peak, 1}, {0, 1, 0}}
		hill := &spec.VolumeSpec{Name: "Hill", Material: "G4_CONCRETE", Shape: spec.Shape{Mesh: m}}
		return box("World", "G4_AIR", 100, hill)
	}
	zmax := func(t *testing.T, g *Geometry) float64 {
		t.Helper()
		got, err := mustVolume(t, g, "World.Hill").ComputeBox("")
		require.NoError(t, err)
		return got[5]
	}
	quiet := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMaterials(material.NewRegistry()),
	}

	t.Run("default registry", func(t *testing.T) {
		a, err := BuildVolume(peaked(2), quiet...)
		require.NoError(t, err)
		defer a.Drop()
		b, err := BuildVolume(peaked(40), quiet...)
		require.NoError(t, err)
		defer b.Drop()

		assert.InDelta(t, 40, zmax(t, b), 1e-9)
		assert.InDelta(t, 2, zmax(t, a), 1e-9)
	})

	t.Run("common registry", func(t *testing.T) {
		meshes := mesh.NewRegistry()
		a := mustBuild(t, peaked(2), WithMeshRegistry(meshes))
		b := mustBuild(t, peaked(40), WithMeshRegistry(meshes))
		c := mustBuild(t, peaked(2), WithMeshRegistry(meshes))

		assert.InDelta(t, 40, zmax(t, b), 1e-9)
		assert.InDelta(t, 2, zmax(t, a), 1e-9)
		assert.Equal(t, 2, meshes.Len())

		shared := func(g *Geometry) *mesh.Shared {
			return mustVolume(t, g, "World.Hill").Placed().Solid().(*solid.Tessellated).Mesh()
		}
		assert.Same(t, shared(a), shared(c))
		assert.NotSame(t, shared(a), shared(b))

		for _, g := range []*Geometry{a, b, c} {
			g.Drop()
		}
		assert.Equal(t, 0, meshes.Len())
	})
}

func TestWriteGDMLSharedMesh(t *testing.T) {
	hill := func(name string, x float64) *spec.VolumeSpec {
		return at(&spec.VolumeSpec{
			Name:     name,
			Material: "G4_CONCRETE",
			Shape:    spec.Shape{Mesh: terrain("hill")},
		}, x, 0, 0)
	}
	g := mustBuild(t, box("World", "G4_AIR", 100, hill("East", 20), hill("West", -20)))

	var buf bytes.Buffer
	require.NoError(t, g.WriteGDML(&buf))
	var doc struct {
		Solids struct {
			Tessellated []struct {
				Name   string     `xml:"name,attr"`
				Facets []struct{} `xml:"triangular"`
			} `xml:"tessellated"`
		} `xml:"solids"`
		Structure struct {
			Volumes []struct {
				Name  string `xml:"name,attr"`
				Solid struct {
					Ref string `xml:"ref,attr"`
				} `xml:"solidref"`
			} `xml:"volume"`
		} `xml:"structure"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	require.Len(t, doc.Solids.Tessellated, 1)
	shared := doc.Solids.Tessellated[0]
	assert.NotEmpty(t, shared.Facets)
	refs := make(map[string]string)
	for _, v := range doc.Structure.Volumes {
		refs[v.Name] = v.Solid.Ref
	}
	assert.Equal(t, shared.Name, refs["World.East"])
	assert.Equal(t, shared.Name, refs["World.West"])
}

func TestMeshReleasedOnFailure(t *testing.T) {
	meshes := mesh.NewRegistry()
	hill := &spec.VolumeSpec{
		Name:     "Hill",
		Material: "G4_CONCRETE",
		Shape:    spec.Shape{Mesh: terrain("hill")},
	}
	root := box("World", "G4_AIR", 100, hill, box("Bad", "Nothing", 1))
	_, err := BuildVolume(root, append(testOptions(meshes), WithAlgorithm(mesh.AlgorithmVoxels))...)
	require.Error(t, err)
	assert.Equal(t, 0, meshes.Len())
}

func TestRoles(t *testing.T) {
	a := box("A", "G4_Si", 1)
	a.Roles = spec.Roles{Ingoing: spec.ActionCatch}
	g := mustBuild(t, box("Root", "G4_AIR", 10, a, box("B", "G4_Si", 1)))

	va := mustVolume(t, g, "Root.A")
	assert.True(t, va.Placed().Sensitive())
	assert.Equal(t, spec.ActionCatch, va.Roles().Ingoing)
	assert.False(t, mustVolume(t, g, "Root.B").Placed().Sensitive())

	va.SetRoles(spec.Roles{Deposits: spec.ActionRecord})
	assert.Equal(t, spec.Roles{Deposits: spec.ActionRecord}, va.Roles())

	va.ClearRoles()
	assert.False(t, va.Placed().Sensitive())
	assert.True(t, va.Roles().IsZero())
}

func TestDescribe(t *testing.T) {
	g := mustBuild(t, box("Root", "G4_AIR", 10, box("A", "G4_WATER", 1, box("Drop", "G4_AIR", 0.5))))

	info := mustVolume(t, g, "Root.A").Describe()
	assert.Equal(t, "Root.A", info.Path)
	assert.Equal(t, "G4_WATER", info.Material)
	assert.Equal(t, "G4Box", info.Solid)
	assert.Equal(t, "Root", info.Mother)
	assert.Equal(t, []Daughter{{Path: "Root.A.Drop", Solid: "G4Box"}}, info.Daughters)

	assert.Empty(t, mustVolume(t, g, "Root").Describe().Mother)
}

func TestBuildDocumentMaterials(t *testing.T) {
	doc, err := spec.Decode(strings.NewReader(`
Root:
  material: G4_AIR
  box: 10
  Tank:
    material: Brine
    cylinder: {radius: 2, length: 4}
materials:
  molecules:
    Salt: {density: 2.16, state: solid, composition: {Na: 1, Cl: 1}}
  elements:
    Cl: {Z: 17, A: 35.453, symbol: Cl}
  mixtures:
    Brine: {density: 1.2, state: liquid, composition: {G4_WATER: 0.9, Salt: 0.1}}
`))
	require.NoError(t, err)
	mats := material.NewRegistry()
	g, err := Build(doc, append(testOptions(nil), WithMaterials(mats))...)
	require.NoError(t, err)
	defer g.Drop()

	info := mustVolume(t, g, "Root.Tank").Describe()
	assert.Equal(t, "Brine", info.Material)
	assert.Equal(t, "G4Tubs", info.Solid)

	var buf bytes.Buffer
	require.NoError(t, g.WriteGDML(&buf))
	assert.Contains(t, buf.String(), `name="Brine"`)
	assert.Contains(t, buf.String(), `name="Cl"`)
}

func TestWriteGDML(t *testing.T) {
	a := box("A", "G4_Si", 4)
	a.Subtract = []string{"B"}
	b := at(box("B", "G4_Si", 2), 1, 0, 0)
	b.Rotation = &[3][3]float64{{0, 1, 0}, {-1, 0, 0}, {0, 0, 1}}
	env := &spec.VolumeSpec{
		Name:     "Env",
		Material: "G4_AIR",
		Shape:    spec.Shape{Envelope: &spec.Envelope{}},
		Volumes:  []*spec.VolumeSpec{at(box("Core", "G4_Pb", 1), 0, 0, 3)},
	}
	g := mustBuild(t, box("Root", "G4_AIR", 20, a, b, env))

	var buf bytes.Buffer
	require.NoError(t, g.WriteGDML(&buf))

	var doc struct {
		Materials struct {
			Elements  []struct{ Name string `xml:"name,attr"` } `xml:"element"`
			Materials []struct{ Name string `xml:"name,attr"` } `xml:"material"`
		} `xml:"materials"`
		Solids struct {
			Boxes []struct {
				Name string  `xml:"name,attr"`
				X    float64 `xml:"x,attr"`
			} `xml:"box"`
			Subtractions []struct {
				Name  string `xml:"name,attr"`
				First struct {
					Ref string `xml:"ref,attr"`
				} `xml:"first"`
			} `xml:"subtraction"`
			Unions []struct {
				Name string `xml:"name,attr"`
			} `xml:"multiUnion"`
		} `xml:"solids"`
		Structure struct {
			Volumes []struct {
				Name     string `xml:"name,attr"`
				PhysVols []struct {
					Name     string    `xml:"name,attr"`
					Rotation *struct{} `xml:"rotation"`
				} `xml:"physvol"`
			} `xml:"volume"`
		} `xml:"structure"`
		Setup struct {
			World struct {
				Ref string `xml:"ref,attr"`
			} `xml:"world"`
		} `xml:"setup"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "Root", doc.Setup.World.Ref)
	require.Len(t, doc.Structure.Volumes, 5)
	last := doc.Structure.Volumes[len(doc.Structure.Volumes)-1]
	assert.Equal(t, "Root", last.Name)
	require.Len(t, last.PhysVols, 3)
	assert.Nil(t, last.PhysVols[0].Rotation)
	assert.NotNil(t, last.PhysVols[1].Rotation)

	require.Len(t, doc.Solids.Subtractions, 1)
	sub := doc.Solids.Subtractions[0]
	assert.NotEqual(t, sub.Name, sub.First.Ref)
	assert.Len(t, doc.Solids.Unions, 1)

	names := make(map[string]bool)
	for _, b := range doc.Solids.Boxes {
		assert.False(t, names[b.Name], "duplicate solid %s", b.Name)
		names[b.Name] = true
	}
	assert.True(t, names["Root"])

	var mats []string
	for _, m := range doc.Materials.Materials {
		mats = append(mats, m.Name)
	}
	assert.ElementsMatch(t, []string{"G4_AIR", "G4_Si", "G4_Pb"}, mats)
	assert.NotEmpty(t, doc.Materials.Elements)
}
