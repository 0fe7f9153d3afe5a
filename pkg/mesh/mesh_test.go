package mesh

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
)

// cubeFacets returns the outward wound surface of the cube [-h, h]^3.
func cubeFacets(h float64) []Facet {
	axes := [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	var facets []Facet
	for k := 0; k < 3; k++ {
		n := axes[k]
		u, v := axes[(k+1)%3], axes[(k+2)%3]
		for _, sign := range []float64{1, -1} {
			nn, uu, vv := n.Mul(sign), u, v
			if sign < 0 {
				uu, vv = v, u
			}
			c := nn.Mul(h)
			corner := func(a, b float64) r3.Vector {
				return c.Add(uu.Mul(a * h)).Add(vv.Mul(b * h))
			}
			f0, _ := NewFacet(corner(-1, -1), corner(1, -1), corner(1, 1))
			f1, _ := NewFacet(corner(-1, -1), corner(1, 1), corner(-1, 1))
			facets = append(facets, f0, f1)
		}
	}
	return facets
}

func TestNewFacetDegenerate(t *testing.T) {
	_, ok := NewFacet(r3.Vector{}, r3.Vector{X: 1}, r3.Vector{X: 2})
	if ok {
		t.Error("expected collinear vertices to be rejected")
	}
}

func TestFacetIntersectSides(t *testing.T) {
	f, ok := NewFacet(r3.Vector{X: -1, Y: -1}, r3.Vector{X: 1, Y: -1}, r3.Vector{Y: 1})
	if !ok {
		t.Fatal("facet rejected")
	}
	down := r3.Vector{Z: -1}
	up := r3.Vector{Z: 1}
	above := r3.Vector{Z: 2}
	below := r3.Vector{Z: -3}

	if tt, ok := f.Intersect(above, down, Front); !ok || math.Abs(tt-2) > 1e-12 {
		t.Errorf("front hit from above = %v, %v", tt, ok)
	}
	if _, ok := f.Intersect(above, down, Back); ok {
		t.Error("back query should miss a front facing facet")
	}
	if tt, ok := f.Intersect(below, up, Back); !ok || math.Abs(tt-3) > 1e-12 {
		t.Errorf("back hit from below = %v, %v", tt, ok)
	}
	if _, ok := f.Intersect(above, up, Both); ok {
		t.Error("ray pointing away should miss")
	}
}

func TestSharedCube(t *testing.T) {
	const h = 5.0
	for _, alg := range []Algorithm{AlgorithmBVH, AlgorithmVoxels} {
		t.Run(alg.String(), func(t *testing.T) {
			s, err := NewShared("cube", cubeFacets(h), alg)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := s.Area(), 24*h*h; math.Abs(got-want) > 1e-9 {
				t.Errorf("Area = %v, want %v", got, want)
			}
			if got, want := s.Volume(), 8*h*h*h; math.Abs(got-want) > 1e-9 {
				t.Errorf("Volume = %v, want %v", got, want)
			}
			ext := s.Extent()
			if math.Abs(ext.Min.X+h) > 1e-12 || math.Abs(ext.Max.Z-h) > 1e-12 {
				t.Errorf("Extent = %+v", ext)
			}

			rng := rand.New(rand.NewPCG(1, 2))
			for i := 0; i < 10000; i++ {
				p, _ := s.SurfacePoint(rng)
				if !s.Accelerator().Near(p, geom.HalfTolerance) {
					t.Fatalf("sample %v is off the surface", p)
				}
			}
		})
	}
}

func TestNewSharedErrors(t *testing.T) {
	if _, err := NewShared("empty", nil, AlgorithmBVH); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty mesh: err = %v", err)
	}
	if _, err := NewShared("auto", cubeFacets(1), AlgorithmAuto); err == nil {
		t.Error("expected an error for an unresolved algorithm")
	}
}

func TestAcceleratorsAgree(t *testing.T) {
	facets := cubeFacets(3)
	bvh, err := NewBVH(facets)
	if err != nil {
		t.Fatal(err)
	}
	vox, err := NewVoxels(facets)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		p := r3.Vector{
			X: 10 * (rng.Float64() - 0.5),
			Y: 10 * (rng.Float64() - 0.5),
			Z: 10 * (rng.Float64() - 0.5),
		}
		d := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Normalize()

		for _, side := range []Side{Front, Back, Both} {
			tb, _, okb := bvh.Intersect(p, d, side)
			tv, _, okv := vox.Intersect(p, d, side)
			if okb != okv || (okb && math.Abs(tb-tv) > 1e-9) {
				t.Fatalf("Intersect(%v, %v, %v): bvh %v %v, voxels %v %v", p, d, side, tb, okb, tv, okv)
			}
		}
		if hb, hv := bvh.Hits(p, d, Both), vox.Hits(p, d, Both); hb != hv {
			t.Fatalf("Hits(%v, %v): bvh %d, voxels %d", p, d, hb, hv)
		}
		db, _ := bvh.Closest(p)
		dv, _ := vox.Closest(p)
		if math.Abs(db-dv) > 1e-9 {
			t.Fatalf("Closest(%v): bvh %v, voxels %v", p, db, dv)
		}
	}
}

func TestRayParity(t *testing.T) {
	facets := cubeFacets(10)
	bvh, err := NewBVH(facets)
	if err != nil {
		t.Fatal(err)
	}
	vox, err := NewVoxels(facets)
	if err != nil {
		t.Fatal(err)
	}
	up := r3.Vector{Z: 1}
	diagonal := r3.Vector{X: 1, Y: 1, Z: 1}.Normalize()
	tests := []struct {
		name string
		p, d r3.Vector
		odd  bool
	}{
		{"inside", r3.Vector{X: 3, Y: 1, Z: 2}, up, true},
		{"centre through face diagonal", r3.Vector{}, up, true},
		{"face diagonal", r3.Vector{X: 3, Y: 3, Z: 1}, up, true},
		{"opposite face diagonal", r3.Vector{X: -5, Y: -5, Z: 2}, up, true},
		{"through corner", r3.Vector{}, diagonal, true},
		{"outside below diagonals", r3.Vector{X: 3, Y: 3, Z: -20}, up, false},
		{"outside through corners", r3.Vector{X: 20, Y: 20, Z: 20}, diagonal.Mul(-1), false},
		{"grazing an edge", r3.Vector{X: -20}, r3.Vector{X: 1, Z: -1}.Normalize(), false},
		{"outside aside", r3.Vector{X: 33, Y: 1}, up, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, accel := range map[string]Accelerator{"bvh": bvh, "voxels": vox} {
				if got := accel.Hits(tt.p, tt.d, Both)%2 == 1; got != tt.odd {
					t.Errorf("%s: odd hits = %v, want %v", name, got, tt.odd)
				}
			}
		})
	}
}

func TestCountCrossings(t *testing.T) {
	tests := []struct {
		name string
		cs   []crossing
		want int
	}{
		{"none", nil, 0},
		{"distinct", []crossing{{t: 2}, {t: 1, exit: true}}, 2},
		{"shared edge", []crossing{{t: 1, exit: true}, {t: 1 + 1e-12, exit: true}}, 1},
		{"shared vertex", []crossing{{t: 3}, {t: 3}, {t: 3}, {t: 5, exit: true}}, 2},
		{"silhouette", []crossing{{t: 4}, {t: 4, exit: true}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countCrossings(tt.cs); got != tt.want {
				t.Errorf("countCrossings() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLargeBVH(t *testing.T) {
	// Enough facets to exercise the concurrent build.
	m := Map{Nx: 101, Ny: 101, X0: 0, X1: 100, Y0: 0, Y1: 100, Z: make([]float32, 101*101)}
	for i := range m.Z {
		m.Z[i] = float32(math.Sin(float64(i)))
	}
	vertices, err := m.Tessellate(MapOptions{Regular: true})
	if err != nil {
		t.Fatal(err)
	}
	facets, err := FacetsFromVertices(vertices, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(facets) <= parallelBuildFacets {
		t.Fatalf("only %d facets", len(facets))
	}
	bvh, err := NewBVH(facets)
	if err != nil {
		t.Fatal(err)
	}
	nodes, depth := bvh.Stats()
	if nodes < len(facets)/maxFacetsPerLeaf || depth < 10 {
		t.Errorf("Stats = %d nodes, depth %d", nodes, depth)
	}
	if n := bvh.Hits(r3.Vector{X: 50.3, Y: 50.7, Z: -50}, r3.Vector{Z: 1}, Both); n%2 != 1 {
		t.Errorf("point below the terrain crosses %d facets", n)
	}
}

func TestFacetsFromVertices(t *testing.T) {
	if _, err := FacetsFromVertices(make([]float32, 10), 1); !errors.Is(err, ErrBadVertices) {
		t.Errorf("err = %v, want ErrBadVertices", err)
	}
	vertices := []float32{
		0, 0, 0, 1, 0, 0, 0, 1, 0,
		0, 0, 0, 1, 0, 0, 2, 0, 0, // degenerate
	}
	facets, err := FacetsFromVertices(vertices, geom.CM)
	if err != nil {
		t.Fatal(err)
	}
	if len(facets) != 1 {
		t.Fatalf("got %d facets, want 1", len(facets))
	}
	if math.Abs(facets[0].Area-50) > 1e-9 {
		t.Errorf("Area = %v mm2, want 50", facets[0].Area)
	}
}

func TestSaveLoadSTL(t *testing.T) {
	facets := cubeFacets(2)
	path := filepath.Join(t.TempDir(), "cube.stl")
	if err := SaveSTL(path, facets, geom.CM); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := info.Size(), int64(84+50*len(facets)); got != want {
		t.Fatalf("binary size = %d, want %d", got, want)
	}
	vertices, err := LoadSTL(path)
	if err != nil {
		t.Fatal(err)
	}
	back, err := FacetsFromVertices(vertices, geom.CM)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(facets) {
		t.Fatalf("read %d facets, want %d", len(back), len(facets))
	}
	for i := range back {
		if back[i].Normal.Sub(facets[i].Normal).Norm() > 1e-6 {
			t.Fatalf("facet %d normal %v, want %v", i, back[i].Normal, facets[i].Normal)
		}
	}
}

func TestLoadASCIISTL(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	src := `solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
endsolid tri
`
	vertices, err := LoadSTL(write("tri.stl", src))
	if err != nil {
		t.Fatal(err)
	}
	if len(vertices) != 9 || vertices[3] != 1 || vertices[7] != 1 {
		t.Errorf("vertices = %v", vertices)
	}

	tests := []struct {
		name, src string
	}{
		{"garbage", "garbage"},
		{"no facets", "solid empty\nendsolid empty\n" + strings.Repeat(" ", 100)},
		{"truncated", "solid bad\n vertex 0 0 0\n vertex 1 0 0\n" + strings.Repeat(" ", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSTL(write(tt.name+".stl", tt.src)); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if _, err := LoadSTL(filepath.Join(dir, "missing.stl")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestMapTessellate(t *testing.T) {
	flat := func(x0, x1 float64) Map {
		return Map{Nx: 3, Ny: 4, X0: x0, X1: x1, Y0: 0, Y1: 3, Z: make([]float32, 12)}
	}
	tests := []struct {
		name    string
		m       Map
		opts    MapOptions
		facets  int
		closedV float64
	}{
		{"single bottom", flat(0, 2), MapOptions{ExtraDepth: 1}, 2 * (6 + 2*2 + 2*3 + 1), 6},
		{"regular bottom", flat(0, 2), MapOptions{Regular: true, ExtraDepth: 1}, 2 * (6 + 2*2 + 2*3 + 6), 6},
		{"reversed x", flat(2, 0), MapOptions{ExtraDepth: 1}, 2 * (6 + 2*2 + 2*3 + 1), 6},
		{"default depth", flat(0, 2), MapOptions{}, 2 * (6 + 2*2 + 2*3 + 1), 6 * DefaultExtraDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vertices, err := tt.m.Tessellate(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			facets, err := FacetsFromVertices(vertices, 1)
			if err != nil {
				t.Fatal(err)
			}
			if len(facets) != tt.facets {
				t.Errorf("got %d facets, want %d", len(facets), tt.facets)
			}
			s, err := NewShared(tt.name, facets, AlgorithmBVH)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(s.Volume()-tt.closedV) > 1e-6 {
				t.Errorf("Volume = %v, want %v", s.Volume(), tt.closedV)
			}
		})
	}

	bad := Map{Nx: 1, Ny: 4, Z: make([]float32, 4)}
	if _, err := bad.Tessellate(MapOptions{}); err == nil {
		t.Error("expected an error for a single column map")
	}
	short := flat(0, 2)
	short.Z = short.Z[:5]
	if _, err := short.Tessellate(MapOptions{}); err == nil {
		t.Error("expected an error for a short elevation buffer")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmAuto, false},
		{"BVH", AlgorithmBVH, false},
		{"voxels", AlgorithmVoxels, false},
		{"geant4", AlgorithmVoxels, false},
		{"octree", AlgorithmAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		global, local Algorithm
		src           Source
		want          Algorithm
	}{
		{"map heuristic", AlgorithmAuto, AlgorithmAuto, SourceMap, AlgorithmBVH},
		{"model heuristic", AlgorithmAuto, AlgorithmAuto, SourceModel, AlgorithmVoxels},
		{"global override", AlgorithmVoxels, AlgorithmAuto, SourceMap, AlgorithmVoxels},
		{"local wins", AlgorithmVoxels, AlgorithmBVH, SourceModel, AlgorithmBVH},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.global, tt.local, tt.src); got != tt.want {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryShares(t *testing.T) {
	r := NewRegistry()
	loads := 0
	load := func() ([]Facet, error) {
		loads++
		return cubeFacets(1), nil
	}
	key := Key{Name: "Cube", Unit: geom.CM, Algorithm: AlgorithmBVH}
	a, err := r.Acquire(key, load)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Acquire(key, load)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the same shared mesh")
	}
	if loads != 1 || a.Refs() != 2 || r.Len() != 1 {
		t.Errorf("loads = %d, refs = %d, len = %d", loads, a.Refs(), r.Len())
	}

	other := key
	other.Algorithm = AlgorithmVoxels
	c, err := r.Acquire(other, load)
	if err != nil {
		t.Fatal(err)
	}
	if c == a || r.Len() != 2 {
		t.Error("a different algorithm must build a distinct mesh")
	}

	r.Release(a)
	if r.Len() != 2 {
		t.Error("mesh evicted while still referenced")
	}
	r.Release(b)
	r.Release(c)
	if r.Len() != 0 {
		t.Errorf("Len = %d after releasing everything", r.Len())
	}

	if _, err := r.Acquire(key, func() ([]Facet, error) { return nil, errors.New("boom") }); err == nil {
		t.Error("expected the load error")
	}
	if r.Len() != 0 {
		t.Error("failed load must not register an entry")
	}
}
