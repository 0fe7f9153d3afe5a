// Package tessellate walks a built geometry and produces one world frame
// triangle mesh per placed volume using a meshing kernel. The geometry is
// only read; volumes are meshed concurrently.
package tessellate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/geometry"
	"github.com/chazu/calzone/pkg/kernel"
	"github.com/chazu/calzone/pkg/mesh"
	"golang.org/x/sync/errgroup"
)

// Options selects the volumes to mesh.
type Options struct {
	// Paths restricts the output to the named volumes. Empty means all.
	Paths []string
	// SkipWorld leaves out the root volume, usually a large box of air.
	SkipWorld bool
	// Workers bounds the number of concurrent kernel calls. Zero means
	// GOMAXPROCS.
	Workers int
}

// transformStack accumulates placements from the world down to the
// volume being visited.
type transformStack struct {
	frames []geom.Transform
}

func newTransformStack() *transformStack {
	return &transformStack{frames: []geom.Transform{geom.Identity()}}
}

func (ts *transformStack) push(t geom.Transform) {
	ts.frames = append(ts.frames, ts.top().Compose(t))
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 1 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

func (ts *transformStack) top() geom.Transform {
	return ts.frames[len(ts.frames)-1]
}

type job struct {
	pv *geometry.PlacedVolume
	t  geom.Transform
}

// Tessellate returns the meshes of the selected volumes of g, mothers
// before daughters. Each mesh carries the pathname and material of its
// volume.
func Tessellate(ctx context.Context, g *geometry.Geometry, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}
	world, err := g.World()
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	g = g.Clone()
	defer g.Drop()

	var selected map[string]bool
	if len(opts.Paths) > 0 {
		selected = make(map[string]bool, len(opts.Paths))
		for _, p := range opts.Paths {
			if _, err := g.Placed(p); err != nil {
				return nil, fmt.Errorf("tessellate: %w", err)
			}
			selected[p] = true
		}
	}

	var jobs []job
	ts := newTransformStack()
	var walk func(pv *geometry.PlacedVolume)
	walk = func(pv *geometry.PlacedVolume) {
		ts.push(pv.Transform())
		defer ts.pop()
		keep := selected == nil || selected[pv.Path()]
		if pv == world && opts.SkipWorld {
			keep = false
		}
		if keep {
			jobs = append(jobs, job{pv: pv, t: ts.top()})
		}
		for _, d := range pv.Daughters() {
			walk(d)
		}
	}
	walk(world)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	meshes := make([]*kernel.Mesh, len(jobs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, j := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := k.ToMesh(j.pv.Solid(), j.t)
			if err != nil {
				return fmt.Errorf("tessellate: %s: %w", j.pv.Path(), err)
			}
			m.Path = j.pv.Path()
			m.Material = j.pv.Material().Name
			meshes[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// WriteSTL writes every mesh to dir as <path>.stl, in centimetres, and
// returns the file names.
func WriteSTL(dir string, meshes []*kernel.Mesh) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	files := make([]string, 0, len(meshes))
	for _, m := range meshes {
		name := filepath.Join(dir, m.Path+".stl")
		if err := mesh.SaveSTL(name, m.Facets(), geom.CM); err != nil {
			return files, fmt.Errorf("tessellate: %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}
