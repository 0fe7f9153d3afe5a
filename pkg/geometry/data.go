package geometry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/chazu/calzone/pkg/solid"
	"github.com/chazu/calzone/pkg/spec"
	"github.com/google/uuid"
)

// PlacedVolume is a solid with its material, placed in its mother frame.
// Everything but the sensitivity record is immutable once built.
type PlacedVolume struct {
	path      string
	name      string
	solid     solid.Solid
	material  *material.Material
	transform geom.Transform
	daughters []*PlacedVolume

	// sensitive is nil unless some role is set.
	sensitive atomic.Pointer[spec.Roles]
}

func (pv *PlacedVolume) Path() string                 { return pv.path }
func (pv *PlacedVolume) Name() string                 { return pv.name }
func (pv *PlacedVolume) Solid() solid.Solid           { return pv.solid }
func (pv *PlacedVolume) Material() *material.Material { return pv.material }

// Transform returns the placement of the volume in its mother frame.
func (pv *PlacedVolume) Transform() geom.Transform { return pv.transform }

// Daughters returns the volumes placed inside pv, in declaration order.
func (pv *PlacedVolume) Daughters() []*PlacedVolume { return pv.daughters }

// Roles returns the sensitivity roles of the volume.
func (pv *PlacedVolume) Roles() spec.Roles {
	if r := pv.sensitive.Load(); r != nil {
		return *r
	}
	return spec.Roles{}
}

// Sensitive reports whether any role is set.
func (pv *PlacedVolume) Sensitive() bool { return pv.sensitive.Load() != nil }

func (pv *PlacedVolume) setRoles(r spec.Roles) {
	if r.IsZero() {
		pv.sensitive.Store(nil)
		return
	}
	pv.sensitive.Store(&r)
}

// Handle is the opaque identifier of a live geometry in the process wide
// table.
type Handle uint64

var handles = struct {
	sync.Mutex
	next  Handle
	table map[Handle]*Geometry
}{table: make(map[Handle]*Geometry)}

func register(g *Geometry) Handle {
	handles.Lock()
	defer handles.Unlock()
	handles.next++
	handles.table[handles.next] = g
	return handles.next
}

func unregister(h Handle) {
	handles.Lock()
	defer handles.Unlock()
	delete(handles.table, h)
}

// Lookup returns the live geometry issued under h.
func Lookup(h Handle) (*Geometry, bool) {
	handles.Lock()
	defer handles.Unlock()
	g, ok := handles.table[h]
	return g, ok
}

// Release drops one reference to the geometry issued under h.
func Release(h Handle) error {
	g, ok := Lookup(h)
	if !ok {
		return fmt.Errorf("geometry: unknown handle %d", h)
	}
	g.Drop()
	return nil
}

// Geometry is a built, reference counted volume tree. It is created with
// one reference; Clone adds one and Drop removes one. The tree and its
// shared meshes are released when the last reference is dropped.
//
// Queries are safe for concurrent use, including with role updates.
type Geometry struct {
	uid    uuid.UUID
	handle Handle
	refs   atomic.Int64
	logger *slog.Logger
	seed   uint64

	materials *material.Registry

	mu       sync.RWMutex
	world    *PlacedVolume
	orphans  []solid.Solid
	meshes   []*mesh.Shared
	registry *mesh.Registry
	elements map[string]*PlacedVolume
	mothers  map[*PlacedVolume]*PlacedVolume
}

// UID returns the unique identifier of the geometry.
func (g *Geometry) UID() uuid.UUID { return g.uid }

// Handle returns the key of g in the process wide handle table.
func (g *Geometry) Handle() Handle { return g.handle }

// Refs returns the current reference count.
func (g *Geometry) Refs() int64 { return g.refs.Load() }

// Clone adds a reference to g and returns it.
func (g *Geometry) Clone() *Geometry {
	g.refs.Add(1)
	return g
}

// Drop removes a reference, releasing the tree when none is left.
func (g *Geometry) Drop() {
	n := g.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		g.logger.Warn("geometry dropped too many times", "uid", g.uid)
		return
	}
	g.mu.Lock()
	if g.world == nil {
		g.mu.Unlock()
		return
	}
	for _, m := range g.meshes {
		g.registry.Release(m)
	}
	g.world = nil
	g.orphans = nil
	g.meshes = nil
	g.elements = nil
	g.mothers = nil
	g.mu.Unlock()

	unregister(g.handle)
	liveGeometries.Dec()
	g.logger.Debug("geometry released", "uid", g.uid, "handle", g.handle)
}

// Released reports whether the last reference was dropped.
func (g *Geometry) Released() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.world == nil
}

// World returns the root placed volume.
func (g *Geometry) World() (*PlacedVolume, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.world == nil {
		return nil, ErrReleased
	}
	return g.world, nil
}

// Placed returns the placed volume at pathname path.
func (g *Geometry) Placed(path string) (*PlacedVolume, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.placed(path)
}

func (g *Geometry) placed(path string) (*PlacedVolume, error) {
	if g.world == nil {
		return nil, ErrReleased
	}
	pv, ok := g.elements[path]
	if !ok {
		return nil, unknownVolume(path)
	}
	return pv, nil
}

// Mother returns the volume containing pv, or nil at the root.
func (g *Geometry) Mother(pv *PlacedVolume) *PlacedVolume {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mothers[pv]
}

// Paths returns every pathname of the tree, sorted.
func (g *Geometry) Paths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	paths := make([]string, 0, len(g.elements))
	for p := range g.elements {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Find returns the pathname of the single volume whose pathname is stem
// or ends with "."+stem.
func (g *Geometry) Find(stem string) (string, error) {
	var matches []string
	for _, p := range g.Paths() {
		if p == stem || strings.HasSuffix(p, "."+stem) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return "", unknownVolume(stem)
	case 1:
		return matches[0], nil
	default:
		return "", &ValueError{
			Path:   stem,
			Reason: fmt.Sprintf("ambiguous volume '%s' (%s)", stem, strings.Join(matches, ", ")),
		}
	}
}

// Walk calls fn on every placed volume, mothers before daughters.
func (g *Geometry) Walk(fn func(pv *PlacedVolume) error) error {
	world, err := g.World()
	if err != nil {
		return err
	}
	var walk func(pv *PlacedVolume) error
	walk = func(pv *PlacedVolume) error {
		if err := fn(pv); err != nil {
			return err
		}
		for _, d := range pv.daughters {
			if err := walk(d); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(world)
}

// Orphans returns the number of intermediate solids kept alive by the
// tree.
func (g *Geometry) Orphans() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.orphans)
}

// transformTo returns the transform from the frame of pv to the frame of
// the ancestor at pathname frame. An empty frame selects the world.
func (g *Geometry) transformTo(pv *PlacedVolume, frame string) (geom.Transform, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.world == nil {
		return geom.Identity(), ErrReleased
	}
	target := g.world
	if frame != "" {
		var ok bool
		if target, ok = g.elements[frame]; !ok {
			return geom.Identity(), unknownVolume(frame)
		}
	}
	if target == pv {
		return geom.Identity(), nil
	}
	t := pv.transform
	for cur := g.mothers[pv]; cur != nil; cur = g.mothers[cur] {
		if cur == target {
			return t, nil
		}
		t = cur.transform.Compose(t)
	}
	return geom.Identity(), &ValueError{
		Path:   pv.path,
		Reason: fmt.Sprintf("'%s' does not contain '%s'", target.path, pv.path),
	}
}
