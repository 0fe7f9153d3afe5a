package mesh

import (
	"errors"
	"math"
	"slices"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
)

const (
	// maxFacetsPerLeaf is the threshold for splitting BVH nodes.
	maxFacetsPerLeaf = 4
	// parallelBuildFacets is the subtree size above which both children are
	// built concurrently.
	parallelBuildFacets = 1 << 14
	// parallelBuildDepth bounds the number of concurrent builders to
	// 2^parallelBuildDepth.
	parallelBuildDepth = 4
)

// ErrNonFinite is returned for meshes with NaN or infinite coordinates.
var ErrNonFinite = errors.New("mesh: non finite vertex coordinates")

// bvhNode is either internal (two children) or a leaf (a facet list).
type bvhNode struct {
	box         geom.Extent
	left, right *bvhNode
	facets      []int32
}

func (n *bvhNode) isLeaf() bool { return n.left == nil }

// BVH is a bounding volume hierarchy over a facet set, split at the
// centroid median of the widest axis.
type BVH struct {
	facets []Facet
	root   *bvhNode
	nodes  int
	depth  int
}

// NewBVH builds the hierarchy over facets. The slice is retained and must
// not be modified afterwards.
func NewBVH(facets []Facet) (*BVH, error) {
	b := &BVH{facets: facets}
	if len(facets) == 0 {
		return b, nil
	}
	idx := make([]int32, len(facets))
	for i := range idx {
		idx[i] = int32(i)
	}
	centroids := make([]r3.Vector, len(facets))
	for i := range facets {
		centroids[i] = facets[i].Centroid()
	}
	root, err := b.build(idx, centroids, 0)
	if err != nil {
		return nil, err
	}
	b.root = root
	b.nodes, b.depth = countNodes(root)
	return b, nil
}

func countNodes(n *bvhNode) (count, depth int) {
	if n == nil {
		return 0, 0
	}
	if n.isLeaf() {
		return 1, 1
	}
	lc, ld := countNodes(n.left)
	rc, rd := countNodes(n.right)
	return 1 + lc + rc, 1 + max(ld, rd)
}

func (b *BVH) build(idx []int32, centroids []r3.Vector, depth int) (*bvhNode, error) {
	box := geom.EmptyExtent()
	cbox := geom.EmptyExtent()
	for _, i := range idx {
		box = box.Union(b.facets[i].Extent())
		cbox = cbox.Expand(centroids[i])
	}
	size := box.Size()
	if math.IsNaN(size.X+size.Y+size.Z) || math.IsInf(size.X+size.Y+size.Z, 0) {
		return nil, ErrNonFinite
	}
	node := &bvhNode{box: padded(box)}
	if len(idx) <= maxFacetsPerLeaf {
		node.facets = idx
		return node, nil
	}

	csize := cbox.Size()
	axis := 0
	if csize.Y > csize.X && csize.Y >= csize.Z {
		axis = 1
	} else if csize.Z > csize.X && csize.Z > csize.Y {
		axis = 2
	}
	if geom.Axis(csize, axis) == 0 {
		// Coincident centroids cannot be split.
		node.facets = idx
		return node, nil
	}

	slices.SortFunc(idx, func(i, j int32) int {
		ci, cj := geom.Axis(centroids[i], axis), geom.Axis(centroids[j], axis)
		switch {
		case ci < cj:
			return -1
		case ci > cj:
			return 1
		default:
			return 0
		}
	})
	mid := len(idx) / 2
	left, right := idx[:mid], idx[mid:]

	if depth < parallelBuildDepth && len(idx) > parallelBuildFacets {
		var g errgroup.Group
		g.Go(func() error {
			var err error
			node.left, err = b.build(left, centroids, depth+1)
			return err
		})
		g.Go(func() error {
			var err error
			node.right, err = b.build(right, centroids, depth+1)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return node, nil
	}

	var err error
	if node.left, err = b.build(left, centroids, depth+1); err != nil {
		return nil, err
	}
	if node.right, err = b.build(right, centroids, depth+1); err != nil {
		return nil, err
	}
	return node, nil
}

// Stats returns the node count and the tree depth.
func (b *BVH) Stats() (nodes, depth int) { return b.nodes, b.depth }

func (b *BVH) Intersect(p, d r3.Vector, side Side) (float64, int, bool) {
	if b.root == nil {
		return 0, -1, false
	}
	inv := reciprocal(d)
	best, bestIndex := math.Inf(1), -1
	stack := make([]*bvhNode, 0, 64)
	stack = append(stack, b.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, _, ok := rayBox(n.box, p, inv, best); !ok {
			continue
		}
		if n.isLeaf() {
			for _, i := range n.facets {
				if t, ok := b.facets[i].Intersect(p, d, side); ok && t < best {
					best, bestIndex = t, int(i)
				}
			}
			continue
		}
		// Push the farther child first so the nearer one is popped next.
		tl, _, okl := rayBox(n.left.box, p, inv, best)
		tr, _, okr := rayBox(n.right.box, p, inv, best)
		switch {
		case okl && okr:
			if tl <= tr {
				stack = append(stack, n.right, n.left)
			} else {
				stack = append(stack, n.left, n.right)
			}
		case okl:
			stack = append(stack, n.left)
		case okr:
			stack = append(stack, n.right)
		}
	}
	if bestIndex < 0 {
		return 0, -1, false
	}
	return best, bestIndex, true
}

func (b *BVH) Hits(p, d r3.Vector, side Side) int {
	if b.root == nil {
		return 0
	}
	inv := reciprocal(d)
	var crossed []crossing
	stack := make([]*bvhNode, 0, 64)
	stack = append(stack, b.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, _, ok := rayBox(n.box, p, inv, math.Inf(1)); !ok {
			continue
		}
		if n.isLeaf() {
			for _, i := range n.facets {
				f := &b.facets[i]
				if t, ok := f.Intersect(p, d, side); ok {
					crossed = append(crossed, newCrossing(f, d, t))
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	return countCrossings(crossed)
}

func (b *BVH) Closest(p r3.Vector) (float64, int) {
	if b.root == nil {
		return math.Inf(1), -1
	}
	best, bestIndex := math.Inf(1), -1
	stack := make([]*bvhNode, 0, 64)
	stack = append(stack, b.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.box.Distance(p) >= best {
			continue
		}
		if n.isLeaf() {
			for _, i := range n.facets {
				if dist := b.facets[i].Distance(p); dist < best {
					best, bestIndex = dist, int(i)
				}
			}
			continue
		}
		if n.left.box.Distance(p) <= n.right.box.Distance(p) {
			stack = append(stack, n.right, n.left)
		} else {
			stack = append(stack, n.left, n.right)
		}
	}
	return best, bestIndex
}

func (b *BVH) Near(p r3.Vector, delta float64) bool {
	if b.root == nil {
		return false
	}
	stack := make([]*bvhNode, 0, 64)
	stack = append(stack, b.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !n.box.Contains(p, delta) {
			continue
		}
		if n.isLeaf() {
			for _, i := range n.facets {
				if b.facets[i].Distance(p) <= delta {
					return true
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	return false
}
