// Package unionfind implements a weighted disjoint-set structure over
// dense integer ids, used to group same-valued pixels into connected
// components before edge-cluster extraction.
package unionfind

import "github.com/quadtag/apriltag/internal/pool"

// unset marks a slot that has never been touched by find or union; it
// becomes its own representative the first time it is looked up.
const unset = 0xFFFFFFFF

// UnionFind is a weighted union-find with path halving.
type UnionFind struct {
	parent []uint32
	size   []uint32
}

// New creates a union-find over n elements, all initially unset. The
// backing arrays are drawn from the scratch-buffer pool since detect
// allocates a fresh one per image of the same dimensions on a video stream
// or batch run; call Release when the union-find is no longer needed.
func New(n int) *UnionFind {
	parent := pool.GetUint32(n)
	for i := range parent {
		parent[i] = unset
	}
	size := pool.GetUint32(n)
	return &UnionFind{parent: parent, size: size}
}

// Release returns the union-find's backing arrays to the scratch pool. The
// UnionFind must not be used again after Release.
func (uf *UnionFind) Release() {
	pool.PutUint32(uf.parent)
	pool.PutUint32(uf.size)
	uf.parent = nil
	uf.size = nil
}

// Find returns the representative of the set containing id, lazily
// initializing id as its own representative on first use, and halving the
// path to the root along the way.
func (uf *UnionFind) Find(id uint32) uint32 {
	if uf.parent[id] == unset {
		uf.parent[id] = id
		return id
	}
	for uf.parent[id] != id {
		grandparent := uf.parent[uf.parent[id]]
		uf.parent[id] = grandparent
		id = grandparent
	}
	return id
}

// Union merges the sets containing a and b, attaching the smaller tree
// under the larger one's root, and returns the new representative.
func (uf *UnionFind) Union(a, b uint32) uint32 {
	ra, rb := uf.Find(a), uf.Find(b)
	if ra == rb {
		return ra
	}
	sa, sb := uf.size[ra]+1, uf.size[rb]+1
	if sa > sb {
		uf.parent[rb] = ra
		uf.size[ra] += sb
		return ra
	}
	uf.parent[ra] = rb
	uf.size[rb] += sa
	return rb
}

// SetSize returns the size of the set containing id, including id itself.
func (uf *UnionFind) SetSize(id uint32) uint32 {
	r := uf.Find(id)
	return uf.size[r] + 1
}
