// Package neighbor implements a hybrid flat-array/BK-tree index over
// 64-bit code words under the Hamming metric, used by the code generator's
// cross-code distance filter: the asymptotically dominant test in a lexicode
// search over millions of candidates.
//
// Below a population of flatThreshold entries, a branch-free linear scan
// outperforms any tree structure — there just isn't enough population yet
// to amortize a tree's overhead. Past that threshold, entries live in a
// BK-tree, where the triangle inequality lets a range query skip entire
// subtrees without visiting them.
package neighbor

import "math/bits"

// flatThreshold is the population above which entries migrate from the
// flat array into a BK-tree.
const flatThreshold = 512

// Index is a hybrid Hamming-distance neighbor index over uint64 codes.
type Index struct {
	flat []uint64
	tree *bkNode
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// Len returns the number of codes currently stored.
func (ix *Index) Len() int {
	if ix.tree != nil {
		return ix.tree.size()
	}
	return len(ix.flat)
}

// Insert adds code to the index, migrating from flat storage to a BK-tree
// once the population exceeds flatThreshold.
func (ix *Index) Insert(code uint64) {
	if ix.tree != nil {
		ix.tree.insert(code)
		return
	}
	ix.flat = append(ix.flat, code)
	if len(ix.flat) > flatThreshold {
		ix.tree = buildBKTree(ix.flat)
		ix.flat = nil
	}
}

// AnyCloserThan reports whether any stored code has Hamming distance
// strictly less than threshold from query.
func (ix *Index) AnyCloserThan(query uint64, threshold int) bool {
	if ix.tree != nil {
		return ix.tree.anyCloserThan(query, threshold)
	}
	for _, c := range ix.flat {
		if hamming(query, c) < threshold {
			return true
		}
	}
	return false
}

func hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// bkNode is one node of a BK-tree: a stored code plus children indexed by
// their exact Hamming distance from this node.
type bkNode struct {
	code     uint64
	children map[int]*bkNode
}

func buildBKTree(codes []uint64) *bkNode {
	var root *bkNode
	for _, c := range codes {
		if root == nil {
			root = &bkNode{code: c}
			continue
		}
		root.insert(c)
	}
	return root
}

func (n *bkNode) insert(code uint64) {
	cur := n
	for {
		d := hamming(cur.code, code)
		if d == 0 {
			return // duplicate code, nothing to add
		}
		if cur.children == nil {
			cur.children = make(map[int]*bkNode)
		}
		child, ok := cur.children[d]
		if !ok {
			cur.children[d] = &bkNode{code: code}
			return
		}
		cur = child
	}
}

func (n *bkNode) size() int {
	total := 1
	for _, c := range n.children {
		total += c.size()
	}
	return total
}

// anyCloserThan performs a triangle-inequality-pruned range query: a node's
// descendant reachable via an edge of exact distance cd can only lie within
// threshold of query if |d - cd| < threshold, where d is this node's own
// distance to query.
func (n *bkNode) anyCloserThan(query uint64, threshold int) bool {
	d := hamming(n.code, query)
	if d < threshold {
		return true
	}
	for cd, child := range n.children {
		diff := d - cd
		if diff < 0 {
			diff = -diff
		}
		if diff < threshold {
			if child.anyCloserThan(query, threshold) {
				return true
			}
		}
	}
	return false
}
