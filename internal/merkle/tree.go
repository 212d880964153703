// Package merkle implements the binary SHA3-256 Merkle tree over canonical
// payment hashes used by the checkpoint and proof generators. Leaves are
// sorted by payment_id before construction; odd levels duplicate their last
// node; the root of an empty tree is the documented canon.EmptyHash
// constant.
package merkle

import (
	"crypto/subtle"
	"errors"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/deltran/settlement-core/internal/canon"
)

// ErrLeafNotFound is returned when a proof is requested for a hash that is
// not present in the tree.
var ErrLeafNotFound = errors.New("merkle: leaf not found")

// Leaf pairs a payment_id with its canonical hash, the unit the tree sorts
// and hashes over.
type Leaf struct {
	PaymentID string
	Hash      [32]byte
}

// Side indicates which side of a node a proof sibling sits on.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

// ProofNode is one step of an inclusion path: the sibling hash and which
// side it occupies relative to the node being combined with it.
type ProofNode struct {
	Sibling [32]byte
	Side    Side
}

// Tree is a built, immutable binary Merkle tree.
type Tree struct {
	leaves [][32]byte // sorted leaf hashes, in tree-leaf-index order
	levels [][][32]byte
	root   [32]byte
}

func hashPair(left, right [32]byte) [32]byte {
	h := sha3.New256()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Build constructs a tree from the given leaves. Leaves are sorted by
// PaymentID (lexicographic) before hashing, per §4.2, for determinism
// across implementations. An empty leaf set yields a tree whose Root is
// canon.EmptyHash.
func Build(leaves []Leaf) *Tree {
	if len(leaves) == 0 {
		return &Tree{root: canon.EmptyHash}
	}

	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PaymentID < sorted[j].PaymentID })

	level := make([][32]byte, len(sorted))
	for i, l := range sorted {
		level[i] = l.Hash
	}

	t := &Tree{leaves: level}
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1]) // odd levels duplicate the last node
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		t.levels = append(t.levels, next)
		level = next
	}
	t.root = level[0]
	return t
}

// Root returns the tree's Merkle root.
func (t *Tree) Root() [32]byte {
	return t.root
}

// LeafCount returns the number of leaves the tree was built from.
func (t *Tree) LeafCount() int {
	return len(t.leaves)
}

func (t *Tree) indexOf(hash [32]byte) (int, bool) {
	for i, l := range t.leaves {
		if l == hash {
			return i, true
		}
	}
	return 0, false
}

// Prove returns the inclusion path for the leaf with the given hash.
func (t *Tree) Prove(leafHash [32]byte) ([]ProofNode, error) {
	idx, ok := t.indexOf(leafHash)
	if !ok {
		return nil, ErrLeafNotFound
	}
	return t.ProveIndex(idx), nil
}

// ProveIndex returns the inclusion path for the leaf at the given index.
func (t *Tree) ProveIndex(index int) []ProofNode {
	var path []ProofNode
	idx := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		// odd-length levels were padded with a duplicate at build time;
		// reconstruct that padding here for sibling lookup.
		if len(nodes)%2 == 1 {
			nodes = append(append([][32]byte{}, nodes...), nodes[len(nodes)-1])
		}
		if idx%2 == 0 {
			path = append(path, ProofNode{Sibling: nodes[idx+1], Side: SideRight})
		} else {
			path = append(path, ProofNode{Sibling: nodes[idx-1], Side: SideLeft})
		}
		idx /= 2
	}
	return path
}

// Verify recomputes the root from leaf and path and compares it to want
// using a constant-time comparison, resistant to timing side channels.
func Verify(leaf [32]byte, path []ProofNode, want [32]byte) bool {
	cur := leaf
	for _, node := range path {
		if node.Side == SideRight {
			cur = hashPair(cur, node.Sibling)
		} else {
			cur = hashPair(node.Sibling, cur)
		}
	}
	return subtle.ConstantTimeCompare(cur[:], want[:]) == 1
}
