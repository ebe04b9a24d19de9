package ethereum

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
)

// merkleTree is a canonical Merkle tree over a leaf set. Leaves are
// deduplicated and sorted lexicographically before the tree is built,
// so the root is a pure function of the leaf set.
type merkleTree struct {
	root []byte
}

func newMerkleTree(leaves [][]byte) *merkleTree {
	layer := normalizeLeaves(leaves)
	if len(layer) == 0 {
		return &merkleTree{root: crypto.Keccak256()}
	}

	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				// Odd leaf is promoted to the next layer unchanged.
				next = append(next, layer[i])
				continue
			}
			next = append(next, crypto.Keccak256(layer[i], layer[i+1]))
		}
		layer = next
	}
	return &merkleTree{root: layer[0]}
}

// Root implements the chain.Tree interface for merkleTree.
func (t *merkleTree) Root() []byte {
	return t.root
}

// normalizeLeaves sorts the leaves lexicographically and drops
// duplicates, without mutating the caller's slice.
func normalizeLeaves(leaves [][]byte) [][]byte {
	sorted := make([][]byte, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	unique := sorted[:0]
	for i, leaf := range sorted {
		if i > 0 && bytes.Equal(leaf, sorted[i-1]) {
			continue
		}
		unique = append(unique, leaf)
	}
	return unique
}
