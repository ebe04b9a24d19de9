// Package chain defines the capability contract supplied by a chain
// adapter. The validator core only depends on this interface; hashing
// and commitment construction are chain-specific.
package chain

import (
	"math/big"
)

// Tree is a commitment structure over a set of leaves. Implementations
// must normalize the leaf set internally so that leaf insertion order
// never affects the resulting root.
type Tree interface {
	// Root returns the root digest of the tree.
	Root() []byte
}

// Adapter supplies the hashing primitives used to commit to a
// channel's balance set.
type Adapter interface {
	// BalanceLeaf derives the leaf value for an (account, amount) pair.
	BalanceLeaf(account string, amount *big.Int) ([]byte, error)

	// NewTree builds a commitment tree over the full leaf set.
	NewTree(leaves [][]byte) Tree

	// CommitRoot combines the raw channel identifier with the balance
	// tree root to produce the final state root digest.
	CommitRoot(channelID []byte, balanceRoot []byte) []byte

	// Name returns the name of the adapter.
	Name() string
}
