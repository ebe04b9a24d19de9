package validator

import (
	"fmt"

	"github.com/cryptotheoryum/adex-validator/chain"
	"github.com/cryptotheoryum/adex-validator/common"
)

// ComputeStateRoot builds the deterministic commitment to a channel's
// balance set. One leaf is derived per (account, amount) pair via the
// adapter, a canonical tree is built over the leaf set, and the tree
// root is combined with the raw channel identifier. Identical
// (channel id, balance set) inputs always produce the identical root,
// irrespective of map iteration order.
func ComputeStateRoot(channel *Channel, balances BalanceSet, adapter chain.Adapter) (common.StateRoot, error) {
	if err := channel.ID.Validate(); err != nil {
		return "", err
	}

	leaves := make([][]byte, 0, len(balances))
	for account, amount := range balances {
		leaf, err := adapter.BalanceLeaf(account, &amount.Int)
		if err != nil {
			return "", fmt.Errorf("deriving leaf for channel %s: %w", channel.ID, err)
		}
		leaves = append(leaves, leaf)
	}

	tree := adapter.NewTree(leaves)
	raw := adapter.CommitRoot(channel.ID.Bytes(), tree.Root())
	return common.StateRootFromBytes(raw), nil
}

// IsValidRootHash reports whether the claimed root equals the freshly
// recomputed root for the given post-fee balances. Comparison is by
// value equality; there is no partial matching.
func IsValidRootHash(claimed common.StateRoot, channel *Channel, balancesAfterFees BalanceSet, adapter chain.Adapter) (bool, error) {
	expected, err := ComputeStateRoot(channel, balancesAfterFees, adapter)
	if err != nil {
		return false, err
	}
	return expected == claimed, nil
}
