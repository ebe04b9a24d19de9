// Package ethereum implements the chain adapter using Keccak-256, the
// hashing scheme of the on-chain channel contracts.
package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cryptotheoryum/adex-validator/chain"
)

const moduleName = "ethereum"

// amountSize is the encoded width of a balance amount, matching the
// uint256 ABI encoding used on chain.
const amountSize = 32

type adapter struct{}

// NewAdapter creates a new Ethereum chain adapter.
func NewAdapter() chain.Adapter {
	return &adapter{}
}

// BalanceLeaf implements the chain.Adapter interface for adapter.
// The leaf is the Keccak-256 digest of the account string followed by
// the amount as a 32-byte big-endian integer.
func (a *adapter) BalanceLeaf(account string, amount *big.Int) ([]byte, error) {
	if account == "" {
		return nil, fmt.Errorf("ethereum: empty account")
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("ethereum: negative or missing amount for account %s", account)
	}
	raw := amount.Bytes()
	if len(raw) > amountSize {
		return nil, fmt.Errorf("ethereum: amount for account %s overflows uint256", account)
	}
	encoded := make([]byte, amountSize)
	copy(encoded[amountSize-len(raw):], raw)
	return crypto.Keccak256([]byte(account), encoded), nil
}

// NewTree implements the chain.Adapter interface for adapter.
func (a *adapter) NewTree(leaves [][]byte) chain.Tree {
	return newMerkleTree(leaves)
}

// CommitRoot implements the chain.Adapter interface for adapter.
func (a *adapter) CommitRoot(channelID []byte, balanceRoot []byte) []byte {
	return crypto.Keccak256(channelID, balanceRoot)
}

// Name implements the chain.Adapter interface for adapter.
func (a *adapter) Name() string {
	return moduleName
}
