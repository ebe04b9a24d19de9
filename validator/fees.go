package validator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cryptotheoryum/adex-validator/common"
)

// ValidatorEntryKey is the synthetic balance entry holding the
// accumulated validator share after fee distribution.
const ValidatorEntryKey = "validator"

var (
	// ErrInvalidBalances is returned when the input is not a valid
	// non-empty balance mapping. This is an unrecoverable precondition
	// failure, not a business outcome.
	ErrInvalidBalances = errors.New("invalid balance set")

	// ErrNegativeBalance is returned when fee distribution produces a
	// negative value, which indicates a corrupted channel configuration
	// or malicious input.
	ErrNegativeBalance = errors.New("fee distribution produced a negative balance")
)

// ApplyFees derives post-fee balances from raw balances and the
// channel's fee configuration. For each account with raw balance b it
// computes t = b * (deposit - totalFee) / deposit with truncating
// integer division, assigns b - t as the account's post-fee balance,
// and accumulates t into the synthetic "validator" entry of the result.
//
// Division is always by the fixed deposit, never a shrinking remainder,
// so the result is independent of account iteration order. The sum of
// all returned entries equals the sum of the raw balances exactly.
func ApplyFees(raw BalanceSet, channel *Channel) (BalanceSet, common.BigInt, error) {
	if err := raw.Validate(); err != nil {
		return nil, common.BigInt{}, fmt.Errorf("%w: %s", ErrInvalidBalances, err)
	}
	if _, reserved := raw[ValidatorEntryKey]; reserved {
		return nil, common.BigInt{}, fmt.Errorf("%w: account '%s' is reserved", ErrInvalidBalances, ValidatorEntryKey)
	}
	deposit := &channel.Deposit.Int
	if deposit.Sign() <= 0 {
		return nil, common.BigInt{}, fmt.Errorf("%w: channel %s has no deposit", ErrInvalidBalances, channel.ID)
	}

	retained := new(big.Int).Sub(deposit, channel.TotalFee())

	postFee := make(BalanceSet, len(raw)+1)
	share := new(big.Int)
	for account, balance := range raw {
		t := new(big.Int).Mul(&balance.Int, retained)
		t.Quo(t, deposit)
		remainder := new(big.Int).Sub(&balance.Int, t)
		if t.Sign() < 0 || remainder.Sign() < 0 {
			return nil, common.BigInt{}, fmt.Errorf("%w: account %s in channel %s", ErrNegativeBalance, account, channel.ID)
		}
		postFee[account] = common.BigInt{Int: *remainder}
		share.Add(share, t)
	}
	postFee[ValidatorEntryKey] = common.BigInt{Int: *share}

	return postFee, common.BigInt{Int: *share}, nil
}
