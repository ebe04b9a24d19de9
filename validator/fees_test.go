package validator

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/common"
)

func testChannel(deposit int64, leaderFee int64, followerFee int64) *Channel {
	return &Channel{
		ID:         common.ChannelID(strings.Repeat("ab", common.ChannelIDSize)),
		Deposit:    common.NewBigInt(deposit),
		ValidUntil: time.Now().Add(24 * time.Hour),
		Validators: [2]Validator{
			{ID: "0xleader", Fee: common.NewBigInt(leaderFee)},
			{ID: "0xfollower", Fee: common.NewBigInt(followerFee)},
		},
	}
}

func TestApplyFees(t *testing.T) {
	channel := testChannel(1000, 10, 5)
	raw := BalanceSet{
		"0xaaa": common.NewBigInt(100),
		"0xbbb": common.NewBigInt(200),
	}

	postFee, share, err := ApplyFees(raw, channel)
	require.Nil(t, err)

	// t = b * (1000 - 15) / 1000, truncating.
	require.Equal(t, common.NewBigInt(2), postFee["0xaaa"])
	require.Equal(t, common.NewBigInt(3), postFee["0xbbb"])
	require.Equal(t, common.NewBigInt(295), postFee[ValidatorEntryKey])
	require.Equal(t, "295", share.String())

	// The distribution moves value around but never creates or
	// destroys it.
	require.Equal(t, raw.Sum(), postFee.Sum())
}

func TestApplyFeesPreservesSum(t *testing.T) {
	channel := testChannel(982451653, 7919, 104729)
	raw := BalanceSet{
		"0xaaa": common.NewBigInt(1),
		"0xbbb": common.NewBigInt(982451652),
		"0xccc": common.NewBigInt(0),
		"0xddd": common.NewBigInt(123456789),
	}

	postFee, _, err := ApplyFees(raw, channel)
	require.Nil(t, err)
	require.Equal(t, raw.Sum(), postFee.Sum())
	for account, amount := range postFee {
		require.GreaterOrEqual(t, amount.Sign(), 0, "account %s", account)
	}
}

func TestApplyFeesRejectsMalformedInput(t *testing.T) {
	channel := testChannel(1000, 10, 5)

	for _, tc := range []struct {
		name string
		raw  BalanceSet
	}{
		{"empty set", BalanceSet{}},
		{"negative balance", BalanceSet{"0xaaa": common.BigInt{Int: *big.NewInt(-1)}}},
		{"reserved account", BalanceSet{"0xaaa": common.NewBigInt(1), ValidatorEntryKey: common.NewBigInt(1)}},
	} {
		_, _, err := ApplyFees(tc.raw, channel)
		require.ErrorIs(t, err, ErrInvalidBalances, tc.name)
	}
}

func TestApplyFeesRejectsZeroDeposit(t *testing.T) {
	channel := testChannel(1000, 10, 5)
	channel.Deposit = common.NewBigInt(0)

	_, _, err := ApplyFees(BalanceSet{"0xaaa": common.NewBigInt(1)}, channel)
	require.ErrorIs(t, err, ErrInvalidBalances)
}
