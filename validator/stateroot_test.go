package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/chain/ethereum"
	"github.com/cryptotheoryum/adex-validator/common"
)

func TestComputeStateRootDeterministic(t *testing.T) {
	adapter := ethereum.NewAdapter()
	channel := testChannel(1000, 10, 5)
	balances := BalanceSet{
		"0xaaa":     common.NewBigInt(2),
		"0xbbb":     common.NewBigInt(3),
		"validator": common.NewBigInt(295),
	}

	root, err := ComputeStateRoot(channel, balances, adapter)
	require.Nil(t, err)
	require.Nil(t, root.Validate())

	// Rebuilding the same set from scratch yields the identical
	// commitment regardless of map iteration order.
	rebuilt := BalanceSet{}
	rebuilt["validator"] = common.NewBigInt(295)
	rebuilt["0xbbb"] = common.NewBigInt(3)
	rebuilt["0xaaa"] = common.NewBigInt(2)
	root2, err := ComputeStateRoot(channel, rebuilt, adapter)
	require.Nil(t, err)
	require.Equal(t, root, root2)
}

func TestComputeStateRootBindsChannel(t *testing.T) {
	adapter := ethereum.NewAdapter()
	balances := BalanceSet{"0xaaa": common.NewBigInt(7)}

	channelA := testChannel(1000, 10, 5)
	channelB := testChannel(1000, 10, 5)
	channelB.ID = common.ChannelID("cd" + string(channelA.ID)[2:])

	rootA, err := ComputeStateRoot(channelA, balances, adapter)
	require.Nil(t, err)
	rootB, err := ComputeStateRoot(channelB, balances, adapter)
	require.Nil(t, err)
	require.NotEqual(t, rootA, rootB)
}

func TestComputeStateRootRejectsBadChannelID(t *testing.T) {
	adapter := ethereum.NewAdapter()
	channel := testChannel(1000, 10, 5)
	channel.ID = "not-hex"

	_, err := ComputeStateRoot(channel, BalanceSet{"0xaaa": common.NewBigInt(1)}, adapter)
	require.NotNil(t, err)
}

func TestIsValidRootHash(t *testing.T) {
	adapter := ethereum.NewAdapter()
	channel := testChannel(1000, 10, 5)
	balances := BalanceSet{
		"0xaaa": common.NewBigInt(2),
		"0xbbb": common.NewBigInt(3),
	}

	root, err := ComputeStateRoot(channel, balances, adapter)
	require.Nil(t, err)

	ok, err := IsValidRootHash(root, channel, balances, adapter)
	require.Nil(t, err)
	require.True(t, ok)

	// Any change to the balance set invalidates the claimed root.
	balances["0xbbb"] = common.NewBigInt(4)
	ok, err = IsValidRootHash(root, channel, balances, adapter)
	require.Nil(t, err)
	require.False(t, ok)
}
