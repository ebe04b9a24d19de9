package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/common"
)

func TestLastApprovedEmptyLog(t *testing.T) {
	store := &memStore{}
	channel := testChannel(1000, 10, 5)

	checkpoint, err := NewCheckpointResolver(store).LastApproved(context.Background(), channel)
	require.Nil(t, err)
	require.Nil(t, checkpoint)
}

func TestLastApprovedDanglingApproval(t *testing.T) {
	store := &memStore{}
	channel := testChannel(1000, 10, 5)

	// An approval with no matching proposal yields no checkpoint.
	_, err := store.AppendMessages(context.Background(), channel.ID, channel.Follower().ID, []*Message{{
		Type:      MessageApproveState,
		StateRoot: common.StateRoot(channel.ID),
	}})
	require.Nil(t, err)

	checkpoint, err := NewCheckpointResolver(store).LastApproved(context.Background(), channel)
	require.Nil(t, err)
	require.Nil(t, checkpoint)
}

func TestLastApprovedReturnsLatestPair(t *testing.T) {
	store := &memStore{}
	channel := testChannel(1000, 10, 5)
	ctx := context.Background()

	rootA := validRoot(t, channel, BalanceSet{"0xaaa": common.NewBigInt(100)})
	rootB := validRoot(t, channel, BalanceSet{"0xaaa": common.NewBigInt(300)})

	for _, root := range []common.StateRoot{rootA, rootB} {
		_, err := store.AppendMessages(ctx, channel.ID, channel.Leader().ID, []*Message{{
			Type:      MessageNewState,
			StateRoot: root,
			Balances:  BalanceSet{"0xaaa": common.NewBigInt(100)},
		}})
		require.Nil(t, err)
		_, err = store.AppendMessages(ctx, channel.ID, channel.Follower().ID, []*Message{{
			Type:      MessageApproveState,
			StateRoot: root,
		}})
		require.Nil(t, err)
	}

	checkpoint, err := NewCheckpointResolver(store).LastApproved(ctx, channel)
	require.Nil(t, err)
	require.NotNil(t, checkpoint)
	require.Equal(t, rootB, checkpoint.NewState.Message.StateRoot)
	require.Equal(t, rootB, checkpoint.ApproveState.Message.StateRoot)
	require.Equal(t, channel.Leader().ID, checkpoint.NewState.From)
	require.Equal(t, channel.Follower().ID, checkpoint.ApproveState.From)
}
