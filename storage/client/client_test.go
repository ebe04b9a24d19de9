package client

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/common"
	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/storage"
	"github.com/cryptotheoryum/adex-validator/storage/postgres"
	"github.com/cryptotheoryum/adex-validator/storage/postgres/testutil"
	"github.com/cryptotheoryum/adex-validator/validator"
)

// applySQL executes a migration file statement by statement. The
// migration files are plain DDL, so splitting on semicolons is safe.
func applySQL(t *testing.T, pg *postgres.Client, path string) {
	raw, err := os.ReadFile(path)
	require.Nil(t, err)

	batch := &storage.QueryBatch{}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || stmt == "BEGIN" || stmt == "COMMIT" {
			continue
		}
		batch.Queue(stmt)
	}
	require.Nil(t, pg.SendBatch(context.Background(), batch))
}

func setupStorage(t *testing.T) *StorageClient {
	pg := testutil.NewTestClient(t)
	applySQL(t, pg, "../migrations/00001_channels.down.sql")
	applySQL(t, pg, "../migrations/00001_channels.up.sql")
	t.Cleanup(pg.Shutdown)
	return NewStorageClient(pg, log.NewDefaultLogger("client-test"))
}

func testChannel(id common.ChannelID) *validator.Channel {
	return &validator.Channel{
		ID:      id,
		Deposit: common.NewBigInt(1000),
		// Postgres stores timestamps at microsecond precision.
		ValidUntil: time.Now().Add(24 * time.Hour).Truncate(time.Microsecond).UTC(),
		Validators: [2]validator.Validator{
			{ID: "0xleader", Fee: common.NewBigInt(10)},
			{ID: "0xfollower", Fee: common.NewBigInt(5)},
		},
	}
}

func TestChannelRoundTrip(t *testing.T) {
	client := setupStorage(t)
	ctx := context.Background()

	channel := testChannel(common.ChannelID(strings.Repeat("ab", common.ChannelIDSize)))
	require.Nil(t, client.InsertChannel(ctx, channel))

	// Channels are immutable; re-creating one is reported distinctly
	// from a storage outage.
	require.ErrorIs(t, client.InsertChannel(ctx, channel), ErrAlreadyExists)

	got, err := client.Channel(ctx, channel.ID)
	require.Nil(t, err)
	require.Equal(t, channel.ID, got.ID)
	require.Equal(t, 0, channel.Deposit.Cmp(&got.Deposit.Int))
	require.Equal(t, channel.Validators[0].ID, got.Validators[0].ID)
	require.Equal(t, 0, channel.Validators[0].Fee.Cmp(&got.Validators[0].Fee.Int))
	require.Equal(t, channel.Validators[1].ID, got.Validators[1].ID)
	require.True(t, channel.ValidUntil.Equal(got.ValidUntil))

	_, err = client.Channel(ctx, common.ChannelID(strings.Repeat("cd", common.ChannelIDSize)))
	require.ErrorIs(t, err, ErrNotFound)

	// The not-yet-expired channel is in the active set.
	active, err := client.ActiveChannels(ctx, 10)
	require.Nil(t, err)
	require.Len(t, active, 1)

	count, err := client.ActiveChannelCount(ctx)
	require.Nil(t, err)
	require.Equal(t, 1, count)
}

func TestAppendMessagesOrdering(t *testing.T) {
	client := setupStorage(t)
	ctx := context.Background()

	channel := testChannel(common.ChannelID(strings.Repeat("ab", common.ChannelIDSize)))
	require.Nil(t, client.InsertChannel(ctx, channel))

	root := common.StateRoot(strings.Repeat("cd", common.StateRootSize))
	proposal := &validator.Message{
		Type:      validator.MessageNewState,
		StateRoot: root,
		Balances:  validator.BalanceSet{"0xaaa": common.NewBigInt(100)},
	}
	approval := &validator.Message{
		Type:      validator.MessageApproveState,
		StateRoot: root,
	}

	stored, err := client.AppendMessages(ctx, channel.ID, channel.Leader().ID, []*validator.Message{proposal, proposal, proposal})
	require.Nil(t, err)
	require.Len(t, stored, 3)
	// `received` is unique and strictly increasing, including within
	// a single batch.
	require.Less(t, stored[0].Received, stored[1].Received)
	require.Less(t, stored[1].Received, stored[2].Received)

	stored2, err := client.AppendMessages(ctx, channel.ID, channel.Follower().ID, []*validator.Message{approval})
	require.Nil(t, err)
	require.Less(t, stored[2].Received, stored2[0].Received)

	height, err := client.MessageLogHeight(ctx)
	require.Nil(t, err)
	require.Equal(t, stored2[0].Received, height)
}

func TestMessageFilters(t *testing.T) {
	client := setupStorage(t)
	ctx := context.Background()

	channel := testChannel(common.ChannelID(strings.Repeat("ab", common.ChannelIDSize)))
	require.Nil(t, client.InsertChannel(ctx, channel))

	rootA := common.StateRoot(strings.Repeat("0a", common.StateRootSize))
	rootB := common.StateRoot(strings.Repeat("0b", common.StateRootSize))
	balances := validator.BalanceSet{"0xaaa": common.NewBigInt(100)}

	_, err := client.AppendMessages(ctx, channel.ID, channel.Leader().ID, []*validator.Message{
		{Type: validator.MessageNewState, StateRoot: rootA, Balances: balances},
		{Type: validator.MessageNewState, StateRoot: rootB, Balances: balances},
	})
	require.Nil(t, err)
	_, err = client.AppendMessages(ctx, channel.ID, channel.Follower().ID, []*validator.Message{
		{Type: validator.MessageApproveState, StateRoot: rootA},
	})
	require.Nil(t, err)

	// No filter: everything, most recent first.
	msgs, err := client.Messages(ctx, channel.ID, validator.MessageFilter{})
	require.Nil(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, validator.MessageApproveState, msgs[0].Message.Type)
	require.Equal(t, rootB, msgs[1].Message.StateRoot)

	// Stored NewState balances survive the JSONB round trip.
	require.True(t, balances.Equal(msgs[1].Message.Balances))

	msgs, err = client.Messages(ctx, channel.ID, validator.MessageFilter{From: channel.Leader().ID})
	require.Nil(t, err)
	require.Len(t, msgs, 2)

	msgs, err = client.Messages(ctx, channel.ID, validator.MessageFilter{Type: validator.MessageApproveState})
	require.Nil(t, err)
	require.Len(t, msgs, 1)

	msgs, err = client.Messages(ctx, channel.ID, validator.MessageFilter{StateRoot: rootA})
	require.Nil(t, err)
	require.Len(t, msgs, 2)

	msgs, err = client.Messages(ctx, channel.ID, validator.MessageFilter{From: channel.Leader().ID, Type: validator.MessageNewState, Limit: 1})
	require.Nil(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, rootB, msgs[0].Message.StateRoot)
}
