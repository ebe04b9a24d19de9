package channels

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/chain/ethereum"
	"github.com/cryptotheoryum/adex-validator/common"
	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/metrics"
	"github.com/cryptotheoryum/adex-validator/storage"
	"github.com/cryptotheoryum/adex-validator/storage/client/queries"
	"github.com/cryptotheoryum/adex-validator/validator"
)

// memStore is an in-memory validator.MessageStore, enough of it to
// drive a tick.
type memStore struct {
	msgs []*validator.StoredMessage
	next int64
	err  error
}

var _ validator.MessageStore = (*memStore)(nil)

func (s *memStore) AppendMessages(ctx context.Context, channelID common.ChannelID, from string, msgs []*validator.Message) ([]*validator.StoredMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	stored := make([]*validator.StoredMessage, 0, len(msgs))
	for _, msg := range msgs {
		s.next++
		sm := &validator.StoredMessage{
			ChannelID: channelID,
			From:      from,
			Received:  s.next,
			Message:   *msg,
		}
		s.msgs = append(s.msgs, sm)
		stored = append(stored, sm)
	}
	return stored, nil
}

func (s *memStore) Messages(ctx context.Context, channelID common.ChannelID, filter validator.MessageFilter) ([]*validator.StoredMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*validator.StoredMessage
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if m.ChannelID != channelID {
			continue
		}
		if filter.From != "" && m.From != filter.From {
			continue
		}
		if filter.Type != "" && m.Message.Type != filter.Type {
			continue
		}
		if filter.StateRoot != "" && m.Message.StateRoot != filter.StateRoot {
			continue
		}
		out = append(out, m)
		if filter.Limit != 0 && uint64(len(out)) == filter.Limit {
			break
		}
	}
	return out, nil
}

func testChannel() *validator.Channel {
	return &validator.Channel{
		ID:         common.ChannelID(strings.Repeat("ab", common.ChannelIDSize)),
		Deposit:    common.NewBigInt(1000),
		ValidUntil: time.Now().Add(24 * time.Hour),
		Validators: [2]validator.Validator{
			{ID: "0xleader", Fee: common.NewBigInt(10)},
			{ID: "0xfollower", Fee: common.NewBigInt(5)},
		},
	}
}

func newTestProcessor(identity string, store validator.MessageStore) *processor {
	logger := log.NewDefaultLogger("channels-test")
	return &processor{
		identity:  identity,
		consensus: validator.NewConsensusValidator(store, ethereum.NewAdapter(), logger),
		metrics:   metrics.NewDefaultWorkerMetrics("channels-test"),
		logger:    logger,
	}
}

func requireTickDone(t *testing.T, batch *storage.QueryBatch, channel *validator.Channel) {
	require.Equal(t, 1, batch.Length())
	q := batch.Queries()[0]
	require.Equal(t, queries.ChannelTickDone, q.Cmd)
	require.Equal(t, []interface{}{channel.ID}, q.Args)
}

func seedProposal(t *testing.T, store *memStore, channel *validator.Channel, balances validator.BalanceSet) {
	_, err := store.AppendMessages(context.Background(), channel.ID, channel.Leader().ID, []*validator.Message{{
		Type:      validator.MessageNewState,
		StateRoot: common.StateRoot(strings.Repeat("cd", common.StateRootSize)),
		Balances:  balances,
	}})
	require.Nil(t, err)
}

func TestProcessItemMarksMalformedProposalTicked(t *testing.T) {
	store := &memStore{}
	channel := testChannel()
	// The reserved synthetic entry makes the proposal fail validation
	// deterministically on every tick.
	seedProposal(t, store, channel, validator.BalanceSet{
		"0xaaa":                     common.NewBigInt(1),
		validator.ValidatorEntryKey: common.NewBigInt(1),
	})

	p := newTestProcessor("0xfollower", store)
	batch := &storage.QueryBatch{}
	err := p.ProcessItem(context.Background(), batch, channel)
	require.Nil(t, err)

	// The channel still rotates to the back of the queue, and the
	// poisoned proposal gets no follower response.
	requireTickDone(t, batch, channel)
	require.Len(t, store.msgs, 1)
}

func TestProcessItemPropagatesStorageFailure(t *testing.T) {
	storageErr := errors.New("connection reset")
	store := &memStore{err: storageErr}
	channel := testChannel()

	p := newTestProcessor("0xfollower", store)
	batch := &storage.QueryBatch{}
	err := p.ProcessItem(context.Background(), batch, channel)
	require.ErrorIs(t, err, storageErr)

	// A transient failure leaves the channel due, so the next batch
	// retries it.
	require.Equal(t, 0, batch.Length())
}

func TestProcessItemSkipsForeignFollower(t *testing.T) {
	store := &memStore{err: errors.New("store must not be touched")}
	channel := testChannel()

	p := newTestProcessor("0xother", store)
	batch := &storage.QueryBatch{}
	err := p.ProcessItem(context.Background(), batch, channel)
	require.Nil(t, err)
	requireTickDone(t, batch, channel)
}
