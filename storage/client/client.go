// Package client provides a typed client over target storage with
// knowledge of channel and validator-message semantics.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cryptotheoryum/adex-validator/common"
	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/storage"
	"github.com/cryptotheoryum/adex-validator/storage/client/queries"
	"github.com/cryptotheoryum/adex-validator/validator"
)

const moduleName = "storage_client"

// defaultMessageLimit bounds message log queries with no explicit limit.
const defaultMessageLimit = 50

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = pgx.ErrNoRows

// ErrAlreadyExists is returned when inserting a record whose key is
// already taken.
var ErrAlreadyExists = errors.New("record already exists")

// uniqueViolationCode is the postgres error code for a unique
// constraint violation.
const uniqueViolationCode = "23505"

// StorageClient is a wrapper around a storage.TargetStorage with
// knowledge of channel semantics. It implements validator.MessageStore.
type StorageClient struct {
	db     storage.TargetStorage
	logger *log.Logger
}

var _ validator.MessageStore = (*StorageClient)(nil)

// NewStorageClient creates a new storage client.
func NewStorageClient(db storage.TargetStorage, l *log.Logger) *StorageClient {
	return &StorageClient{
		db:     db,
		logger: l.WithModule(moduleName),
	}
}

// Shutdown closes the backing TargetStorage.
func (c *StorageClient) Shutdown() {
	c.db.Shutdown()
}

// InsertChannel persists a newly created channel. Channels are
// immutable once created.
func (c *StorageClient) InsertChannel(ctx context.Context, channel *validator.Channel) error {
	batch := &storage.QueryBatch{}
	batch.Queue(queries.ChannelInsert,
		channel.ID,
		channel.Deposit,
		channel.Leader().ID,
		channel.Leader().Fee,
		channel.Follower().ID,
		channel.Follower().Fee,
		channel.ValidUntil,
	)
	if err := c.db.SendBatch(ctx, batch); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: channel %s", ErrAlreadyExists, channel.ID)
		}
		return err
	}
	return nil
}

// Channel returns the channel with the given id, or ErrNotFound.
func (c *StorageClient) Channel(ctx context.Context, id common.ChannelID) (*validator.Channel, error) {
	row := c.db.QueryRow(ctx, queries.Channel, id)
	return scanChannel(row)
}

// Channels returns stored channels, most recently created first.
func (c *StorageClient) Channels(ctx context.Context, limit, offset uint64) ([]*validator.Channel, error) {
	rows, err := c.db.Query(ctx, queries.Channels, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*validator.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

// ActiveChannels returns channels whose validity deadline has not
// passed, least recently ticked first.
func (c *StorageClient) ActiveChannels(ctx context.Context, limit uint64) ([]*validator.Channel, error) {
	rows, err := c.db.Query(ctx, queries.ActiveChannels, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*validator.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

// ActiveChannelCount returns the number of channels eligible for ticks.
func (c *StorageClient) ActiveChannelCount(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRow(ctx, queries.ActiveChannelCount).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MessageLogHeight returns the largest `received` value across all
// channels, for the status endpoint.
func (c *StorageClient) MessageLogHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := c.db.QueryRow(ctx, queries.MessageLogHeight).Scan(&height); err != nil {
		return 0, err
	}
	return height, nil
}

// LatestTickTime returns the time of the most recent completed channel
// tick, or nil when no channel has been ticked yet.
func (c *StorageClient) LatestTickTime(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	if err := c.db.QueryRow(ctx, queries.LatestTick).Scan(&latest); err != nil {
		return nil, err
	}
	return latest, nil
}

// AppendMessages implements the validator.MessageStore interface for
// StorageClient. The whole batch is inserted atomically; `received`
// values are derived from a single base timestamp offset by the
// message's position in the batch, so relative ordering survives even
// when the clock cannot distinguish the messages.
func (c *StorageClient) AppendMessages(ctx context.Context, channelID common.ChannelID, from string, msgs []*validator.Message) ([]*validator.StoredMessage, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages to append")
	}

	base := time.Now().UnixMicro()
	var latest int64
	if err := c.db.QueryRow(ctx, queries.LatestReceived, channelID).Scan(&latest); err != nil {
		return nil, fmt.Errorf("fetching log position for channel %s: %w", channelID, err)
	}
	if base <= latest {
		base = latest + 1
	}

	batch := &storage.QueryBatch{}
	stored := make([]*validator.StoredMessage, 0, len(msgs))
	for i, msg := range msgs {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("encoding message %d: %w", i, err)
		}
		s := &validator.StoredMessage{
			ChannelID: channelID,
			From:      from,
			Received:  base + int64(i),
			Message:   *msg,
		}
		batch.Queue(queries.ValidatorMessageInsert,
			s.ChannelID,
			s.From,
			s.Received,
			string(msg.Type),
			msg.StateRoot,
			encoded,
		)
		stored = append(stored, s)
	}

	// A concurrent append can claim the same `received` values; the
	// primary key then fails the whole batch and nothing is partially
	// persisted. The failure is propagated for the caller to retry.
	if err := c.db.SendBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("appending %d message(s) to channel %s: %w", len(msgs), channelID, err)
	}
	return stored, nil
}

// Messages implements the validator.MessageStore interface for
// StorageClient.
func (c *StorageClient) Messages(ctx context.Context, channelID common.ChannelID, filter validator.MessageFilter) ([]*validator.StoredMessage, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = defaultMessageLimit
	}
	rows, err := c.db.Query(ctx, queries.ValidatorMessages,
		channelID,
		textOrNil(filter.From),
		textOrNil(string(filter.Type)),
		textOrNil(string(filter.StateRoot)),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*validator.StoredMessage
	for rows.Next() {
		var (
			s       validator.StoredMessage
			encoded []byte
		)
		if err := rows.Scan(&s.ChannelID, &s.From, &s.Received, &encoded); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(encoded, &s.Message); err != nil {
			return nil, fmt.Errorf("decoding stored message for channel %s: %w", channelID, err)
		}
		msgs = append(msgs, &s)
	}
	return msgs, rows.Err()
}

func scanChannel(row pgx.Row) (*validator.Channel, error) {
	var (
		channel  validator.Channel
		leader   validator.Validator
		follower validator.Validator
	)
	if err := row.Scan(
		&channel.ID,
		&channel.Deposit,
		&leader.ID,
		&leader.Fee,
		&follower.ID,
		&follower.Fee,
		&channel.ValidUntil,
	); err != nil {
		return nil, err
	}
	channel.Validators = [2]validator.Validator{leader, follower}
	return &channel, nil
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
