package validator

import (
	"context"

	"github.com/cryptotheoryum/adex-validator/common"
)

// MessageFilter narrows a message log query. Zero values are wildcards.
type MessageFilter struct {
	From      string
	Type      MessageType
	StateRoot common.StateRoot
	Limit     uint64
}

// MessageStore is the append-only, per-channel ordered log of validator
// messages. The `received` value assigned at append time is the only
// ordering authority; callers must never infer ordering from anything
// else.
type MessageStore interface {
	// AppendMessages appends a batch of messages authored by `from` to
	// the channel's log atomically. `received` values are strictly
	// increasing in submission order, even when the wall clock cannot
	// distinguish the messages.
	AppendMessages(ctx context.Context, channelID common.ChannelID, from string, msgs []*Message) ([]*StoredMessage, error)

	// Messages returns messages matching the filter, most recent first.
	Messages(ctx context.Context, channelID common.ChannelID, filter MessageFilter) ([]*StoredMessage, error)
}
