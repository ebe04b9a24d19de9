package api

import (
	"encoding/json"
	"time"

	"github.com/cryptotheoryum/adex-validator/validator"
)

// StatusResponse is the response of the service status endpoint.
type StatusResponse struct {
	// LatestReceived is the largest `received` value across all
	// channels' message logs.
	LatestReceived int64 `json:"latestReceived"`
	// LatestTickAt is the time of the most recent completed channel
	// tick, or null if no channel has been ticked yet.
	LatestTickAt *time.Time `json:"latestTickAt"`
}

// ChannelListResponse is the response of the channel list endpoint.
type ChannelListResponse struct {
	Channels []*validator.Channel `json:"channels"`
}

// MessageListResponse is the response of the validator message list
// endpoint. Messages are ordered most recent first.
type MessageListResponse struct {
	Messages []*validator.StoredMessage `json:"messages"`
}

// SubmitMessagesRequest is the request body for submitting a batch of
// validator messages. Each message is decoded and validated
// individually so a structured decode error can name the offending
// entry.
type SubmitMessagesRequest struct {
	Messages []json.RawMessage `json:"messages"`
}

// SubmitMessagesResponse echoes the stored messages with their assigned
// `received` values.
type SubmitMessagesResponse struct {
	Messages []*validator.StoredMessage `json:"messages"`
}

// LastApprovedResponse is the response of the last-approved endpoint.
// LastApproved is null when the channel has no finalized checkpoint.
type LastApprovedResponse struct {
	LastApproved *validator.Checkpoint `json:"lastApproved"`
}
