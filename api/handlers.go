package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	apiCommon "github.com/cryptotheoryum/adex-validator/api/common"
	"github.com/cryptotheoryum/adex-validator/common"
	storage "github.com/cryptotheoryum/adex-validator/storage/client"
	"github.com/cryptotheoryum/adex-validator/validator"
)

var (
	defaultListLimit = uint64(100)
	maxListLimit     = uint64(1000)
)

// GetStatus gets the validator node status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	height, err := h.client.MessageLogHeight(ctx)
	if err != nil {
		h.logAndReply(ctx, "failed to get status", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}
	latestTick, err := h.client.LatestTickTime(ctx)
	if err != nil {
		h.logAndReply(ctx, "failed to get status", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}

	h.replyJSON(ctx, w, r, StatusResponse{
		LatestReceived: height,
		LatestTickAt:   latestTick,
	})
}

// ListChannels gets a list of channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset, err := parsePagination(r)
	if err != nil {
		h.logAndReply(ctx, "malformed pagination", w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return
	}

	channels, err := h.client.Channels(ctx, limit, offset)
	if err != nil {
		h.logAndReply(ctx, "failed to list channels", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}

	h.replyJSON(ctx, w, r, ChannelListResponse{Channels: channels})
}

// CreateChannel creates a new channel. Channels are immutable once
// created.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var channel validator.Channel
	if err := json.NewDecoder(r.Body).Decode(&channel); err != nil {
		h.logAndReply(ctx, "malformed channel", w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return
	}
	if err := channel.Validate(); err != nil {
		h.logger.Info("rejecting invalid channel", "err", err)
		apiCommon.ReplyWithError(w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return
	}

	if err := h.client.InsertChannel(ctx, &channel); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			h.logAndReply(ctx, "channel already exists", w, apiCommon.ErrAlreadyExists)
			h.metrics.RequestCounter(r.URL.Path, "failure", "already_exists").Inc()
			return
		}
		h.logAndReply(ctx, "failed to insert channel", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.replyJSON(ctx, w, r, channel)
}

// GetChannel gets a channel.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channel, ok := h.resolveChannel(w, r)
	if !ok {
		return
	}

	h.replyJSON(ctx, w, r, channel)
}

// ListValidatorMessages gets a channel's validator messages, most
// recent first. Results can be narrowed with the `from`, `type` and
// `state_root` query parameters.
func (h *Handler) ListValidatorMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channel, ok := h.resolveChannel(w, r)
	if !ok {
		return
	}

	filter := validator.MessageFilter{
		From:      r.URL.Query().Get("from"),
		Type:      validator.MessageType(r.URL.Query().Get("type")),
		StateRoot: common.StateRoot(r.URL.Query().Get("state_root")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		h.logAndReply(ctx, "malformed message type filter", w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return
	}
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		limit, err := strconv.ParseUint(limitRaw, 10, 64)
		if err != nil || limit > maxListLimit {
			h.logAndReply(ctx, "malformed limit", w, apiCommon.ErrBadRequest)
			h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
			return
		}
		filter.Limit = limit
	}

	msgs, err := h.client.Messages(ctx, channel.ID, filter)
	if err != nil {
		h.logAndReply(ctx, "failed to list validator messages", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}

	h.replyJSON(ctx, w, r, MessageListResponse{Messages: msgs})
}

// SubmitValidatorMessages appends a batch of validator messages to a
// channel's log. The author is identified by the `from` query
// parameter; each message is decoded and validated at this boundary.
func (h *Handler) SubmitValidatorMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channel, ok := h.resolveChannel(w, r)
	if !ok {
		return
	}

	from := r.URL.Query().Get("from")
	if from != channel.Leader().ID && from != channel.Follower().ID {
		h.logAndReply(ctx, "submitter is not a channel validator", w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return
	}

	var req SubmitMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		h.logAndReply(ctx, "malformed message batch", w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return
	}

	msgs := make([]*validator.Message, 0, len(req.Messages))
	for i, raw := range req.Messages {
		msg, err := validator.DecodeMessage(raw)
		if err != nil {
			h.logger.Info("rejecting invalid message", "index", i, "err", err)
			apiCommon.ReplyWithError(w, apiCommon.ErrBadRequest)
			h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
			return
		}
		msgs = append(msgs, msg)
	}

	stored, err := h.client.AppendMessages(ctx, channel.ID, from, msgs)
	if err != nil {
		h.logAndReply(ctx, "failed to append messages", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.replyJSON(ctx, w, r, SubmitMessagesResponse{Messages: stored})
}

// GetLastApproved reports the channel's last finalized checkpoint, the
// latest (NewState, ApproveState) pair sharing a state root.
func (h *Handler) GetLastApproved(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channel, ok := h.resolveChannel(w, r)
	if !ok {
		return
	}

	checkpoint, err := h.checkpoints.LastApproved(ctx, channel)
	if err != nil {
		h.logAndReply(ctx, "failed to resolve last approved state", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return
	}

	h.replyJSON(ctx, w, r, LastApprovedResponse{LastApproved: checkpoint})
}

// resolveChannel loads the channel named by the URL, replying with an
// error when it is malformed or unknown.
func (h *Handler) resolveChannel(w http.ResponseWriter, r *http.Request) (*validator.Channel, bool) {
	ctx := r.Context()

	id := common.ChannelID(chi.URLParam(r, "channel_id"))
	if err := id.Validate(); err != nil {
		h.logAndReply(ctx, "malformed channel id", w, apiCommon.ErrBadRequest)
		h.metrics.RequestCounter(r.URL.Path, "failure", "bad_request").Inc()
		return nil, false
	}

	channel, err := h.client.Channel(ctx, id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		h.logAndReply(ctx, "channel not found", w, apiCommon.ErrNotFound)
		h.metrics.RequestCounter(r.URL.Path, "failure", "not_found").Inc()
		return nil, false
	case err != nil:
		h.logAndReply(ctx, "failed to get channel", w, apiCommon.ErrStorageError)
		h.metrics.RequestCounter(r.URL.Path, "failure", "database_error").Inc()
		return nil, false
	}
	return channel, true
}

func parsePagination(r *http.Request) (limit uint64, offset uint64, err error) {
	limit = defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, err
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	return limit, offset, nil
}

func (h *Handler) logAndReply(ctx context.Context, msg string, w http.ResponseWriter, err error) {
	h.logger.Error(msg,
		"request_id", ctx.Value(common.RequestIDContextKey),
		"error", err,
	)
	apiCommon.ReplyWithError(w, err)
}

func (h *Handler) replyJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, v interface{}) {
	resp, err := json.Marshal(v)
	if err != nil {
		h.logAndReply(ctx, "failed to marshal response", w, err)
		h.metrics.RequestCounter(r.URL.Path, "failure", "serde_error").Inc()
		return
	}

	w.Header().Set("content-type", "application/json")
	if _, err := w.Write(resp); err != nil {
		h.logger.Error("failed to write response",
			"request_id", ctx.Value(common.RequestIDContextKey),
			"error", err,
		)
		h.metrics.RequestCounter(r.URL.Path, "failure", "http_error").Inc()
	} else {
		h.metrics.RequestCounter(r.URL.Path, "success").Inc()
	}
}
