package validator

import (
	"context"
	"fmt"
)

// Checkpoint is the unit of finality: a leader NewState and a follower
// ApproveState sharing the same state root.
type Checkpoint struct {
	NewState     *StoredMessage `json:"newState"`
	ApproveState *StoredMessage `json:"approveState"`
}

// CheckpointResolver determines the last mutually-attested state of a
// channel from its message log.
type CheckpointResolver struct {
	store MessageStore
}

// NewCheckpointResolver creates a new checkpoint resolver backed by the
// given message store.
func NewCheckpointResolver(store MessageStore) *CheckpointResolver {
	return &CheckpointResolver{store: store}
}

// LastApproved returns the latest checkpoint, or nil if the channel has
// no finalized state. An ApproveState whose corresponding proposal
// cannot be located yields nil as well; that is "no checkpoint," not an
// error.
func (r *CheckpointResolver) LastApproved(ctx context.Context, channel *Channel) (*Checkpoint, error) {
	approvals, err := r.store.Messages(ctx, channel.ID, MessageFilter{
		From:  channel.Follower().ID,
		Type:  MessageApproveState,
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching latest approval: %w", err)
	}
	if len(approvals) == 0 {
		return nil, nil
	}
	approval := approvals[0]

	proposals, err := r.store.Messages(ctx, channel.ID, MessageFilter{
		From:      channel.Leader().ID,
		Type:      MessageNewState,
		StateRoot: approval.Message.StateRoot,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching matching proposal: %w", err)
	}
	if len(proposals) == 0 {
		return nil, nil
	}

	return &Checkpoint{
		NewState:     proposals[0],
		ApproveState: approval,
	}, nil
}
