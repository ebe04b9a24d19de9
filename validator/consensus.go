package validator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cryptotheoryum/adex-validator/chain"
	"github.com/cryptotheoryum/adex-validator/log"
)

// Outcome is the result of evaluating a channel on one tick.
type Outcome uint8

const (
	// OutcomePending means there was nothing to evaluate, or the latest
	// proposal has already been responded to. The tick is a no-op and
	// the channel is simply re-evaluated on its next scheduled tick.
	OutcomePending Outcome = iota
	// OutcomeApproved means the recomputed root matched the leader's
	// claim and an ApproveState was persisted.
	OutcomeApproved
	// OutcomeRejected means the roots disagreed and an InvalidNewState
	// was persisted. Rejection is an expected business outcome, not an
	// error; no state advanced.
	OutcomeRejected
)

// String returns the string representation of an Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ConsensusValidator evaluates leader proposals on behalf of the
// follower validator. Each tick persists exactly one message (an
// approval or a rejection) per evaluated proposal, never both and
// never zero.
type ConsensusValidator struct {
	store       MessageStore
	adapter     chain.Adapter
	checkpoints *CheckpointResolver
	logger      *log.Logger
}

// NewConsensusValidator creates a new consensus validator. The message
// store is an explicit dependency; there is no process-wide handle.
func NewConsensusValidator(store MessageStore, adapter chain.Adapter, logger *log.Logger) *ConsensusValidator {
	return &ConsensusValidator{
		store:       store,
		adapter:     adapter,
		checkpoints: NewCheckpointResolver(store),
		logger:      logger,
	}
}

// Tick evaluates the channel's latest leader proposal. Balances are
// always recomputed fresh from the message log; no cross-tick cache is
// kept. A root mismatch is reported as OutcomeRejected with a nil
// error; only malformed input and collaborator failures return errors.
func (v *ConsensusValidator) Tick(ctx context.Context, channel *Channel) (Outcome, error) {
	var (
		proposal     *StoredMessage
		lastApproved *Checkpoint
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		proposals, err := v.store.Messages(egCtx, channel.ID, MessageFilter{
			From:  channel.Leader().ID,
			Type:  MessageNewState,
			Limit: 1,
		})
		if err != nil {
			return fmt.Errorf("fetching latest proposal: %w", err)
		}
		if len(proposals) > 0 {
			proposal = proposals[0]
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		lastApproved, err = v.checkpoints.LastApproved(egCtx, channel)
		if err != nil {
			return fmt.Errorf("resolving last checkpoint: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return OutcomePending, err
	}

	if proposal == nil {
		return OutcomePending, nil
	}

	answered, err := v.alreadyAnswered(ctx, channel, proposal)
	if err != nil {
		return OutcomePending, err
	}
	if answered {
		return OutcomePending, nil
	}

	postFee, _, err := ApplyFees(proposal.Message.Balances, channel)
	if err != nil {
		// Malformed input is fatal and must propagate; it is distinct
		// from a root-mismatch rejection.
		return OutcomePending, fmt.Errorf("channel %s: %w", channel.ID, err)
	}

	valid, err := IsValidRootHash(proposal.Message.StateRoot, channel, postFee, v.adapter)
	if err != nil {
		return OutcomePending, fmt.Errorf("channel %s: %w", channel.ID, err)
	}

	if valid {
		approval := &Message{
			Type:      MessageApproveState,
			StateRoot: proposal.Message.StateRoot,
		}
		if _, err := v.store.AppendMessages(ctx, channel.ID, channel.Follower().ID, []*Message{approval}); err != nil {
			return OutcomePending, fmt.Errorf("persisting approval for channel %s: %w", channel.ID, err)
		}
		v.logger.Info("approved new state",
			"channel", channel.ID,
			"state_root", proposal.Message.StateRoot,
		)
		return OutcomeApproved, nil
	}

	return v.reject(ctx, channel, proposal, lastApproved)
}

// alreadyAnswered reports whether the follower has already responded
// to the proposal's state root, in which case the tick is a no-op.
func (v *ConsensusValidator) alreadyAnswered(ctx context.Context, channel *Channel, proposal *StoredMessage) (bool, error) {
	responses, err := v.store.Messages(ctx, channel.ID, MessageFilter{
		From:      channel.Follower().ID,
		StateRoot: proposal.Message.StateRoot,
		Limit:     1,
	})
	if err != nil {
		return false, fmt.Errorf("fetching follower responses: %w", err)
	}
	return len(responses) > 0, nil
}

// reject persists an InvalidNewState record carrying the rejection
// reason. The remaining fields of the original proposal are preserved;
// only the declared type is overwritten.
func (v *ConsensusValidator) reject(ctx context.Context, channel *Channel, proposal *StoredMessage, lastApproved *Checkpoint) (Outcome, error) {
	reason := fmt.Sprintf("claimed state root %s does not match the recomputed root", proposal.Message.StateRoot)

	rejection := proposal.Message
	rejection.Type = MessageInvalidNewState
	rejection.Reason = reason

	if _, err := v.store.AppendMessages(ctx, channel.ID, channel.Follower().ID, []*Message{&rejection}); err != nil {
		return OutcomePending, fmt.Errorf("persisting rejection for channel %s: %w", channel.ID, err)
	}

	var previousBalances BalanceSet
	if lastApproved != nil {
		previousBalances = lastApproved.NewState.Message.Balances
	}
	v.logger.Warn("rejected new state",
		"channel", channel.ID,
		"state_root", proposal.Message.StateRoot,
		"reason", reason,
		"previous_balances", previousBalances,
		"proposed_balances", proposal.Message.Balances,
	)
	return OutcomeRejected, nil
}
