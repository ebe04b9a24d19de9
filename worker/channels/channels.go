// Package channels implements the per-channel consensus tick worker.
//
// Each active channel is a work item: one tick evaluates the channel's
// latest leader proposal and persists the follower's response. A single
// channel is never evaluated by more than one in-flight tick, while
// distinct channels are processed fully in parallel.
package channels

import (
	"context"
	"errors"

	"github.com/cryptotheoryum/adex-validator/chain"
	"github.com/cryptotheoryum/adex-validator/config"
	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/metrics"
	"github.com/cryptotheoryum/adex-validator/storage"
	"github.com/cryptotheoryum/adex-validator/storage/client"
	"github.com/cryptotheoryum/adex-validator/storage/client/queries"
	"github.com/cryptotheoryum/adex-validator/validator"
	"github.com/cryptotheoryum/adex-validator/worker"
	"github.com/cryptotheoryum/adex-validator/worker/item"
)

const workerName = "channels"

type processor struct {
	identity  string
	source    *client.StorageClient
	consensus *validator.ConsensusValidator
	metrics   metrics.WorkerMetrics
	logger    *log.Logger
}

var _ item.ItemProcessor[*validator.Channel] = (*processor)(nil)

// NewWorker returns the channel consensus worker. identity is the
// validator id this node authors follower messages as.
func NewWorker(
	identity string,
	cfg config.ItemBasedWorkerConfig,
	source *client.StorageClient,
	adapter chain.Adapter,
	target storage.TargetStorage,
	logger *log.Logger,
) (worker.Worker, error) {
	logger = logger.WithModule(workerName)
	p := &processor{
		identity:  identity,
		source:    source,
		consensus: validator.NewConsensusValidator(source, adapter, logger),
		metrics:   metrics.NewDefaultWorkerMetrics(workerName),
		logger:    logger,
	}
	return item.NewWorker[*validator.Channel](workerName, cfg, p, target, logger)
}

// GetItems implements the item.ItemProcessor interface for processor.
// Channels are returned least recently ticked first, so no channel is
// starved.
func (p *processor) GetItems(ctx context.Context, limit uint64) ([]*validator.Channel, error) {
	return p.source.ActiveChannels(ctx, limit)
}

// ProcessItem implements the item.ItemProcessor interface for
// processor. A tick ending in a rejection is a no-op, not an error.
// A deterministic validation failure marks the channel ticked anyway,
// so it rotates to the back of the least-recently-ticked queue instead
// of pinning the head and starving healthy channels; transient failures
// (e.g. storage errors) propagate and the channel is retried on its
// next scheduled tick.
func (p *processor) ProcessItem(ctx context.Context, batch *storage.QueryBatch, channel *validator.Channel) error {
	if channel.Follower().ID != p.identity {
		// Channels this node does not follow are still marked ticked
		// so they do not clog the front of the queue.
		p.logger.Debug("skipping channel with foreign follower",
			"channel", channel.ID,
			"follower", channel.Follower().ID,
		)
		batch.Queue(queries.ChannelTickDone, channel.ID)
		return nil
	}

	outcome, err := p.consensus.Tick(ctx, channel)
	switch {
	case err == nil:
	case errors.Is(err, validator.ErrInvalidBalances) || errors.Is(err, validator.ErrNegativeBalance):
		// Retrying a malformed proposal fails the same way every time.
		p.logger.Error("channel failed validation, deferring to next tick",
			"channel", channel.ID,
			"err", err,
		)
		p.metrics.TickOutcome(workerName, "failed").Inc()
		batch.Queue(queries.ChannelTickDone, channel.ID)
		return nil
	default:
		return err
	}
	p.metrics.TickOutcome(workerName, outcome.String()).Inc()
	batch.Queue(queries.ChannelTickDone, channel.ID)
	return nil
}

// QueueLength implements the item.ItemProcessor interface for
// processor.
func (p *processor) QueueLength(ctx context.Context) (int, error) {
	return p.source.ActiveChannelCount(ctx)
}
