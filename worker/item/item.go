// Package item implements the generic item based worker.
//
// The item based worker uses an ItemProcessor to process work items and
// handles the common logic for fetching work items and processing them
// in parallel.
package item

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptotheoryum/adex-validator/config"
	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/metrics"
	"github.com/cryptotheoryum/adex-validator/storage"
	"github.com/cryptotheoryum/adex-validator/worker"
	"github.com/cryptotheoryum/adex-validator/worker/util"
)

// Timeout to process a single batch. A variable so tests can shorten it.
var processBatchTimeout = 61 * time.Second

// Default number of items processed in a batch.
const defaultBatchSize = 20

type itemBasedWorker[Item any] struct {
	maxBatchSize        uint64
	stopIfQueueEmptyFor time.Duration
	fixedInterval       time.Duration
	interItemDelay      time.Duration
	workerName          string

	processor ItemProcessor[Item]

	target  storage.TargetStorage
	logger  *log.Logger
	metrics metrics.WorkerMetrics
}

var _ worker.Worker = (*itemBasedWorker[any])(nil)

type ItemProcessor[Item any] interface {
	// GetItems fetches the next batch of work items.
	GetItems(ctx context.Context, limit uint64) ([]Item, error)
	// ProcessItem processes a single item, retrieving all required
	// information from storage and queueing the resulting bookkeeping
	// updates into the batch applied to target storage.
	ProcessItem(ctx context.Context, batch *storage.QueryBatch, item Item) error
	// QueueLength returns the number of total items in the work queue.
	// This is currently used for observability metrics.
	QueueLength(ctx context.Context) (int, error)
}

// NewWorker returns a new item based worker using the provided item
// processor.
//
// If stopIfQueueEmptyFor is a non-zero duration, the worker will process
// batches of items until its work queue is empty for
// `stopIfQueueEmptyFor`, at which point it will terminate and return.
// Likely to be used in tests.
//
// If fixedInterval is provided, the worker will process one batch every
// fixedInterval. By default, the worker will use a backoff mechanism
// that will attempt to run as fast as possible until encountering an
// error.
func NewWorker[Item any](
	name string,
	cfg config.ItemBasedWorkerConfig,
	processor ItemProcessor[Item],
	target storage.TargetStorage,
	logger *log.Logger,
) (worker.Worker, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	w := &itemBasedWorker[Item]{
		maxBatchSize:        cfg.BatchSize,
		stopIfQueueEmptyFor: cfg.StopIfQueueEmptyFor,
		fixedInterval:       cfg.Interval,
		interItemDelay:      cfg.InterItemDelay,
		workerName:          name,
		processor:           processor,
		target:              target,
		logger:              logger,
		metrics:             metrics.NewDefaultWorkerMetrics(name),
	}

	return w, nil
}

// sendQueueLengthMetric reports the current number of items in the work
// queue to Prometheus.
func (w *itemBasedWorker[Item]) sendQueueLengthMetric(ctx context.Context) (int, error) {
	queueLength, err := w.processor.QueueLength(ctx)
	if err != nil {
		w.logger.Warn("error fetching queue length", "err", err)
		return 0, err
	}
	w.metrics.QueueLength(w.workerName).Set(float64(queueLength))
	return queueLength, nil
}

// processBatch fetches the next batch of work items, processes them in
// parallel, and commits the resulting bookkeeping to the database. If
// the worker fails to process one or more items in a batch, the other
// items' updates are still applied.
func (w *itemBasedWorker[Item]) processBatch(ctx context.Context) (int, error) {
	items, err := w.processor.GetItems(ctx, w.maxBatchSize)
	if err != nil {
		return 0, fmt.Errorf("error fetching work items: %w", err)
	}
	w.logger.Info("processing", "num_items", len(items))
	if len(items) == 0 {
		return 0, nil
	}

	// Process the items in parallel. Each item is processed by at most
	// one in-flight evaluation at a time; distinct items share no
	// mutable state.
	batchCtx, batchCancel := context.WithCancel(ctx)
	defer batchCancel()
	var wg sync.WaitGroup
	batches := make([]*storage.QueryBatch, len(items))
	errs := make([]error, len(items))

	for i, it := range items {
		wg.Add(1)
		go func(idx int, item Item) {
			defer wg.Done()
			batches[idx] = &storage.QueryBatch{} // initialize here to avoid nil entries.
			batch := storage.QueryBatch{}
			if err := w.processor.ProcessItem(batchCtx, &batch, item); err != nil {
				w.logger.Error("failed to process item", "item", item, "err", err)
				errs[idx] = err
				return
			}
			batches[idx] = &batch
		}(i, it)
		time.Sleep(w.interItemDelay)
	}

	batchDone := util.ClosingChannel(&wg)
	select {
	case <-time.After(processBatchTimeout):
		w.logger.Warn("timed out waiting for batch items to process")
		// note: we do not return here because we do not want to block
		// successfully processed items from being committed. However,
		// the per-item batches must not be read until every item
		// goroutine has unwound past its writes, so join on them once
		// more after the cancellation.
		batchCancel()
		select {
		case <-time.After(processBatchTimeout):
			return 0, fmt.Errorf("batch items did not unwind within %s of cancellation", processBatchTimeout)
		case <-batchDone:
		}
	case <-batchDone:
	}

	// Commit the bookkeeping from all successfully processed items.
	batch := &storage.QueryBatch{}
	for _, b := range batches {
		batch.Extend(b)
	}
	if err := w.target.SendBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("sending batch: %w", err)
	}

	numErrs, firstErr := processErrors(errs)

	return len(items) - numErrs, firstErr
}

// Helper function that counts the number of errors and returns the
// first one if any.
func processErrors(errs []error) (int, error) {
	count := 0
	var firstErr error
	for _, e := range errs {
		if e != nil {
			count++
			if firstErr == nil {
				firstErr = e
			}
		}
	}

	return count, firstErr
}

// Start starts the item based worker.
func (w *itemBasedWorker[Item]) Start(ctx context.Context) {
	backoff, err := util.NewBackoff(
		100*time.Millisecond,
		// Cap the timeout at the channel tick cadence.
		6*time.Second,
	)
	if err != nil {
		w.logger.Error("error configuring backoff policy",
			"err", err.Error(),
		)
		return
	}
	mostRecentTask := time.Now()

	for firstIter := true; ; firstIter = false {
		delay := backoff.Timeout()
		if w.fixedInterval != 0 {
			delay = w.fixedInterval
		}
		if firstIter {
			delay = 0 // Don't sleep before first iteration.
		}
		select {
		case <-time.After(delay):
			// Process another batch of items.
		case <-ctx.Done():
			w.logger.Warn("shutting down item worker", "reason", ctx.Err())
			return
		}

		queueLength, err := w.sendQueueLengthMetric(ctx)
		// Stop if queue has been empty for a while, and configured to do so.
		if err == nil && queueLength == 0 && w.stopIfQueueEmptyFor != 0 && time.Since(mostRecentTask) > w.stopIfQueueEmptyFor {
			w.logger.Warn("item worker work queue has been empty for a while; shutting down",
				"queue_empty_since", mostRecentTask,
				"queue_empty_for", time.Since(mostRecentTask),
				"stop_if_queue_empty_for", w.stopIfQueueEmptyFor)
			return
		}
		w.logger.Info("work queue length", "num_items", queueLength)

		numProcessed, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Error("error processing batch", "err", err)
			backoff.Failure()
			continue
		}
		if numProcessed == 0 {
			// Count this as a failure to reduce the polling when no
			// channel has new proposals to evaluate.
			backoff.Failure()
			continue
		}
		mostRecentTask = time.Now()

		backoff.Success()
	}
}

func (w *itemBasedWorker[Item]) Name() string {
	return w.workerName
}
