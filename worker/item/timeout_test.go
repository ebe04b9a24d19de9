package item

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/metrics"
	"github.com/cryptotheoryum/adex-validator/storage"
)

// stragglerProcessor completes item 1 immediately and blocks all other
// items until the batch is cancelled.
type stragglerProcessor struct{}

var _ ItemProcessor[int] = (*stragglerProcessor)(nil)

func (p *stragglerProcessor) GetItems(ctx context.Context, limit uint64) ([]int, error) {
	return []int{1, 2}, nil
}

func (p *stragglerProcessor) ProcessItem(ctx context.Context, batch *storage.QueryBatch, item int) error {
	if item == 1 {
		batch.Queue("UPDATE done", item)
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *stragglerProcessor) QueueLength(ctx context.Context) (int, error) {
	return 2, nil
}

// recordingTarget records committed batches.
type recordingTarget struct {
	batches []*storage.QueryBatch
}

var _ storage.TargetStorage = (*recordingTarget)(nil)

func (t *recordingTarget) SendBatch(ctx context.Context, batch *storage.QueryBatch) error {
	t.batches = append(t.batches, batch)
	return nil
}

func (t *recordingTarget) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *recordingTarget) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

func (t *recordingTarget) Wipe(ctx context.Context) error { return nil }
func (t *recordingTarget) Shutdown()                      {}
func (t *recordingTarget) Name() string                   { return "recording" }

// A batch that times out waits for the cancelled stragglers to unwind
// before reading their per-item batches, and still commits the
// bookkeeping of the items that finished in time.
func TestProcessBatchJoinsStragglersAfterTimeout(t *testing.T) {
	oldTimeout := processBatchTimeout
	processBatchTimeout = 50 * time.Millisecond
	defer func() { processBatchTimeout = oldTimeout }()

	target := &recordingTarget{}
	w := &itemBasedWorker[int]{
		maxBatchSize: 10,
		workerName:   "straggler-test",
		processor:    &stragglerProcessor{},
		target:       target,
		logger:       log.NewDefaultLogger("straggler-test"),
		metrics:      metrics.NewDefaultWorkerMetrics("straggler-test"),
	}

	numProcessed, err := w.processBatch(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, numProcessed)

	require.Len(t, target.batches, 1)
	committed := target.batches[0]
	require.Equal(t, 1, committed.Length())
	require.Equal(t, "UPDATE done", committed.Queries()[0].Cmd)
}
