// Package worker defines the interface implemented by the node's
// background workers.
package worker

import (
	"context"
)

// Worker is a long-running background task of the validator node.
type Worker interface {
	// Start starts the worker. It blocks until the context is canceled
	// or the worker decides to terminate.
	Start(ctx context.Context)

	// Name returns the name of the worker.
	Name() string
}
