package batch

import (
	"context"
	"sync"
)

// Outcome is the per-operation result of a flushed batch.
type Outcome[T, R any] struct {
	Op     T
	Result R
	Err    error
}

// SubmitFunc submits every queued operation together. It returns one result
// and one error per operation, in order. A non-nil second return value means
// the whole submission failed and is applied to every operation.
type SubmitFunc[T, R any] func(ctx context.Context, ops []T) ([]R, []error, error)

// Batch collects operations and submits them in one round-trip.
type Batch[T, R any] struct {
	mu     sync.Mutex
	ops    []T
	submit SubmitFunc[T, R]
}

func New[T, R any](submit SubmitFunc[T, R]) *Batch[T, R] {
	return &Batch[T, R]{submit: submit}
}

// Add queues op for the next Flush.
func (b *Batch[T, R]) Add(op T) {
	b.mu.Lock()
	b.ops = append(b.ops, op)
	b.mu.Unlock()
}

func (b *Batch[T, R]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Flush submits the queued operations and empties the queue. Outcomes are
// reported individually; one failed operation does not fail the others.
func (b *Batch[T, R]) Flush(ctx context.Context) []Outcome[T, R] {
	b.mu.Lock()
	ops := b.ops
	b.ops = nil
	b.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	outcomes := make([]Outcome[T, R], len(ops))
	for i, op := range ops {
		outcomes[i].Op = op
	}

	results, errs, err := b.submit(ctx, ops)
	for i := range outcomes {
		switch {
		case err != nil:
			outcomes[i].Err = err
		case i < len(errs) && errs[i] != nil:
			outcomes[i].Err = errs[i]
		case i < len(results):
			outcomes[i].Result = results[i]
		default:
			outcomes[i].Err = ErrMissingResult
		}
	}
	return outcomes
}
