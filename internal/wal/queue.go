package wal

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// intakeQueue decouples producer goroutines from the single flush goroutine.
// Admission is gated by a counting semaphore sized to the queue capacity; a
// permit is returned only after the corresponding request's batch is durable,
// so admission reflects true outstanding unflushed work, not queue depth.
type intakeQueue struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	pending []*writeRequest
	closed  bool

	// notify wakes the flush goroutine; capacity 1 so repeated signals
	// coalesce while it is busy.
	notify chan struct{}
}

func newIntakeQueue(capacity int) *intakeQueue {
	return &intakeQueue{
		sem:    semaphore.NewWeighted(int64(capacity)),
		notify: make(chan struct{}, 1),
	}
}

// submit blocks until the request is admitted, then enqueues it and signals
// the flush goroutine. Returns the context error if admission is interrupted,
// or ErrClosed if the queue stopped admitting while waiting for a permit.
func (q *intakeQueue) submit(ctx context.Context, req *writeRequest) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("durlog: waiting for queue capacity: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.sem.Release(1)
		return ErrClosed
	}
	q.pending = append(q.pending, req)
	q.mu.Unlock()
	q.notifyWork()
	return nil
}

// notifyWork wakes at most one waiter on workSignal.
func (q *intakeQueue) notifyWork() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// workSignal returns the channel the flush goroutine blocks on while the
// queue is empty.
func (q *intakeQueue) workSignal() <-chan struct{} {
	return q.notify
}

// drainAvailable moves currently queued requests into batch without blocking,
// stopping once accumulated frame bytes reach maxBytes. Returns the extended
// batch and the updated byte count.
func (q *intakeQueue) drainAvailable(batch []*writeRequest, haveBytes, maxBytes int) ([]*writeRequest, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 {
		req := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		batch = append(batch, req)
		haveBytes += req.frameBytes()
		if haveBytes >= maxBytes {
			break
		}
	}
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return batch, haveBytes
}

// empty reports whether no requests are queued.
func (q *intakeQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

// closeIntake stops admitting new requests. Requests already queued remain
// and are drained by the flush goroutine during shutdown.
func (q *intakeQueue) closeIntake() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// release returns n admission permits after the corresponding requests have
// been durably written (or their failure has been observed at close).
func (q *intakeQueue) release(n int) {
	if n > 0 {
		q.sem.Release(int64(n))
	}
}
