package wal

import (
	"context"
	"sync"
	"time"
)

// writeRequest is one pending record handed from a producer to the flush
// goroutine. The producer owns it until it is enqueued; after that it is
// shared read-only and mutated only by resolving its completion.
type writeRequest struct {
	payload    []byte
	producerID int64
	seq        int64
	enqueuedAt time.Time

	once sync.Once
	err  error
	done chan struct{}
}

func newWriteRequest(payload []byte, producerID, seq int64) *writeRequest {
	return &writeRequest{
		payload:    payload,
		producerID: producerID,
		seq:        seq,
		enqueuedAt: time.Now(),
		done:       make(chan struct{}),
	}
}

// frameBytes is the on-disk size of this request's record frame.
func (r *writeRequest) frameBytes() int {
	return RecordHeaderSize + len(r.payload)
}

// resolve completes the request exactly once. A nil err marks the record
// durable; a non-nil err is re-raised from await. Later calls are no-ops.
func (r *writeRequest) resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// await blocks until the request is resolved or the context is done.
// Any number of goroutines may wait on the same request.
func (r *writeRequest) await(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
