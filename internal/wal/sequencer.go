package wal

import (
	"sync"
	"sync/atomic"
)

// sequencer hands out a strictly increasing sequence number per producer,
// starting at 0. Counters live only as long as the owning writer; ordering
// in the file is enforced by sorting before write, so the numbers do not
// need to survive restarts.
type sequencer struct {
	counters sync.Map // producerID int64 -> *atomic.Int64
}

// next returns the next sequence number for producerID. Safe for concurrent
// use, including concurrent first use of the same producer.
func (s *sequencer) next(producerID int64) int64 {
	c, ok := s.counters.Load(producerID)
	if !ok {
		c, _ = s.counters.LoadOrStore(producerID, new(atomic.Int64))
	}
	return c.(*atomic.Int64).Add(1) - 1
}
