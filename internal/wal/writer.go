package wal

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loglabs/durlog/pkg/log"
)

// closeTimeout bounds how long Close waits for the flush goroutine to drain
// queued requests and perform the final flush.
const closeTimeout = 10 * time.Second

// defaultProducerID is the producer identity used by Writer.Push. Handles
// from NewProducer start at 1 and never collide with it.
const defaultProducerID int64 = 0

// Config holds the recognized writer options.
type Config struct {
	// MaxBatchSizeBytes is the number of accumulated frame bytes that forces
	// a flush. Must be > 0.
	MaxBatchSizeBytes int

	// MaxBatchWait is the upper bound on how long a queued record waits
	// before its batch is flushed. Must be >= 0. Zero flushes every batch
	// as soon as the first record arrives.
	MaxBatchWait time.Duration

	// MaxQueueSize is the admission limit on outstanding unflushed requests.
	// Push blocks once this many records are in flight. Must be > 0.
	MaxQueueSize int

	// MaxRecordSizeBytes caps a single payload. Must be > 0.
	MaxRecordSizeBytes int

	// SyncMetadata forces file metadata as well as data on every flush
	// (fsync instead of fdatasync). Slower, but the file size itself is
	// durable immediately.
	SyncMetadata bool

	// Logger receives operational events. Defaults to a no-op logger.
	Logger log.Logger
}

// DefaultConfig returns a Config with defaults suitable for high-throughput
// group commit.
func DefaultConfig() Config {
	return Config{
		MaxBatchSizeBytes:  1 << 20, // 1 MiB
		MaxBatchWait:       5 * time.Millisecond,
		MaxQueueSize:       100000,
		MaxRecordSizeBytes: 16 << 20, // 16 MiB
		SyncMetadata:       false,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxBatchSizeBytes <= 0 {
		return fmt.Errorf("%w: max batch size must be positive", ErrInvalidConfig)
	}
	if c.MaxBatchWait < 0 {
		return fmt.Errorf("%w: max batch wait cannot be negative", ErrInvalidConfig)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("%w: max queue size must be positive", ErrInvalidConfig)
	}
	if c.MaxRecordSizeBytes <= 0 {
		return fmt.Errorf("%w: max record size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats are cumulative counters for one writer instance.
type Stats struct {
	// TotalWrites is the number of records durably committed.
	TotalWrites int64

	// TotalBytes is the number of frame bytes durably committed.
	TotalBytes int64

	// TotalFlushes is the number of force-to-storage operations performed.
	TotalFlushes int64
}

// WritesPerFlush returns the group-commit amortization ratio.
func (s Stats) WritesPerFlush() float64 {
	if s.TotalFlushes == 0 {
		return 0
	}
	return float64(s.TotalWrites) / float64(s.TotalFlushes)
}

// Writer is a thread-safe durable log writer. Any number of goroutines may
// call Push concurrently; each call returns only after the record is
// physically on disk. A single background goroutine owns the file handle and
// amortizes the force-to-storage cost across batches of records.
type Writer struct {
	path   string
	cfg    Config
	file   *os.File
	queue  *intakeQueue
	seqs   sequencer
	logger log.Logger

	producerIDs atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	shutdown  chan struct{}
	loopDone  chan struct{}

	// forceFile is the durability boundary; replaced in tests to inject
	// delayed or failing syncs.
	forceFile func(f *os.File, metadata bool) error

	// failedPermits counts admission permits held by batches that failed to
	// commit. They are returned at Close so backpressure keeps reflecting
	// the failed in-flight work until then.
	failedPermits atomic.Int64

	// drainErr records a commit failure observed after shutdown began, so
	// Close can surface it.
	drainMu  sync.Mutex
	drainErr error

	totalWrites  atomic.Int64
	totalBytes   atomic.Int64
	totalFlushes atomic.Int64
}

// Open opens or creates the log file at path and starts the flush goroutine.
// A new file gets the 32-byte header; an existing file has its header
// verified and is positioned at end-of-file for pure append.
func Open(path string, cfg Config) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("durlog: open %s: %w", path, err)
	}

	w := &Writer{
		path:      path,
		cfg:       cfg,
		file:      f,
		queue:     newIntakeQueue(cfg.MaxQueueSize),
		logger:    logger,
		shutdown:  make(chan struct{}),
		loopDone:  make(chan struct{}),
		forceFile: forceFile,
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("durlog: stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		hdr := encodeFileHeader(time.Now())
		if _, err := f.Write(hdr); err != nil {
			f.Close()
			return nil, fmt.Errorf("durlog: write file header: %w", err)
		}
		if err := forceFile(f, true); err != nil {
			f.Close()
			return nil, fmt.Errorf("durlog: force file header: %w", err)
		}
	} else {
		hdr := make([]byte, FileHeaderSize)
		if _, err := io.ReadFull(f, hdr); err != nil {
			f.Close()
			return nil, fmt.Errorf("durlog: read file header: %w", err)
		}
		if err := CheckFileHeader(hdr); err != nil {
			f.Close()
			return nil, fmt.Errorf("durlog: %s: %w", path, err)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("durlog: seek to end: %w", err)
		}
	}

	go w.syncLoop()

	logger.Info("writer opened",
		log.String("path", path),
		log.Int64("size", st.Size()),
		log.Int("max_batch_bytes", cfg.MaxBatchSizeBytes),
		log.Duration("max_batch_wait", cfg.MaxBatchWait))
	return w, nil
}

// Push appends payload to the log under the writer's shared producer
// identity and blocks until the record is durable, the context is done, or
// the write fails. Records pushed through handles from NewProducer keep
// per-handle submission order; see Producer.
func (w *Writer) Push(ctx context.Context, payload []byte) error {
	return w.push(ctx, defaultProducerID, payload)
}

func (w *Writer) push(ctx context.Context, producerID int64, payload []byte) error {
	if payload == nil {
		return ErrNilPayload
	}
	if len(payload) > w.cfg.MaxRecordSizeBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrRecordTooLarge, len(payload), w.cfg.MaxRecordSizeBytes)
	}
	if w.closed.Load() {
		return ErrClosed
	}

	req := newWriteRequest(payload, producerID, w.seqs.next(producerID))
	if err := w.queue.submit(ctx, req); err != nil {
		return err
	}
	return req.await(ctx)
}

// NewProducer returns a handle with its own producer identity. Records
// pushed through the same handle appear in the file in submission order.
func (w *Writer) NewProducer() *Producer {
	return &Producer{w: w, id: w.producerIDs.Add(1)}
}

// Producer is a per-producer handle onto a Writer.
type Producer struct {
	w  *Writer
	id int64
}

// ID returns the producer identity recorded with each pushed record.
func (p *Producer) ID() int64 { return p.id }

// Push appends payload under this producer's identity and blocks until the
// record is durable or failed.
func (p *Producer) Push(ctx context.Context, payload []byte) error {
	return p.w.push(ctx, p.id, payload)
}

// Stats returns a snapshot of the writer's cumulative counters.
func (w *Writer) Stats() Stats {
	return Stats{
		TotalWrites:  w.totalWrites.Load(),
		TotalBytes:   w.totalBytes.Load(),
		TotalFlushes: w.totalFlushes.Load(),
	}
}

// Path returns the log file path.
func (w *Writer) Path() string { return w.path }

// Close stops admitting new records, drains everything already queued,
// performs a final flush, and closes the file. It is idempotent; closing
// twice is a no-op. A commit failure during the final drain is returned.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		w.queue.closeIntake()
		close(w.shutdown)

		select {
		case <-w.loopDone:
		case <-time.After(closeTimeout):
			w.closeErr = ErrShutdownTimeout
			w.logger.Error("flush goroutine did not drain in time")
		}

		// Permits held by failed batches are only returned now, once every
		// caller has been able to observe the failure.
		if n := w.failedPermits.Swap(0); n > 0 {
			w.queue.release(int(n))
		}

		w.drainMu.Lock()
		if w.closeErr == nil {
			w.closeErr = w.drainErr
		}
		w.drainMu.Unlock()

		if err := w.file.Close(); err != nil && w.closeErr == nil {
			w.closeErr = err
		}

		st := w.Stats()
		w.logger.Info("writer closed",
			log.Int64("total_writes", st.TotalWrites),
			log.Int64("total_bytes", st.TotalBytes),
			log.Int64("total_flushes", st.TotalFlushes))
	})
	return w.closeErr
}

// syncLoop is the single flush goroutine. It collects batches, sorts them
// for per-producer ordering, appends them, forces them to storage, and
// resolves every waiter. It exits once shutdown is requested and the queue
// is fully drained.
func (w *Writer) syncLoop() {
	defer close(w.loopDone)

	var batch []*writeRequest
	buf := make([]byte, 0, w.cfg.MaxBatchSizeBytes+RecordHeaderSize)

	for {
		if !w.waitForFirstItem() {
			return
		}

		batch = batch[:0]
		batchBytes := w.collectBatch(&batch)
		if len(batch) == 0 {
			continue
		}

		sortBatch(batch)

		if err := w.writeBatch(batch, &buf); err != nil {
			for _, req := range batch {
				req.resolve(err)
			}
			w.failedPermits.Add(int64(len(batch)))
			w.noteDrainError(err)
			w.logger.Error("batch commit failed",
				log.Err(err),
				log.Int("batch_records", len(batch)))
			continue
		}

		w.queue.release(len(batch))
		w.totalWrites.Add(int64(len(batch)))
		w.totalBytes.Add(int64(batchBytes))
		w.totalFlushes.Add(1)
	}
}

func (w *Writer) noteDrainError(err error) {
	select {
	case <-w.shutdown:
		w.drainMu.Lock()
		if w.drainErr == nil {
			w.drainErr = err
		}
		w.drainMu.Unlock()
	default:
	}
}

// waitForFirstItem blocks until at least one request is queued or shutdown
// is requested. Returns false when the loop should exit.
func (w *Writer) waitForFirstItem() bool {
	for {
		if !w.queue.empty() {
			return true
		}
		select {
		case <-w.queue.workSignal():
		case <-w.shutdown:
			return !w.queue.empty()
		}
	}
}

// collectBatch accumulates requests until either the size trigger or the
// time trigger fires. The first request is waited for without a timeout; a
// batch is never flushed empty. During shutdown the remaining queue is
// drained and flushed immediately. Returns accumulated frame bytes.
func (w *Writer) collectBatch(batch *[]*writeRequest) int {
	deadline := time.Now().Add(w.cfg.MaxBatchWait)
	var batchBytes int

	for {
		*batch, batchBytes = w.queue.drainAvailable(*batch, batchBytes, w.cfg.MaxBatchSizeBytes)

		if len(*batch) > 0 {
			if batchBytes >= w.cfg.MaxBatchSizeBytes || !time.Now().Before(deadline) {
				return batchBytes
			}
		}

		if len(*batch) == 0 {
			// Nothing collected yet: wait indefinitely for the first item.
			select {
			case <-w.queue.workSignal():
			case <-w.shutdown:
				if w.queue.empty() {
					return batchBytes
				}
			}
			continue
		}

		// Have items and remaining capacity: wait for more, bounded by the
		// remaining time budget.
		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-w.queue.workSignal():
			timer.Stop()
		case <-timer.C:
			return batchBytes
		case <-w.shutdown:
			timer.Stop()
			// Flush what we have plus anything still queued, right away.
			*batch, batchBytes = w.queue.drainAvailable(*batch, batchBytes, w.cfg.MaxBatchSizeBytes)
			return batchBytes
		}
	}
}

// sortBatch orders requests by (producerID, seq). This is the single
// mechanism that guarantees same-producer ordering: producers are dequeued
// in arbitrary interleaved order, and the sort restores submission order
// within each producer before serialization.
func sortBatch(batch []*writeRequest) {
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].producerID != batch[j].producerID {
			return batch[i].producerID < batch[j].producerID
		}
		return batch[i].seq < batch[j].seq
	})
}

// writeBatch serializes the batch, appends it to the file, forces it to
// stable storage, and resolves every waiter as successful. Nothing is
// reported committed before the force returns.
func (w *Writer) writeBatch(batch []*writeRequest, buf *[]byte) error {
	b := (*buf)[:0]
	for _, req := range batch {
		b = appendRecord(b, req.producerID, req.payload)
	}
	*buf = b

	if _, err := w.file.Write(b); err != nil {
		return fmt.Errorf("durlog: append batch: %w", err)
	}
	if err := w.forceFile(w.file, w.cfg.SyncMetadata); err != nil {
		return fmt.Errorf("durlog: force batch: %w", err)
	}

	for _, req := range batch {
		req.resolve(nil)
	}
	return nil
}
