// Package durlog provides a single-node, append-only durable log writer
// with group commit and crash recovery.
//
// Example usage:
//
//	w, err := durlog.Open("/var/data/events.dlog", durlog.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	p := w.NewProducer()
//	if err := p.Push(ctx, []byte("payload")); err != nil {
//	    log.Fatal(err)
//	}
//
// After a crash, truncate the torn tail before reopening:
//
//	res, err := durlog.Recover("/var/data/events.dlog")
package durlog

import (
	"github.com/loglabs/durlog/internal/wal"
)

// Config holds the writer options. Use DefaultConfig() for sensible
// defaults.
type Config = wal.Config

// Writer is a thread-safe durable log writer; every Push blocks until its
// record is physically on disk.
type Writer = wal.Writer

// Producer is a per-producer handle; records pushed through the same handle
// keep their submission order in the file.
type Producer = wal.Producer

// Stats are a writer's cumulative counters.
type Stats = wal.Stats

// RecoveryResult describes the outcome of one Recover or Verify call.
type RecoveryResult = wal.RecoveryResult

// Record is one valid record read back from a log file.
type Record = wal.Record

// StatsCollector exposes writer counters as Prometheus metrics.
type StatsCollector = wal.StatsCollector

// Errors returned by the writer; check with errors.Is.
var (
	ErrClosed          = wal.ErrClosed
	ErrNilPayload      = wal.ErrNilPayload
	ErrRecordTooLarge  = wal.ErrRecordTooLarge
	ErrInvalidConfig   = wal.ErrInvalidConfig
	ErrShutdownTimeout = wal.ErrShutdownTimeout
)

// Open opens or creates the log file at path and starts the flush goroutine.
func Open(path string, cfg Config) (*Writer, error) {
	return wal.Open(path, cfg)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return wal.DefaultConfig()
}

// Recover validates the log file at path and truncates any crash-torn tail.
// It must not run concurrently with an active writer on the same file.
func Recover(path string) (RecoveryResult, error) {
	return wal.Recover(path)
}

// Verify runs the recovery scan without modifying the file.
func Verify(path string) (RecoveryResult, error) {
	return wal.Verify(path)
}

// ReadAll returns every valid record in file order, stopping at the first
// invalid one.
func ReadAll(path string) ([]Record, error) {
	return wal.ReadAll(path)
}

// NewStatsCollector creates a Prometheus collector over the given writer.
func NewStatsCollector(w *Writer) *StatsCollector {
	return wal.NewStatsCollector(w)
}
