// Package wal implements a single-node, append-only durable log.
//
// Many goroutines push byte records concurrently; each push returns only
// once its record is physically on disk. One background goroutine collects
// pending requests into batches (flushing on a size or time trigger) and
// forces each batch to stable storage with a single sync, so the cost of the
// sync is amortized across every record in the batch. Records pushed through
// the same producer handle keep their submission order in the file.
//
// Recover scans a file left by a crashed writer, validates per-record
// checksums, and truncates the torn tail back to the last durable record.
// ReadAll returns every valid record without modifying the file.
package wal
