package wal

import "errors"

// Errors returned by the public API. All of them can be checked with
// errors.Is; I/O failures from the commit path are wrapped and carry the
// underlying cause.
var (
	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("durlog: writer is closed")

	// ErrNilPayload is returned by Push for a nil payload. An empty,
	// non-nil payload is a valid zero-length record.
	ErrNilPayload = errors.New("durlog: payload must not be nil")

	// ErrRecordTooLarge is returned when a payload exceeds MaxRecordSizeBytes.
	ErrRecordTooLarge = errors.New("durlog: payload exceeds max record size")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("durlog: invalid configuration")

	// ErrShutdownTimeout is returned by Close when the flush goroutine does
	// not drain within the join timeout.
	ErrShutdownTimeout = errors.New("durlog: shutdown timeout")
)
