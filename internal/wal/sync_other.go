//go:build !linux

package wal

import "os"

// forceFile blocks until previously written bytes are durable. Platforms
// without fdatasync fall back to a full fsync regardless of the metadata
// flag.
func forceFile(f *os.File, metadata bool) error {
	return f.Sync()
}
