//go:build linux

package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// forceFile blocks until previously written bytes are durable. With metadata
// set it also forces file metadata (size, mtime) via fsync; otherwise it
// uses fdatasync, which skips metadata-only updates.
func forceFile(f *os.File, metadata bool) error {
	if metadata {
		return f.Sync()
	}
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err != unix.EINTR {
			return err
		}
	}
}
