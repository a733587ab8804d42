// Package follow provides a read-only tailer for durlog files.
//
// A Follower emits newly appended valid records, resuming from a persisted
// offset across restarts. It is driven by fsnotify change events with a
// poll-interval fallback, stops quietly at the first invalid frame (a write
// in progress looks exactly like a torn tail), and waits for more bytes. It
// never modifies the file and is meant to run as a separate process from
// the writer.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loglabs/durlog/internal/wal"
	"github.com/loglabs/durlog/pkg/log"
)

// Config holds follower options.
type Config struct {
	// Path is the log file to follow.
	Path string

	// StateDir is where the resume offset is persisted. Empty disables
	// persistence; the follower then starts from the beginning.
	StateDir string

	// PollInterval bounds how long the follower waits between scans when no
	// change events arrive. Defaults to 500ms.
	PollInterval time.Duration

	// Logger receives operational events. Defaults to a no-op logger.
	Logger log.Logger
}

// Follower tails one durlog file.
type Follower struct {
	cfg    Config
	logger log.Logger
	offset int64
}

// New creates a follower. The resume offset is loaded from StateDir when
// present and sanity-checked against the current file size.
func New(cfg Config) (*Follower, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("follow: path is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	f := &Follower{cfg: cfg, logger: logger, offset: wal.FileHeaderSize}
	if cfg.StateDir != "" {
		if st, err := loadState(cfg.StateDir); err == nil && st.Path == cfg.Path && st.Offset >= wal.FileHeaderSize {
			f.offset = st.Offset
		}
	}
	return f, nil
}

// Offset returns the offset the next scan will resume from.
func (f *Follower) Offset() int64 { return f.offset }

// Run follows the file until the context is cancelled, calling emit for each
// newly appended valid record. emit returning an error stops the follower
// with that error.
func (f *Follower) Run(ctx context.Context, emit func(wal.Record) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("follow: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: the file may not exist yet, and
	// rename-style updates would drop a file-level watch.
	if err := watcher.Add(filepath.Dir(f.cfg.Path)); err != nil {
		f.logger.Warn("watch directory failed, falling back to polling",
			log.String("dir", filepath.Dir(f.cfg.Path)),
			log.Err(err))
	}

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := f.scanOnce(emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.cfg.Path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("watcher error", log.Err(werr))
		case <-ticker.C:
		}
	}
}

// scanOnce reads any records appended since the last scan and advances the
// persisted offset past them.
func (f *Follower) scanOnce(emit func(wal.Record) error) error {
	file, err := os.Open(f.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("follow: open %s: %w", f.cfg.Path, err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return fmt.Errorf("follow: stat %s: %w", f.cfg.Path, err)
	}
	if st.Size() < wal.FileHeaderSize {
		return nil
	}
	if f.offset == wal.FileHeaderSize {
		// First contact with this file: make sure it is actually a durlog
		// file before emitting anything from it.
		hdr := make([]byte, wal.FileHeaderSize)
		if _, err := io.ReadFull(file, hdr); err != nil {
			return fmt.Errorf("follow: read file header: %w", err)
		}
		if err := wal.CheckFileHeader(hdr); err != nil {
			return fmt.Errorf("follow: %s: %w", f.cfg.Path, err)
		}
	}
	if f.offset > st.Size() {
		// The file was recovered (truncated) behind our back. Restart from
		// the header rather than emitting from the middle of a frame.
		f.logger.Warn("file shrank, restarting from header",
			log.Int64("offset", f.offset),
			log.Int64("size", st.Size()))
		f.offset = wal.FileHeaderSize
	}

	next, err := wal.ScanFrom(file, f.offset, emit)
	if err != nil {
		return err
	}
	if next == f.offset {
		return nil
	}
	f.offset = next

	if f.cfg.StateDir != "" {
		if err := saveState(f.cfg.StateDir, state{Path: f.cfg.Path, Offset: next, UpdatedAt: time.Now()}); err != nil {
			f.logger.Warn("persist follow state failed", log.Err(err))
		}
	}
	f.logger.Debug("advanced", log.Int64("offset", next))
	return nil
}
