package durlog_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loglabs/durlog"
)

func TestWriteRecoverReadCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.dlog")
	cfg := durlog.DefaultConfig()
	cfg.MaxBatchWait = time.Millisecond

	w, err := durlog.Open(path, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	p := w.NewProducer()
	for _, payload := range []string{"created", "updated", "deleted"} {
		if err := p.Push(ctx, []byte(payload)); err != nil {
			t.Fatalf("Push %q: %v", payload, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a torn write at the tail, then recover.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write(bytes.Repeat([]byte{0x7F}, 11)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	res, err := durlog.Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !res.Success || res.ValidRecords != 3 || res.BytesTruncated != 11 {
		t.Fatalf("unexpected recovery result: %+v", res)
	}

	records, err := durlog.ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"created", "updated", "deleted"} {
		if string(records[i].Payload) != want {
			t.Fatalf("record %d: expected %q, got %q", i, want, records[i].Payload)
		}
	}
	if records[0].ProducerID != p.ID() {
		t.Fatalf("expected producer %d, got %d", p.ID(), records[0].ProducerID)
	}

	// The recovered file accepts appends again.
	w, err = durlog.Open(path, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w.Push(ctx, []byte("after-recovery")); err != nil {
		t.Fatalf("Push after recovery: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ver, err := durlog.Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ver.Success || ver.ValidRecords != 4 || ver.BytesTruncated != 0 {
		t.Fatalf("unexpected verify result: %+v", ver)
	}
}

func TestErrorsAreExposed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.dlog")
	w, err := durlog.Open(path, durlog.DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := w.Push(context.Background(), nil); !errors.Is(err, durlog.ErrNilPayload) {
		t.Fatalf("expected ErrNilPayload, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Push(context.Background(), []byte("x")); !errors.Is(err, durlog.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
