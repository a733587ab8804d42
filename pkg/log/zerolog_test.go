package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapterRendersFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithLogger(zerolog.New(&buf))

	logger.Info("flush complete",
		String("path", "/var/data/events.dlog"),
		Int("batch_records", 3),
		Int64("total_bytes", 4096),
		Float64("writes_per_flush", 1.5),
		Duration("elapsed", 250*time.Millisecond),
		Err(errors.New("boom")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not one JSON line: %v (%q)", err, buf.String())
	}
	if entry["message"] != "flush complete" {
		t.Fatalf("message = %v", entry["message"])
	}
	if entry["path"] != "/var/data/events.dlog" {
		t.Fatalf("path = %v", entry["path"])
	}
	if entry["batch_records"] != float64(3) {
		t.Fatalf("batch_records = %v", entry["batch_records"])
	}
	if entry["total_bytes"] != float64(4096) {
		t.Fatalf("total_bytes = %v", entry["total_bytes"])
	}
	if entry["writes_per_flush"] != 1.5 {
		t.Fatalf("writes_per_flush = %v", entry["writes_per_flush"])
	}
	if entry["elapsed"] != float64(250) {
		t.Fatalf("elapsed = %v", entry["elapsed"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("error = %v", entry["error"])
	}
}

func TestZerologAdapterLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	if got := bytes.Count(buf.Bytes(), []byte("\n")); got != 2 {
		t.Fatalf("expected 2 log lines at warn level, got %d (%q)", got, buf.String())
	}
}
