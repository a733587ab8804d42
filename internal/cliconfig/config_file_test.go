package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
state_dir = "/var/lib/durlog"
poll_interval = "250ms"
max_batch_bytes = 2097152
max_batch_wait = "10ms"
max_queue_size = 5000
sync_metadata = true
bench_producers = 4
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if fc.StateDir != "/var/lib/durlog" {
		t.Fatalf("state_dir = %q", fc.StateDir)
	}
	if fc.PollInterval != "250ms" {
		t.Fatalf("poll_interval = %q", fc.PollInterval)
	}
	if fc.MaxBatchBytes != 2097152 {
		t.Fatalf("max_batch_bytes = %d", fc.MaxBatchBytes)
	}
	if fc.SyncMetadata == nil || !*fc.SyncMetadata {
		t.Fatal("sync_metadata should be true")
	}
	if fc.BenchProducers != 4 {
		t.Fatalf("bench_producers = %d", fc.BenchProducers)
	}
}

func TestLoadFileConfigInvalidTOML(t *testing.T) {
	path := writeConfigFile(t, `state_dir = [broken`)
	if _, err := LoadFileConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := DefaultConfig()
	syncMeta := true
	fc := FileConfig{
		StateDir:      "/from/file",
		PollInterval:  "100ms",
		MaxBatchBytes: 2048,
		MaxBatchWait:  "20ms",
		SyncMetadata:  &syncMeta,
	}

	if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.StateDir != "/from/file" {
		t.Fatalf("state dir = %q", cfg.StateDir)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.MaxBatchBytes != 2048 {
		t.Fatalf("max batch bytes = %d", cfg.MaxBatchBytes)
	}
	if cfg.MaxBatchWait != 20*time.Millisecond {
		t.Fatalf("max batch wait = %v", cfg.MaxBatchWait)
	}
	if !cfg.SyncMetadata {
		t.Fatal("sync metadata should be true")
	}
}

func TestApplyFileConfigRespectsChangedFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StateDir = "/from/flag"
	cfg.MaxBatchBytes = 999

	fc := FileConfig{StateDir: "/from/file", MaxBatchBytes: 2048}
	changed := map[string]bool{"state-dir": true, "max-batch-bytes": true}

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.StateDir != "/from/flag" {
		t.Fatalf("flag value overridden: %q", cfg.StateDir)
	}
	if cfg.MaxBatchBytes != 999 {
		t.Fatalf("flag value overridden: %d", cfg.MaxBatchBytes)
	}
}

func TestApplyFileConfigBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{PollInterval: "not-a-duration"}
	if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestApplyFileConfigEmptyIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	want := cfg
	if err := ApplyFileConfig(&cfg, FileConfig{}, map[string]bool{}); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg != want {
		t.Fatalf("empty file config changed values: %+v != %+v", cfg, want)
	}
}
