package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	StateDir          string `toml:"state_dir"`
	PollInterval      string `toml:"poll_interval"`
	ShowPayload       *bool  `toml:"show_payload"`
	MaxBatchBytes     int    `toml:"max_batch_bytes"`
	MaxBatchWait      string `toml:"max_batch_wait"`
	MaxQueueSize      int    `toml:"max_queue_size"`
	MaxRecordBytes    int    `toml:"max_record_bytes"`
	SyncMetadata      *bool  `toml:"sync_metadata"`
	BenchProducers    int    `toml:"bench_producers"`
	BenchWrites       int    `toml:"bench_writes"`
	BenchPayloadBytes int    `toml:"bench_payload_bytes"`
	Verbose           *bool  `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.durlog/config.toml if the user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".durlog", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setInt("max-batch-bytes", fc.MaxBatchBytes, &cfg.MaxBatchBytes)
	s.setInt("max-queue-size", fc.MaxQueueSize, &cfg.MaxQueueSize)
	s.setInt("max-record-bytes", fc.MaxRecordBytes, &cfg.MaxRecordBytes)
	s.setInt("producers", fc.BenchProducers, &cfg.BenchProducers)
	s.setInt("writes", fc.BenchWrites, &cfg.BenchWrites)
	s.setInt("payload-bytes", fc.BenchPayloadBytes, &cfg.BenchPayloadBytes)

	if err := s.setDuration("poll-interval", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("max-batch-wait", fc.MaxBatchWait, &cfg.MaxBatchWait); err != nil {
		return err
	}

	s.setBool("show-payload", fc.ShowPayload, &cfg.ShowPayload)
	s.setBool("sync-metadata", fc.SyncMetadata, &cfg.SyncMetadata)
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)

	return nil
}
