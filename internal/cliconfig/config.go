// Package cliconfig holds configuration handling for the durlog CLI.
// Precedence is flags > environment (DURLOG_*) > TOML config file > defaults;
// flag precedence is enforced with the set of explicitly changed flags.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/loglabs/durlog/internal/wal"
)

// Config holds CLI configuration for durlog commands.
type Config struct {
	// StateDir is where long-running commands persist resume state.
	StateDir string

	// PollInterval is the follow fallback scan interval.
	PollInterval time.Duration

	// ShowPayload makes dump print payload bytes, not just sizes.
	ShowPayload bool

	// Writer options, used by the bench command.
	MaxBatchBytes  int
	MaxBatchWait   time.Duration
	MaxQueueSize   int
	MaxRecordBytes int
	SyncMetadata   bool

	// Bench workload shape.
	BenchProducers    int
	BenchWrites       int
	BenchPayloadBytes int

	Verbose bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	wcfg := wal.DefaultConfig()
	return Config{
		StateDir:          "", // derived during Validate
		PollInterval:      500 * time.Millisecond,
		MaxBatchBytes:     wcfg.MaxBatchSizeBytes,
		MaxBatchWait:      wcfg.MaxBatchWait,
		MaxQueueSize:      wcfg.MaxQueueSize,
		MaxRecordBytes:    wcfg.MaxRecordSizeBytes,
		SyncMetadata:      wcfg.SyncMetadata,
		BenchProducers:    8,
		BenchWrites:       1000,
		BenchPayloadBytes: 128,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(h, ".durlog")
		} else {
			c.StateDir = "."
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.BenchProducers <= 0 || c.BenchWrites <= 0 || c.BenchPayloadBytes < 0 {
		return fmt.Errorf("bench options must be positive")
	}
	wcfg := c.writerConfigNoLogger()
	return wcfg.Validate()
}

// WriterConfig converts the CLI options into a writer configuration.
func (c *Config) WriterConfig() wal.Config {
	return c.writerConfigNoLogger()
}

func (c *Config) writerConfigNoLogger() wal.Config {
	return wal.Config{
		MaxBatchSizeBytes:  c.MaxBatchBytes,
		MaxBatchWait:       c.MaxBatchWait,
		MaxQueueSize:       c.MaxQueueSize,
		MaxRecordSizeBytes: c.MaxRecordBytes,
		SyncMetadata:       c.SyncMetadata,
	}
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
