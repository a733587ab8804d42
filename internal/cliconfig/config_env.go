package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DURLOG_*).
// It respects flags that have been explicitly set (changed map).
// Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", os.Getenv("DURLOG_STATE_DIR"), &cfg.StateDir)

	if err := s.setDuration("poll-interval", os.Getenv("DURLOG_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("max-batch-wait", os.Getenv("DURLOG_MAX_BATCH_WAIT"), &cfg.MaxBatchWait); err != nil {
		return err
	}

	if err := s.setIntFromString("max-batch-bytes", os.Getenv("DURLOG_MAX_BATCH_BYTES"), &cfg.MaxBatchBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("max-queue-size", os.Getenv("DURLOG_MAX_QUEUE_SIZE"), &cfg.MaxQueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-record-bytes", os.Getenv("DURLOG_MAX_RECORD_BYTES"), &cfg.MaxRecordBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("producers", os.Getenv("DURLOG_BENCH_PRODUCERS"), &cfg.BenchProducers); err != nil {
		return err
	}
	if err := s.setIntFromString("writes", os.Getenv("DURLOG_BENCH_WRITES"), &cfg.BenchWrites); err != nil {
		return err
	}
	if err := s.setIntFromString("payload-bytes", os.Getenv("DURLOG_BENCH_PAYLOAD_BYTES"), &cfg.BenchPayloadBytes); err != nil {
		return err
	}

	s.setBoolFromString("show-payload", os.Getenv("DURLOG_SHOW_PAYLOAD"), &cfg.ShowPayload)
	s.setBoolFromString("sync-metadata", os.Getenv("DURLOG_SYNC_METADATA"), &cfg.SyncMetadata)
	s.setBoolFromString("verbose", os.Getenv("DURLOG_VERBOSE"), &cfg.Verbose)

	return nil
}
