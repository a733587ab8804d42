// Command durlog is the operational tool for durlog files: crash recovery,
// inspection, tailing, and a write benchmark.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/loglabs/durlog/internal/cliconfig"
	"github.com/loglabs/durlog/internal/follow"
	"github.com/loglabs/durlog/internal/wal"
	"github.com/loglabs/durlog/pkg/log"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var logger log.Logger = log.NewNoopLogger()

	root := &cobra.Command{
		Use:           "durlog",
		Short:         "Durable append-only log tooling: recover, inspect, tail, benchmark",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Build set of changed flags so file/env values never override
			// anything given explicitly on the command line.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			cmd.InheritedFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level := zerolog.InfoLevel
			if cfg.Verbose {
				level = zerolog.DebugLevel
			}
			zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				Level(level).With().Timestamp().Logger()
			logger = log.NewZerologAdapterWithLogger(zl)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default ~/.durlog/config.toml)")
	pf.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for resume state")
	pf.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging")

	root.AddCommand(
		newRecoverCmd(&cfg, &logger),
		newVerifyCmd(&cfg, &logger),
		newDumpCmd(&cfg),
		newFollowCmd(&cfg, &logger),
		newBenchCmd(&cfg, &logger),
	)
	return root
}

func newRecoverCmd(cfg *cliconfig.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <file>",
		Short: "Validate a log file and truncate any crash-torn tail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := wal.Recover(args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("recover %s: %s", args[0], res.Message)
			}
			(*logger).Info("recovery complete",
				log.String("file", args[0]),
				log.Int("valid_records", res.ValidRecords),
				log.Int("corrupt_records", res.CorruptRecords),
				log.Int64("bytes_truncated", res.BytesTruncated),
				log.String("message", res.Message))
			return nil
		},
	}
}

func newVerifyCmd(cfg *cliconfig.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Scan a log file and report its state without modifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := wal.Verify(args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("verify %s: %s", args[0], res.Message)
			}
			(*logger).Info("verify complete",
				log.String("file", args[0]),
				log.Int("valid_records", res.ValidRecords),
				log.Int("corrupt_records", res.CorruptRecords),
				log.Int64("trailing_bytes", res.BytesTruncated),
				log.String("message", res.Message))
			if res.BytesTruncated > 0 {
				return fmt.Errorf("verify %s: %s", args[0], res.Message)
			}
			return nil
		},
	}
}

func newDumpCmd(cfg *cliconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every valid record in a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			records, err := wal.ReadAll(args[0])
			if err != nil {
				return err
			}
			for i, rec := range records {
				if cfg.ShowPayload {
					fmt.Fprintf(c.OutOrStdout(), "%d\tproducer=%d\t%q\n", i, rec.ProducerID, rec.Payload)
				} else {
					fmt.Fprintf(c.OutOrStdout(), "%d\tproducer=%d\tsize=%d\n", i, rec.ProducerID, len(rec.Payload))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cfg.ShowPayload, "show-payload", cfg.ShowPayload, "print payload bytes, not just sizes")
	return cmd
}

func newFollowCmd(cfg *cliconfig.Config, logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow <file>",
		Short: "Tail a log file, printing newly appended valid records",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			f, err := follow.New(follow.Config{
				Path:         args[0],
				StateDir:     cfg.StateDir,
				PollInterval: cfg.PollInterval,
				Logger:       *logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = f.Run(ctx, func(rec wal.Record) error {
				if cfg.ShowPayload {
					fmt.Fprintf(c.OutOrStdout(), "producer=%d\t%q\n", rec.ProducerID, rec.Payload)
				} else {
					fmt.Fprintf(c.OutOrStdout(), "producer=%d\tsize=%d\n", rec.ProducerID, len(rec.Payload))
				}
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "fallback scan interval")
	cmd.Flags().BoolVar(&cfg.ShowPayload, "show-payload", cfg.ShowPayload, "print payload bytes, not just sizes")
	return cmd
}

func newBenchCmd(cfg *cliconfig.Config, logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <file>",
		Short: "Run a concurrent write benchmark against a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			wcfg := cfg.WriterConfig()
			wcfg.Logger = *logger
			w, err := wal.Open(args[0], wcfg)
			if err != nil {
				return err
			}

			payload := make([]byte, cfg.BenchPayloadBytes)
			if _, err := rand.Read(payload); err != nil {
				w.Close()
				return err
			}

			start := time.Now()
			var g errgroup.Group
			for i := 0; i < cfg.BenchProducers; i++ {
				p := w.NewProducer()
				g.Go(func() error {
					for j := 0; j < cfg.BenchWrites; j++ {
						if err := p.Push(c.Context(), payload); err != nil {
							return err
						}
					}
					return nil
				})
			}
			pushErr := g.Wait()
			elapsed := time.Since(start)

			closeErr := w.Close()
			st := w.Stats()
			(*logger).Info("bench complete",
				log.Int("producers", cfg.BenchProducers),
				log.Int("writes_per_producer", cfg.BenchWrites),
				log.Int64("total_writes", st.TotalWrites),
				log.Int64("total_bytes", st.TotalBytes),
				log.Int64("total_flushes", st.TotalFlushes),
				log.Float64("writes_per_flush", st.WritesPerFlush()),
				log.Duration("elapsed", elapsed),
				log.Float64("writes_per_sec", float64(st.TotalWrites)/elapsed.Seconds()))
			if pushErr != nil {
				return pushErr
			}
			return closeErr
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&cfg.BenchProducers, "producers", cfg.BenchProducers, "concurrent producers")
	fl.IntVar(&cfg.BenchWrites, "writes", cfg.BenchWrites, "writes per producer")
	fl.IntVar(&cfg.BenchPayloadBytes, "payload-bytes", cfg.BenchPayloadBytes, "payload size per record")
	fl.IntVar(&cfg.MaxBatchBytes, "max-batch-bytes", cfg.MaxBatchBytes, "batch size flush trigger")
	fl.DurationVar(&cfg.MaxBatchWait, "max-batch-wait", cfg.MaxBatchWait, "batch time flush trigger")
	fl.IntVar(&cfg.MaxQueueSize, "max-queue-size", cfg.MaxQueueSize, "admission limit on unflushed records")
	fl.IntVar(&cfg.MaxRecordBytes, "max-record-bytes", cfg.MaxRecordBytes, "per-record payload cap")
	fl.BoolVar(&cfg.SyncMetadata, "sync-metadata", cfg.SyncMetadata, "fsync metadata as well as data")
	return cmd
}
