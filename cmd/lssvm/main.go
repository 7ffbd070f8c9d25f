package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mathewwhere/lssvm/internal/config"
	"github.com/mathewwhere/lssvm/internal/sim"
	"github.com/mathewwhere/lssvm/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "lssvm",
		Short:        "NFT AMM pricing and settlement engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a trade scenario and record settled swaps",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario JSON path")
	simulateCmd.Flags().String("out", "./data/trades.jsonl", "output JSONL path")
	simulateCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	simulateCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	simulateCmd.Flags().Int("batch-size", 100, "trades per storage batch")
	simulateCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate trade records into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input trade records JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against a bonding curve",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("curve", "linear", "curve name (linear, exponential)")
	quoteCmd.Flags().String("side", "buy", "trade side (buy, sell)")
	quoteCmd.Flags().String("spot", "", "current spot price")
	quoteCmd.Flags().String("delta", "", "curve delta")
	quoteCmd.Flags().Uint64("quantity", 1, "number of NFTs")
	quoteCmd.Flags().Uint64("trade-fee-bps", 0, "pool trade fee in basis points")
	quoteCmd.Flags().Uint64("protocol-fee-bps", 0, "protocol fee in basis points")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := sim.NewRunner(sim.RunConfig{
		ScenarioPath:      cfg.Scenario,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, storageSink, logger)

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("out", cfg.Out),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
