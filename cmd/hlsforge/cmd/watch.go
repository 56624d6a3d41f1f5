package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hlsforge/hlsforge/internal/database"
	"github.com/hlsforge/hlsforge/internal/observability"
	"github.com/hlsforge/hlsforge/internal/pipeline"
	"github.com/hlsforge/hlsforge/internal/progress"
	"github.com/hlsforge/hlsforge/internal/repository"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process the input directory on a schedule",
	Long: `Run batches on a cron schedule until interrupted. Each tick performs
the same work as a single run. A tick is skipped when the previous
batch is still in progress.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("cron", "", "cron schedule (overrides config)")
	watchCmd.Flags().String("input", "", "input directory (overrides config)")
	watchCmd.Flags().String("output", "", "output directory (overrides config)")
	watchCmd.Flags().String("work-dir", "", "intermediate work directory (overrides config)")
	watchCmd.Flags().String("profile", "", "processing profile name (overrides config)")
	watchCmd.Flags().String("profiles-file", "", "YAML file with profile definitions (overrides config)")
	watchCmd.Flags().Int("parallelism", 0, "number of concurrent encoding jobs (overrides profile)")
	watchCmd.Flags().Int("max-attempts", 0, "encode attempts per job (overrides profile)")
	watchCmd.Flags().Bool("no-rename", false, "disable automatic file renaming")
	watchCmd.Flags().Bool("no-organize", false, "disable output folder organization")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStorageFlags(cmd.Flags(), cfg)
	if cmd.Flags().Changed("cron") {
		cfg.Watch.Cron, _ = cmd.Flags().GetString("cron")
	}

	profileName, profile, err := resolveProfile(cmd.Flags(), cfg)
	if err != nil {
		return err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cfg.Watch.Cron)
	if err != nil {
		return fmt.Errorf("parsing cron schedule %q: %w", cfg.Watch.Cron, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	reporter := progress.NewReporter()
	go progress.LogSink(reporter.Subscribe(), observability.WithComponent(logger, "progress"))
	defer reporter.Close()

	runner, err := pipeline.New(cfg, profileName, profile, pipeline.Deps{
		Runs:     repository.NewRunRepository(db.DB),
		Jobs:     repository.NewJobRepository(db.DB),
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info("watching input directory",
		"input_dir", cfg.Storage.InputDir,
		"cron", cfg.Watch.Cron,
		"next_run", schedule.Next(time.Now()))

	var running sync.Mutex
	for {
		next := schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			// Wait for an in-flight batch to settle before exiting.
			running.Lock()
			logger.Info("watch stopped")
			return nil
		case <-timer.C:
		}

		if !running.TryLock() {
			logger.Warn("previous batch still running, skipping tick")
			continue
		}
		go func() {
			defer running.Unlock()
			tick(ctx, runner, logger)
		}()
	}
}

func tick(ctx context.Context, runner *pipeline.Runner, logger *slog.Logger) {
	summary, err := runner.Run(ctx)
	if err != nil {
		observability.WithError(logger, err).Error("batch failed")
		return
	}
	logger.Info("batch finished",
		"run_id", summary.Run.ID,
		"validated", summary.Run.Validated,
		"succeeded", summary.Run.Succeeded,
		"failed", summary.Run.Failed)
}
