// Package pipeline wires intake, scheduling, packaging, and
// organization into a single batch run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/hlsforge/hlsforge/internal/config"
	"github.com/hlsforge/hlsforge/internal/ffmpeg"
	"github.com/hlsforge/hlsforge/internal/intake"
	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/organizer"
	"github.com/hlsforge/hlsforge/internal/packager"
	"github.com/hlsforge/hlsforge/internal/pattern"
	"github.com/hlsforge/hlsforge/internal/profiles"
	"github.com/hlsforge/hlsforge/internal/progress"
	"github.com/hlsforge/hlsforge/internal/repository"
	"github.com/hlsforge/hlsforge/internal/scheduler"
)

const dirPerm = 0o755

// Deps holds the collaborators a Runner uses. Zero-value fields are
// filled with production implementations; tests inject fakes.
type Deps struct {
	Encoder  scheduler.Encoder
	Packager scheduler.Packager
	Runs     repository.RunRepository
	Jobs     repository.JobRepository
	Reporter *progress.Reporter
	Logger   *slog.Logger
}

// Summary is the outcome of one batch run.
type Summary struct {
	Run  *models.RunRecord
	Jobs []*models.EncodingJob
}

// Runner executes one batch run over the configured input directory.
type Runner struct {
	cfg         *config.Config
	profileName string
	profile     *profiles.Profile
	engine      *pattern.Engine
	deps        Deps
	logger      *slog.Logger
}

// New creates a runner for the given resolved profile.
func New(cfg *config.Config, profileName string, profile *profiles.Profile, deps Deps) (*Runner, error) {
	validation, rename, organization, caseInsensitive := profile.PatternRules()
	engine, err := pattern.NewEngine(pattern.Rules{
		Validation:      validation,
		Rename:          rename,
		Organization:    organization,
		CaseInsensitive: caseInsensitive,
	})
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		cfg:         cfg,
		profileName: profileName,
		profile:     profile,
		engine:      engine,
		deps:        deps,
		logger:      logger,
	}, nil
}

// Run discovers input files and drives every accepted one through
// encode, package, and organize. It blocks until all jobs settle and
// returns the run summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	run := &models.RunRecord{
		ID:          uuid.NewString(),
		ProfileName: r.profileName,
		InputDir:    r.cfg.Storage.InputDir,
		StartedAt:   models.Now(),
	}
	if r.deps.Runs != nil {
		if err := r.deps.Runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
	}

	summary, err := r.execute(ctx, run)

	now := models.Now()
	run.FinishedAt = &now
	if r.deps.Runs != nil {
		if updErr := r.deps.Runs.Update(ctx, run); updErr != nil {
			r.logger.Warn("failed to update run record", "run_id", run.ID, "error", updErr)
		}
	}
	return summary, err
}

func (r *Runner) execute(ctx context.Context, run *models.RunRecord) (*Summary, error) {
	if err := os.MkdirAll(r.cfg.Storage.OutputDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	workDir := r.cfg.Storage.WorkPath()
	if err := os.MkdirAll(workDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}

	in := intake.New(r.engine, r.deps.Reporter, r.logger)
	result, err := in.Run(r.cfg.Storage.InputDir, intake.Options{
		AutoRename: r.profile.AutoRenameFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("intake: %w", err)
	}

	run.Discovered = result.Discovered
	run.Validated = result.Validated
	run.Skipped = result.Skipped
	run.Renamed = result.Renamed
	run.RenameErrors = result.RenameErrors

	accepted := result.Accepted()
	summary := &Summary{Run: run}
	if len(accepted) == 0 {
		r.logger.Info("no eligible files", "input_dir", r.cfg.Storage.InputDir)
		return summary, nil
	}

	enc, pkg, err := r.workers(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		jobs []*models.EncodingJob
	)
	onComplete := func(task *scheduler.Task) {
		mu.Lock()
		switch task.Job.State {
		case models.JobStateSucceeded:
			run.Succeeded++
		case models.JobStateFailed:
			run.Failed++
		}
		if task.Organized {
			run.Organized++
		}
		if task.OrganizeErr != nil {
			run.OrganizeErrors++
		}
		mu.Unlock()

		if r.deps.Jobs != nil {
			if err := r.deps.Jobs.Update(ctx, task.Job); err != nil {
				r.logger.Warn("failed to update job record",
					"identifier", task.Job.Identifier, "error", err)
			}
		}
	}

	sched := scheduler.New(scheduler.Config{
		Workers:    r.profile.Parallelism,
		WorkDir:    workDir,
		OutputRoot: r.cfg.Storage.OutputDir,
		Encoder:    enc,
		Packager:   pkg,
		Organizer:  organizer.New(r.engine, r.logger),
		Reporter:   r.deps.Reporter,
		Logger:     r.logger,
		OnComplete: onComplete,
	})
	sched.Start(ctx)

	for _, entry := range accepted {
		job := models.NewEncodingJob(
			run.ID,
			entry,
			r.profileName,
			filepath.Join(r.cfg.Storage.OutputDir, entry.Identifier),
			r.profile.MaxAttempts,
		)
		if r.deps.Jobs != nil {
			if err := r.deps.Jobs.Create(ctx, job); err != nil {
				r.logger.Warn("failed to record job",
					"identifier", job.Identifier, "error", err)
			}
		}
		jobs = append(jobs, job)

		if err := sched.Submit(ctx, &scheduler.Task{Job: job, Profile: r.profile}); err != nil {
			// Cancellation mid-submit; unsubmitted jobs settle as failed.
			job.MarkFailed(err)
			mu.Lock()
			run.Failed++
			mu.Unlock()
			if r.deps.Jobs != nil {
				if updErr := r.deps.Jobs.Update(ctx, job); updErr != nil {
					r.logger.Warn("failed to update job record",
						"identifier", job.Identifier, "error", updErr)
				}
			}
		}
	}
	sched.Close()

	summary.Jobs = jobs
	r.logger.Info("run complete",
		"run_id", run.ID,
		"validated", run.Validated,
		"skipped", run.Skipped,
		"succeeded", run.Succeeded,
		"failed", run.Failed,
		"organized", run.Organized)
	return summary, nil
}

// workers returns the encode and package implementations, locating the
// FFmpeg binaries when no fakes were injected.
func (r *Runner) workers(ctx context.Context) (scheduler.Encoder, scheduler.Packager, error) {
	enc := r.deps.Encoder
	pkg := r.deps.Packager
	if enc != nil && pkg != nil {
		return enc, pkg, nil
	}

	binaries, err := ffmpeg.Locate(ctx, r.cfg.FFmpeg)
	if err != nil {
		return nil, nil, err
	}
	if enc == nil {
		enc = ffmpeg.NewEncoder(binaries, r.cfg.FFmpeg.EncodeTimeout, r.logger)
	}
	if pkg == nil {
		pkg = packager.New(binaries, r.logger)
	}
	return enc, pkg, nil
}
