// Package scheduler runs encoding jobs on a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hlsforge/hlsforge/internal/ffmpeg"
	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/packager"
	"github.com/hlsforge/hlsforge/internal/profiles"
	"github.com/hlsforge/hlsforge/internal/progress"
)

// Encoder produces one rendition of a source file.
type Encoder interface {
	Encode(ctx context.Context, spec ffmpeg.RenditionSpec) (ffmpeg.ProcessStats, error)
}

// Packager turns encoded renditions into an HLS output tree.
type Packager interface {
	Package(ctx context.Context, req packager.Request) error
}

// Organizer relocates a finished output directory under its parent
// folder and returns the final path.
type Organizer interface {
	Organize(outputRoot, identifier, dir string) (string, error)
}

// Task is one job together with its resolved profile.
type Task struct {
	Job     *models.EncodingJob
	Profile *profiles.Profile

	// FinalPath is set after organization, or left as the job's
	// OutputDir when the output stays in place.
	FinalPath string

	// Organized records whether the output moved under a parent folder.
	Organized bool

	// OrganizeErr holds a non-fatal organization failure.
	OrganizeErr error
}

// Config configures a Scheduler.
type Config struct {
	// Workers bounds how many jobs encode concurrently.
	Workers int

	// WorkDir holds per-job intermediate rendition files.
	WorkDir string

	// OutputRoot is where packaged output directories are created.
	OutputRoot string

	Encoder   Encoder
	Packager  Packager
	Organizer Organizer
	Reporter  *progress.Reporter
	Logger    *slog.Logger

	// OnComplete is called from the worker goroutine once a task
	// reaches a terminal state. May be nil.
	OnComplete func(*Task)
}

// Scheduler dispatches tasks to a fixed pool of workers. Submit hands
// a task directly to an idle worker and blocks while all workers are
// busy, so callers are throttled to the pool's pace.
type Scheduler struct {
	cfg   Config
	tasks chan *Task

	mu     sync.Mutex
	closed bool

	wg sync.WaitGroup
}

// New creates a scheduler. Start must be called before Submit.
func New(cfg Config) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		cfg:   cfg,
		tasks: make(chan *Task),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
}

// Submit hands a task to the pool, blocking until a worker accepts it
// or ctx is cancelled. It returns ErrSchedulerClosed after Close.
func (s *Scheduler) Submit(ctx context.Context, task *Task) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ErrSchedulerClosed
	}
	s.mu.Unlock()

	select {
	case s.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for in-flight jobs to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.tasks)
	s.wg.Wait()
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	logger := s.cfg.Logger.With("worker", id)

	for task := range s.tasks {
		s.runTask(ctx, logger, task)
		if s.cfg.OnComplete != nil {
			s.cfg.OnComplete(task)
		}
	}
}

// runTask drives one job through encode, package, and organize. The
// job always leaves in a terminal state.
func (s *Scheduler) runTask(ctx context.Context, logger *slog.Logger, task *Task) {
	job := task.Job
	task.FinalPath = job.OutputDir

	workDir := filepath.Join(s.cfg.WorkDir, job.Identifier)

	if err := s.encodeWithRetry(ctx, logger, task, workDir); err != nil {
		job.MarkFailed(err)
		s.cleanup(logger, workDir, job.OutputDir)
		s.publish(progress.StageEncode, job, err.Error())
		logger.Error("job failed",
			"identifier", job.Identifier,
			"attempts", job.AttemptCount,
			"error", err)
		return
	}

	job.MarkSucceeded()
	s.publish(progress.StageEncode, job, "")

	if err := s.packageTask(ctx, task, workDir); err != nil {
		// Packaging failed after a successful encode; the job is
		// re-settled as failed and its output removed.
		job.MarkFailed(err)
		s.cleanup(logger, workDir, job.OutputDir)
		s.publish(progress.StagePackage, job, err.Error())
		logger.Error("packaging failed", "identifier", job.Identifier, "error", err)
		return
	}
	s.publish(progress.StagePackage, job, "")

	s.cleanup(logger, workDir, "")
	s.organizeTask(logger, task)
}

// encodeWithRetry runs encode attempts until success, exhaustion, or
// cancellation. Partial rendition output is removed between attempts.
func (s *Scheduler) encodeWithRetry(ctx context.Context, logger *slog.Logger, task *Task, workDir string) error {
	job := task.Job

	for {
		job.MarkRunning()
		s.publish(progress.StageEncode, job, "")

		err := s.encodeAll(ctx, task, workDir)
		if err == nil {
			return nil
		}

		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("failed to remove partial renditions", "dir", workDir, "error", rmErr)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("job cancelled: %w", ctx.Err())
		}
		if !job.CanRetry() {
			return err
		}

		job.MarkRetrying(err)
		s.publish(progress.StageEncode, job, err.Error())
		logger.Warn("encode attempt failed, retrying",
			"identifier", job.Identifier,
			"attempt", job.AttemptCount,
			"max_attempts", job.MaxAttempts,
			"error", err)
	}
}

// encodeAll produces every ladder rendition into workDir.
func (s *Scheduler) encodeAll(ctx context.Context, task *Task, workDir string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}

	job := task.Job
	for _, level := range task.Profile.Ladder {
		stats, err := s.cfg.Encoder.Encode(ctx, ffmpeg.RenditionSpec{
			Source:  job.SourcePath,
			Dest:    renditionPath(workDir, level),
			Profile: task.Profile,
			Level:   level,
		})
		if stats.PeakCPUPercent > job.PeakCPUPercent {
			job.PeakCPUPercent = stats.PeakCPUPercent
		}
		if stats.PeakRSSBytes > job.PeakRSSBytes {
			job.PeakRSSBytes = stats.PeakRSSBytes
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) packageTask(ctx context.Context, task *Task, workDir string) error {
	renditions := make([]packager.Rendition, 0, len(task.Profile.Ladder))
	for _, level := range task.Profile.Ladder {
		renditions = append(renditions, packager.Rendition{
			Level:  level,
			Source: renditionPath(workDir, level),
		})
	}
	return s.cfg.Packager.Package(ctx, packager.Request{
		Identifier: task.Job.Identifier,
		Profile:    task.Profile,
		Renditions: renditions,
		OutputDir:  task.Job.OutputDir,
	})
}

// organizeTask relocates the output folder. Failures leave the output
// where it is and do not affect the job's state.
func (s *Scheduler) organizeTask(logger *slog.Logger, task *Task) {
	job := task.Job

	if !task.Profile.AutoOrganizeFolders {
		return
	}

	finalPath, err := s.cfg.Organizer.Organize(s.cfg.OutputRoot, job.Identifier, job.OutputDir)
	task.FinalPath = finalPath
	if err != nil {
		task.OrganizeErr = err
		s.publish(progress.StageOrganize, job, err.Error())
		logger.Warn("organize failed, output left in place",
			"identifier", job.Identifier, "error", err)
		return
	}
	task.Organized = finalPath != job.OutputDir
	s.publish(progress.StageOrganize, job, "")
}

func (s *Scheduler) cleanup(logger *slog.Logger, workDir, outputDir string) {
	if workDir != "" {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove work dir", "dir", workDir, "error", err)
		}
	}
	if outputDir != "" {
		if err := os.RemoveAll(outputDir); err != nil {
			logger.Warn("failed to remove output dir", "dir", outputDir, "error", err)
		}
	}
}

func (s *Scheduler) publish(stage progress.Stage, job *models.EncodingJob, detail string) {
	if s.cfg.Reporter == nil {
		return
	}
	s.cfg.Reporter.Publish(stage, job.Identifier, string(job.State), detail)
}

func renditionPath(workDir string, level profiles.QualityLevel) string {
	return filepath.Join(workDir, level.Name+".mp4")
}
