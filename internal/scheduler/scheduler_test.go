package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlsforge/hlsforge/internal/ffmpeg"
	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/packager"
	"github.com/hlsforge/hlsforge/internal/profiles"
)

// fakeEncoder writes the destination file and tracks concurrency. It
// fails a configurable number of times per identifier before it
// succeeds.
type fakeEncoder struct {
	mu        sync.Mutex
	failures  map[string]int
	inFlight  atomic.Int32
	peak      atomic.Int32
	calls     atomic.Int32
	blockOn   chan struct{}
	encodeErr error
}

func (f *fakeEncoder) Encode(ctx context.Context, spec ffmpeg.RenditionSpec) (ffmpeg.ProcessStats, error) {
	f.calls.Add(1)

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if cur <= old || f.peak.CompareAndSwap(old, cur) {
			break
		}
	}

	if f.blockOn != nil {
		select {
		case <-f.blockOn:
		case <-ctx.Done():
			return ffmpeg.ProcessStats{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return ffmpeg.ProcessStats{}, err
	}
	if f.encodeErr != nil {
		return ffmpeg.ProcessStats{}, f.encodeErr
	}

	f.mu.Lock()
	remaining := f.failures[filepath.Base(spec.Source)]
	if remaining > 0 {
		f.failures[filepath.Base(spec.Source)] = remaining - 1
		f.mu.Unlock()
		return ffmpeg.ProcessStats{}, errors.New("simulated encode failure")
	}
	f.mu.Unlock()

	if err := os.WriteFile(spec.Dest, []byte("encoded"), 0o644); err != nil {
		return ffmpeg.ProcessStats{}, err
	}
	return ffmpeg.ProcessStats{PeakCPUPercent: 42, PeakRSSBytes: 1 << 20}, nil
}

// fakePackager writes a master playlist marker file, or fails.
type fakePackager struct {
	err   error
	calls atomic.Int32
}

func (f *fakePackager) Package(ctx context.Context, req packager.Request) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(req.OutputDir, packager.MasterPlaylistName), []byte("#EXTM3U\n"), 0o644)
}

// fakeOrganizer moves nothing but reports a final path, or fails.
type fakeOrganizer struct {
	err error
}

func (f *fakeOrganizer) Organize(outputRoot, identifier, dir string) (string, error) {
	if f.err != nil {
		return dir, f.err
	}
	return filepath.Join(outputRoot, "organized", identifier), nil
}

func testProfile() *profiles.Profile {
	p := profiles.Default()
	p.Ladder = []profiles.QualityLevel{
		{Name: "720p", Bitrate: 2800, Width: 1280, Height: 720},
	}
	p.AutoOrganizeFolders = false
	return p
}

func newTask(t *testing.T, root, identifier string, profile *profiles.Profile) *Task {
	t.Helper()
	src := filepath.Join(root, identifier+".mp4")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0o644))

	entry := &models.FileEntry{Path: src, Identifier: identifier}
	job := models.NewEncodingJob("run-1", entry, "default", filepath.Join(root, "out", identifier), profile.MaxAttempts)
	return &Task{Job: job, Profile: profile}
}

func runAll(t *testing.T, cfg Config, tasks ...*Task) {
	t.Helper()
	s := New(cfg)
	s.Start(context.Background())
	for _, task := range tasks {
		require.NoError(t, s.Submit(context.Background(), task))
	}
	s.Close()
}

func TestScheduler_JobSucceeds(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	task := newTask(t, root, "123-456", profile)

	enc := &fakeEncoder{}
	pkg := &fakePackager{}
	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    enc,
		Packager:   pkg,
		Organizer:  &fakeOrganizer{},
	}, task)

	assert.Equal(t, models.JobStateSucceeded, task.Job.State)
	assert.Equal(t, 1, task.Job.AttemptCount)
	assert.Equal(t, float64(42), task.Job.PeakCPUPercent)
	assert.EqualValues(t, 1, pkg.calls.Load())

	// The intermediate work directory is gone.
	_, err := os.Stat(filepath.Join(root, "work", "123-456"))
	assert.True(t, os.IsNotExist(err))
}

func TestScheduler_RetryThenSucceed(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	task := newTask(t, root, "123-456", profile)

	enc := &fakeEncoder{failures: map[string]int{"123-456.mp4": 2}}
	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    enc,
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{},
	}, task)

	assert.Equal(t, models.JobStateSucceeded, task.Job.State)
	assert.Equal(t, 3, task.Job.AttemptCount)
}

func TestScheduler_RetriesExhausted(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	profile.MaxAttempts = 2
	task := newTask(t, root, "123-456", profile)

	enc := &fakeEncoder{failures: map[string]int{"123-456.mp4": 99}}
	pkg := &fakePackager{}
	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    enc,
		Packager:   pkg,
		Organizer:  &fakeOrganizer{},
	}, task)

	assert.Equal(t, models.JobStateFailed, task.Job.State)
	assert.Equal(t, 2, task.Job.AttemptCount)
	assert.Contains(t, task.Job.LastError, "simulated encode failure")
	assert.EqualValues(t, 0, pkg.calls.Load(), "failed jobs are never packaged")

	// No partial output survives.
	_, err := os.Stat(task.Job.OutputDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "work", "123-456"))
	assert.True(t, os.IsNotExist(err))
}

func TestScheduler_PackagingFailureFailsJob(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	task := newTask(t, root, "123-456", profile)

	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    &fakeEncoder{},
		Packager:   &fakePackager{err: errors.New("segmenting blew up")},
		Organizer:  &fakeOrganizer{},
	}, task)

	// The encode succeeded but the job settles failed once packaging
	// cannot produce a playable output.
	assert.Equal(t, models.JobStateFailed, task.Job.State)
	assert.Contains(t, task.Job.LastError, "segmenting blew up")

	_, err := os.Stat(task.Job.OutputDir)
	assert.True(t, os.IsNotExist(err))
}

func TestScheduler_OrganizeFailureIsNonFatal(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	profile.AutoOrganizeFolders = true
	task := newTask(t, root, "123-456", profile)

	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    &fakeEncoder{},
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{err: models.ErrDestinationExists},
	}, task)

	assert.Equal(t, models.JobStateSucceeded, task.Job.State)
	require.Error(t, task.OrganizeErr)
	assert.True(t, errors.Is(task.OrganizeErr, models.ErrDestinationExists))
	assert.Equal(t, task.Job.OutputDir, task.FinalPath)
}

func TestScheduler_Organizes(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	profile.AutoOrganizeFolders = true
	task := newTask(t, root, "123-456", profile)

	outputRoot := filepath.Join(root, "out")
	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: outputRoot,
		Encoder:    &fakeEncoder{},
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{},
	}, task)

	assert.Equal(t, models.JobStateSucceeded, task.Job.State)
	assert.True(t, task.Organized)
	assert.Equal(t, filepath.Join(outputRoot, "organized", "123-456"), task.FinalPath)
}

func TestScheduler_ConcurrencyCeiling(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()

	const workers = 2
	tasks := make([]*Task, 6)
	for i := range tasks {
		tasks[i] = newTask(t, root, identifiers()[i], profile)
	}

	enc := &fakeEncoder{}
	runAll(t, Config{
		Workers:    workers,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    enc,
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{},
	}, tasks...)

	assert.LessOrEqual(t, enc.peak.Load(), int32(workers))
	for _, task := range tasks {
		assert.Equal(t, models.JobStateSucceeded, task.Job.State)
	}
}

func identifiers() []string {
	return []string{"1-1", "1-2", "2-1", "2-2", "3-1", "3-2"}
}

func TestScheduler_SubmitBlocksWhileWorkersBusy(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()

	release := make(chan struct{})
	enc := &fakeEncoder{blockOn: release}

	s := New(Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    enc,
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{},
	})
	s.Start(context.Background())

	first := newTask(t, root, "1-1", profile)
	require.NoError(t, s.Submit(context.Background(), first))

	// The single worker is blocked inside Encode; a second submit
	// cannot be handed off and must respect the caller's context.
	second := newTask(t, root, "1-2", profile)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Submit(ctx, second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	s.Close()
	assert.Equal(t, models.JobStateSucceeded, first.Job.State)
}

func TestScheduler_SubmitAfterClose(t *testing.T) {
	s := New(Config{
		Workers:   1,
		Encoder:   &fakeEncoder{},
		Packager:  &fakePackager{},
		Organizer: &fakeOrganizer{},
	})
	s.Start(context.Background())
	s.Close()

	err := s.Submit(context.Background(), &Task{})
	assert.ErrorIs(t, err, models.ErrSchedulerClosed)
}

func TestScheduler_Cancellation(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	task := newTask(t, root, "123-456", profile)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	enc := &fakeEncoder{blockOn: release}

	s := New(Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    enc,
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{},
	})
	s.Start(ctx)
	require.NoError(t, s.Submit(ctx, task))

	cancel()
	s.Close()

	// A cancelled job settles failed without burning its retries.
	assert.Equal(t, models.JobStateFailed, task.Job.State)
	assert.Equal(t, 1, task.Job.AttemptCount)
	assert.Contains(t, task.Job.LastError, "cancelled")
}

func TestScheduler_OnComplete(t *testing.T) {
	root := t.TempDir()
	profile := testProfile()
	task := newTask(t, root, "123-456", profile)

	var completed atomic.Int32
	runAll(t, Config{
		Workers:    1,
		WorkDir:    filepath.Join(root, "work"),
		OutputRoot: filepath.Join(root, "out"),
		Encoder:    &fakeEncoder{},
		Packager:   &fakePackager{},
		Organizer:  &fakeOrganizer{},
		OnComplete: func(done *Task) {
			assert.True(t, done.Job.IsTerminal())
			completed.Add(1)
		},
	}, task)

	assert.EqualValues(t, 1, completed.Load())
}
