package models

import (
	"time"

	"gorm.io/gorm"
)

// JobState represents the current state of an encoding job.
type JobState string

const (
	// JobStatePending indicates the job is waiting for a worker.
	JobStatePending JobState = "pending"
	// JobStateRunning indicates a worker is encoding the job.
	JobStateRunning JobState = "running"
	// JobStateRetrying indicates a failed attempt will be retried.
	JobStateRetrying JobState = "retrying"
	// JobStateSucceeded indicates every rendition encoded and packaged.
	JobStateSucceeded JobState = "succeeded"
	// JobStateFailed indicates the job failed terminally.
	JobStateFailed JobState = "failed"
)

// EncodingJob is one source file turned into one output folder. It is
// owned exclusively by the scheduler from creation to terminal state;
// the same struct doubles as the persisted job-history record.
type EncodingJob struct {
	BaseModel

	// RunID groups jobs belonging to one batch run.
	RunID string `gorm:"size:36;index" json:"run_id"`

	// SourcePath is the validated input file.
	SourcePath string `gorm:"size:1024;not null" json:"source_path"`

	// Identifier is the canonical identifier derived from the filename.
	// The output folder name is exactly this identifier.
	Identifier string `gorm:"size:255;not null;index" json:"identifier"`

	// ProfileName names the resolved processing profile.
	ProfileName string `gorm:"size:100" json:"profile_name"`

	// OutputDir is the job's exclusive output folder. No two concurrent
	// jobs share one; uniqueness of identifiers is enforced at intake.
	OutputDir string `gorm:"size:1024" json:"output_dir"`

	// State is the job's lifecycle state.
	State JobState `gorm:"not null;default:'pending';size:20;index" json:"state"`

	// AttemptCount is the number of encode attempts made.
	AttemptCount int `gorm:"default:0" json:"attempt_count"`

	// MaxAttempts bounds the retry loop (minimum 1).
	MaxAttempts int `gorm:"default:3" json:"max_attempts"`

	// LastError holds the error message from the most recent failure.
	LastError string `gorm:"size:4096" json:"last_error,omitempty"`

	// StartedAt is when the first attempt began.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationMs is the total wall time in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// PeakCPUPercent is the highest encoder CPU usage observed.
	PeakCPUPercent float64 `json:"peak_cpu_percent,omitempty"`

	// PeakRSSBytes is the highest encoder resident set size observed.
	PeakRSSBytes uint64 `json:"peak_rss_bytes,omitempty"`
}

// TableName returns the table name for EncodingJob.
func (EncodingJob) TableName() string {
	return "encoding_jobs"
}

// NewEncodingJob creates a pending job for a validated entry.
func NewEncodingJob(runID string, entry *FileEntry, profileName, outputDir string, maxAttempts int) *EncodingJob {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &EncodingJob{
		RunID:       runID,
		SourcePath:  entry.Path,
		Identifier:  entry.Identifier,
		ProfileName: profileName,
		OutputDir:   outputDir,
		State:       JobStatePending,
		MaxAttempts: maxAttempts,
	}
}

// IsTerminal returns true once the job has settled.
func (j *EncodingJob) IsTerminal() bool {
	return j.State == JobStateSucceeded || j.State == JobStateFailed
}

// CanRetry returns true if another attempt is allowed.
func (j *EncodingJob) CanRetry() bool {
	return j.AttemptCount < j.MaxAttempts
}

// MarkRunning transitions the job into its next attempt.
func (j *EncodingJob) MarkRunning() {
	j.State = JobStateRunning
	j.AttemptCount++
	if j.StartedAt == nil {
		now := Now()
		j.StartedAt = &now
	}
}

// MarkRetrying records a failed attempt that will be retried.
func (j *EncodingJob) MarkRetrying(err error) {
	j.State = JobStateRetrying
	if err != nil {
		j.LastError = err.Error()
	}
}

// MarkSucceeded settles the job as succeeded.
func (j *EncodingJob) MarkSucceeded() {
	j.State = JobStateSucceeded
	j.LastError = ""
	j.settle()
}

// MarkFailed settles the job as failed. It is also the post-hoc
// transition used when packaging fails after a successful encode.
func (j *EncodingJob) MarkFailed(err error) {
	j.State = JobStateFailed
	if err != nil {
		j.LastError = err.Error()
	}
	j.settle()
}

func (j *EncodingJob) settle() {
	now := Now()
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// BeforeCreate is a GORM hook that generates the ULID.
func (j *EncodingJob) BeforeCreate(tx *gorm.DB) error {
	return j.BaseModel.BeforeCreate(tx)
}

// RunRecord summarizes one batch run.
type RunRecord struct {
	// ID is the run's UUID.
	ID string `gorm:"primarykey;size:36" json:"id"`

	ProfileName string `gorm:"size:100" json:"profile_name"`
	InputDir    string `gorm:"size:1024" json:"input_dir"`

	Discovered     int `json:"discovered"`
	Validated      int `json:"validated"`
	Skipped        int `json:"skipped"`
	Renamed        int `json:"renamed"`
	RenameErrors   int `json:"rename_errors"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	Organized      int `json:"organized"`
	OrganizeErrors int `json:"organize_errors"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the table name for RunRecord.
func (RunRecord) TableName() string {
	return "runs"
}
