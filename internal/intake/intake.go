// Package intake walks the input directory, applies the rename and
// validation rules, and produces the ordered set of files eligible for
// encoding.
package intake

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/pattern"
	"github.com/hlsforge/hlsforge/internal/progress"
)

// Options control intake behavior for a run.
type Options struct {
	// AutoRename applies the rename rule and physically renames files
	// before validation. Renames are eager and not reversible by the
	// pipeline.
	AutoRename bool
}

// Result is the outcome of one intake sweep.
type Result struct {
	// Entries holds every discovered file with its final intake state,
	// in discovery (lexicographic) order.
	Entries []*models.FileEntry

	Discovered   int
	Validated    int
	Skipped      int
	Renamed      int
	RenameErrors int
}

// Accepted returns the entries eligible for scheduling, in order.
func (r *Result) Accepted() []*models.FileEntry {
	var out []*models.FileEntry
	for _, e := range r.Entries {
		if e.Eligible() {
			out = append(out, e)
		}
	}
	return out
}

// Intake validates and optionally renames the files of an input
// directory.
type Intake struct {
	engine   *pattern.Engine
	reporter *progress.Reporter
	logger   *slog.Logger
}

// New creates an Intake. reporter may be nil.
func New(engine *pattern.Engine, reporter *progress.Reporter, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{engine: engine, reporter: reporter, logger: logger}
}

// Run walks inputDir (top level only; job outputs are folders, sources
// are files) and processes every regular file: rename first when
// enabled, then validate the possibly-new name. Per-file failures are
// recorded and never abort the sweep.
//
// Duplicate identifiers after renaming are a validation-time error: the
// first file claims the identifier, later claimants are rejected so no
// output folder is ever silently shared.
func (i *Intake) Run(inputDir string, opts Options) (*Result, error) {
	names, err := listFiles(inputDir)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	claimed := make(map[string]string) // identifier -> path that owns it

	for _, name := range names {
		entry := &models.FileEntry{
			Path:         filepath.Join(inputDir, name),
			OriginalPath: filepath.Join(inputDir, name),
			State:        models.EntryDiscovered,
		}
		result.Entries = append(result.Entries, entry)
		result.Discovered++

		if opts.AutoRename {
			i.renameEntry(entry, result)
			if entry.State == models.EntryError {
				continue
			}
		}

		filename := filepath.Base(entry.Path)
		if !i.engine.Validate(filename) {
			entry.State = models.EntrySkipped
			entry.SkipReason = "filename does not match validation pattern"
			result.Skipped++
			i.publish(entry, "skipped", entry.SkipReason)
			i.logger.Debug("file skipped",
				slog.String("file", filename),
				slog.String("reason", entry.SkipReason))
			continue
		}

		entry.Identifier = i.engine.Identifier(filename)
		if owner, dup := claimed[entry.Identifier]; dup {
			entry.State = models.EntryError
			entry.SkipReason = models.ErrDuplicateIdentifier.Error() + ": also claimed by " + filepath.Base(owner)
			result.Skipped++
			i.publish(entry, "rejected", entry.SkipReason)
			i.logger.Warn("duplicate identifier",
				slog.String("file", filename),
				slog.String("identifier", entry.Identifier),
				slog.String("owner", owner))
			continue
		}
		claimed[entry.Identifier] = entry.Path

		entry.State = models.EntryValidated
		result.Validated++
		i.publish(entry, "validated", "")
	}

	i.logger.Info("intake complete",
		slog.String("input_dir", inputDir),
		slog.Int("discovered", result.Discovered),
		slog.Int("validated", result.Validated),
		slog.Int("skipped", result.Skipped),
		slog.Int("renamed", result.Renamed),
		slog.Int("rename_errors", result.RenameErrors))

	return result, nil
}

// renameEntry applies the rename rule and performs the filesystem
// rename. A rename failure (permissions, collision) excludes the file
// from this run but does not stop the sweep.
func (i *Intake) renameEntry(entry *models.FileEntry, result *Result) {
	dir := filepath.Dir(entry.Path)
	oldName := filepath.Base(entry.Path)

	newName, changed := i.engine.Rename(oldName)
	if !changed {
		return
	}

	newPath := filepath.Join(dir, newName)
	if _, err := os.Lstat(newPath); err == nil {
		entry.State = models.EntryError
		entry.SkipReason = "rename target already exists: " + newName
		result.RenameErrors++
		i.publish(entry, "rename_error", entry.SkipReason)
		i.logger.Warn("rename collision",
			slog.String("from", oldName),
			slog.String("to", newName))
		return
	}

	if err := os.Rename(entry.Path, newPath); err != nil {
		entry.State = models.EntryError
		entry.SkipReason = "rename failed: " + err.Error()
		result.RenameErrors++
		i.publish(entry, "rename_error", entry.SkipReason)
		i.logger.Warn("rename failed",
			slog.String("from", oldName),
			slog.String("to", newName),
			slog.String("error", err.Error()))
		return
	}

	entry.Path = newPath
	entry.Renamed = true
	entry.State = models.EntryRenamed
	result.Renamed++
	i.publish(entry, "renamed", oldName+" -> "+newName)
	i.logger.Info("file renamed",
		slog.String("from", oldName),
		slog.String("to", newName))
}

func (i *Intake) publish(entry *models.FileEntry, state, detail string) {
	if i.reporter == nil {
		return
	}
	id := entry.Identifier
	if id == "" {
		id = filepath.Base(entry.Path)
	}
	i.reporter.Publish(progress.StageIntake, id, state, detail)
}

// listFiles returns the regular-file names of dir sorted
// lexicographically for deterministic processing order.
func listFiles(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		if d.Type()&fs.ModeSymlink != 0 {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}
