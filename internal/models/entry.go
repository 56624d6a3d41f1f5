package models

// EntryState tracks a discovered file through intake.
type EntryState string

const (
	// EntryDiscovered is the initial state after the directory walk.
	EntryDiscovered EntryState = "discovered"
	// EntryRenamed indicates the file was physically renamed to its
	// canonical name.
	EntryRenamed EntryState = "renamed"
	// EntryValidated indicates the filename passed validation and the
	// entry is eligible for scheduling.
	EntryValidated EntryState = "validated"
	// EntrySkipped indicates the filename failed validation.
	EntrySkipped EntryState = "skipped"
	// EntryError indicates intake failed for this file (rename error,
	// duplicate identifier).
	EntryError EntryState = "error"
)

// FileEntry is one file moving through intake. Identity is the original
// path until renamed; after a rename the identifier is recomputed from
// the new name.
type FileEntry struct {
	// Path is the current absolute path of the file.
	Path string

	// OriginalPath is the path as discovered, before any rename.
	OriginalPath string

	// Identifier is the canonical identifier extracted from the
	// (possibly renamed) filename. Empty until validated.
	Identifier string

	// State is the entry's intake lifecycle state.
	State EntryState

	// Renamed is true when the file was physically renamed.
	Renamed bool

	// SkipReason records why a file was skipped or errored.
	SkipReason string
}

// Eligible reports whether the entry may be scheduled for encoding.
func (e *FileEntry) Eligible() bool {
	return e.State == EntryValidated
}
