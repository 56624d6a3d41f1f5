// Package organizer groups packaged output directories under parent
// folders derived from their identifiers.
package organizer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/pattern"
)

const dirPerm = 0o755

// Organizer moves completed output directories into parent folders.
// Concurrent moves targeting the same parent are serialized so the
// parent directory is created exactly once.
type Organizer struct {
	engine *pattern.Engine
	logger *slog.Logger

	mu      sync.Mutex
	parents map[string]*sync.Mutex
}

// New creates an organizer using the engine's organization rule.
func New(engine *pattern.Engine, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{
		engine:  engine,
		logger:  logger,
		parents: make(map[string]*sync.Mutex),
	}
}

// Organize moves dir (named after its identifier) under the parent
// folder the organization rule extracts. It returns the final path of
// the directory. When the identifier yields no parent the directory is
// left in place.
func (o *Organizer) Organize(outputRoot, identifier, dir string) (string, error) {
	parent, ok := o.engine.OrganizeParent(identifier)
	if !ok {
		o.logger.Debug("no parent for output, leaving in place", "identifier", identifier)
		return dir, nil
	}

	lock := o.parentLock(parent)
	lock.Lock()
	defer lock.Unlock()

	parentDir := filepath.Join(outputRoot, parent)
	if err := os.MkdirAll(parentDir, dirPerm); err != nil {
		return dir, fmt.Errorf("creating parent %s: %w", parentDir, err)
	}

	dest := filepath.Join(parentDir, filepath.Base(dir))
	if _, err := os.Lstat(dest); err == nil {
		return dir, fmt.Errorf("moving %s to %s: %w", dir, dest, models.ErrDestinationExists)
	} else if !os.IsNotExist(err) {
		return dir, fmt.Errorf("checking %s: %w", dest, err)
	}

	if err := os.Rename(dir, dest); err != nil {
		return dir, fmt.Errorf("moving %s to %s: %w", dir, dest, err)
	}

	o.logger.Info("organized output", "identifier", identifier, "parent", parent, "path", dest)
	return dest, nil
}

func (o *Organizer) parentLock(parent string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.parents[parent]
	if !ok {
		lock = &sync.Mutex{}
		o.parents[parent] = lock
	}
	return lock
}
