package staging

import (
	"errors"
	"log/slog"
	"os"
	"sync"
)

// Run tracks every staging file created while handling one message.
// Cleanup deletes each tracked path exactly once, tolerating files that are
// already gone. Callers defer Cleanup immediately after creating a Run so
// it covers every exit path.
type Run struct {
	logger *slog.Logger

	mu      sync.Mutex
	paths   []string
	cleaned bool
}

// NewRun creates an empty run tracker.
func NewRun(logger *slog.Logger) *Run {
	if logger == nil {
		logger = slog.Default()
	}
	return &Run{logger: logger.With("component", "staging")}
}

// Track registers a path for deletion at cleanup.
func (r *Run) Track(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

// Cleanup removes every tracked file. Safe to call more than once; only the
// first call deletes. Deletion failures other than "already gone" are
// logged, never raised.
func (r *Run) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleaned {
		return
	}
	r.cleaned = true
	for _, path := range r.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("failed to remove staging file", "path", path, "error", err)
		}
	}
	r.paths = nil
}
