// Package fsx provides the filesystem coordination primitives failtrack
// is built on: atomic replace-by-rename writes and advisory file locks
// that stay correct across processes and hosts sharing a filesystem.
package fsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry tracks temporary files created by in-flight atomic writes so
// an abnormal process exit can still sweep them up. One Registry is
// constructed per process and shared by all writers.
type Registry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewRegistry returns an empty temp-file registry.
func NewRegistry() *Registry {
	return &Registry{paths: make(map[string]struct{})}
}

func (r *Registry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path] = struct{}{}
}

func (r *Registry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

// Sweep removes any temp files still registered. Best effort: failures
// are logged, not returned. Intended to run once at process exit.
func (r *Registry) Sweep() {
	r.mu.Lock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("temp_path", p).Err(err).Msg("could not clean up temp file")
		}
		r.remove(p)
	}
}

// Writer performs atomic file writes via a same-directory temp file and
// rename, so a concurrent reader sees either the old complete content or
// the new complete content, never a partial write.
type Writer struct {
	reg *Registry
}

// NewWriter returns a Writer whose temp files are tracked in reg.
func NewWriter(reg *Registry) *Writer {
	return &Writer{reg: reg}
}

// WriteAtomic streams content produced by produce into a temp file next
// to path, forces it to stable storage, and renames it onto path. On any
// error before the rename the temp file is removed and path is left
// untouched.
func (w *Writer) WriteAtomic(path string, produce func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, "."+base+".tmp.")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tempPath := f.Name()
	w.reg.add(tempPath)

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			if rmErr := os.Remove(tempPath); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Str("temp_path", tempPath).Err(rmErr).Msg("could not clean up temp file")
			}
		}
		w.reg.remove(tempPath)
	}()

	if err := produce(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tempPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempPath, err)
	}

	// Rename is atomic on the same filesystem; the temp file was created
	// in the target's directory to guarantee that.
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tempPath, path, err)
	}
	success = true
	return nil
}

// WriteAtomicBytes is a convenience wrapper around WriteAtomic for
// callers that already hold the full content.
func (w *Writer) WriteAtomicBytes(path string, data []byte) error {
	return w.WriteAtomic(path, func(out io.Writer) error {
		_, err := out.Write(data)
		return err
	})
}
