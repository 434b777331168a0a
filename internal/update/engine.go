package update

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Engine models the binary flashing backend: begin/write/end of a single
// firmware image with in-band error signaling. The portal only drives
// start, chunks and done; validating and applying the image is the
// engine's business.
type Engine interface {
	// Begin starts a new image. size may be 0 when unknown up front.
	Begin(size int64) error
	// Write appends an image chunk.
	Write(p []byte) (int, error)
	// End finishes the image. commit=false aborts and discards it.
	End(commit bool) error
	// HasError reports whether the in-flight image hit an error.
	HasError() bool
}

// Restarter schedules the deliberate device restart that follows a
// settings erase, a finished update, or an explicit restart request.
type Restarter func(after time.Duration)

// FileEngine stages the uploaded image into a file. It stands in for the
// flash partition writer of an embedded target.
type FileEngine struct {
	path string

	mu   sync.Mutex
	f    *os.File
	size int64
	err  error
}

// NewFileEngine creates an engine staging images at path.
func NewFileEngine(path string) *FileEngine {
	return &FileEngine{path: path}
}

// Begin opens the staging file, truncating any previous image
func (e *FileEngine) Begin(size int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f != nil {
		return fmt.Errorf("update already in progress")
	}
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		e.err = err
		return fmt.Errorf("failed to open staging file: %w", err)
	}
	e.f = f
	e.size = size
	e.err = nil
	return nil
}

// Write appends a chunk to the staged image
func (e *FileEngine) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return 0, fmt.Errorf("no update in progress")
	}
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.f.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// End closes out the staged image. On abort or prior write error the
// staging file is removed.
func (e *FileEngine) End(commit bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return fmt.Errorf("no update in progress")
	}
	closeErr := e.f.Close()
	e.f = nil

	if !commit || e.err != nil || closeErr != nil {
		os.Remove(e.path)
		if e.err != nil {
			return fmt.Errorf("update failed: %w", e.err)
		}
		if closeErr != nil {
			e.err = closeErr
			return fmt.Errorf("failed to finalize image: %w", closeErr)
		}
		return fmt.Errorf("update aborted")
	}
	return nil
}

// HasError reports whether the current or last image hit an error
func (e *FileEngine) HasError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err != nil
}
