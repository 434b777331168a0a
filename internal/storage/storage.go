package storage

import (
	"fmt"
	"os"
	"sync"
)

// Device models non-volatile storage with begin/read/write/commit/end
// semantics over a fixed address range. Writes are staged in memory and
// only reach the backing medium on Commit.
type Device interface {
	// Begin opens a session over a region of the given size.
	Begin(size int) error
	// Read copies len(buf) bytes starting at offset into buf.
	Read(offset int, buf []byte) error
	// Write stages len(buf) bytes starting at offset.
	Write(offset int, buf []byte) error
	// Commit flushes staged writes to the backing medium.
	Commit() error
	// End closes the session, discarding any uncommitted writes.
	End()
}

// FileDevice is a Device backed by a fixed-size binary file, standing in
// for the EEPROM/NVS region of an embedded target.
type FileDevice struct {
	path string

	mu     sync.Mutex
	region []byte
	open   bool
	dirty  bool
}

// NewFileDevice creates a file-backed storage device at path.
// The file is created on first Commit if it does not exist.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

// Begin opens the region, loading existing content from the backing file.
// A missing file yields a zero-filled region (uninitialized storage).
func (d *FileDevice) Begin(size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid region size %d", size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return fmt.Errorf("storage session already open")
	}

	region := make([]byte, size)
	data, err := os.ReadFile(d.path)
	switch {
	case err == nil:
		copy(region, data)
	case os.IsNotExist(err):
		// Uninitialized storage reads as zeroes
	default:
		return fmt.Errorf("failed to read storage file: %w", err)
	}

	d.region = region
	d.open = true
	d.dirty = false
	return nil
}

// Read copies bytes out of the open region
func (d *FileDevice) Read(offset int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmt.Errorf("storage session not open")
	}
	if offset < 0 || offset+len(buf) > len(d.region) {
		return fmt.Errorf("read of %d bytes at offset %d exceeds region size %d", len(buf), offset, len(d.region))
	}
	copy(buf, d.region[offset:])
	return nil
}

// Write stages bytes into the open region
func (d *FileDevice) Write(offset int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmt.Errorf("storage session not open")
	}
	if offset < 0 || offset+len(buf) > len(d.region) {
		return fmt.Errorf("write of %d bytes at offset %d exceeds region size %d", len(buf), offset, len(d.region))
	}
	copy(d.region[offset:], buf)
	d.dirty = true
	return nil
}

// Commit flushes the staged region to disk with an atomic rename, so a
// crash mid-commit never leaves a torn record behind.
func (d *FileDevice) Commit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmt.Errorf("storage session not open")
	}
	if !d.dirty {
		return nil
	}

	tmpPath := d.path + ".tmp"
	if err := os.WriteFile(tmpPath, d.region, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit storage file: %w", err)
	}
	d.dirty = false
	return nil
}

// End closes the session. Staged but uncommitted writes are discarded.
func (d *FileDevice) End() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.region = nil
	d.open = false
	d.dirty = false
}
