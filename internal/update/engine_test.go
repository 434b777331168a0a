package update

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileEngineCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firmware.bin")
	e := NewFileEngine(path)

	if err := e.Begin(0); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := e.Write([]byte("image-")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := e.Write([]byte("bytes")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := e.End(true); err != nil {
		t.Fatalf("End(true) error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("staged image missing: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("staged image = %q, want %q", data, "image-bytes")
	}
	if e.HasError() {
		t.Error("HasError() = true after clean commit")
	}
}

func TestFileEngineAbortRemovesImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firmware.bin")
	e := NewFileEngine(path)

	if err := e.Begin(0); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := e.Write([]byte("partial")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := e.End(false); err == nil {
		t.Error("End(false) = nil, want abort error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("staging file survives abort, stat err = %v", err)
	}
}

func TestFileEngineSessionRules(t *testing.T) {
	e := NewFileEngine(filepath.Join(t.TempDir(), "firmware.bin"))

	if _, err := e.Write([]byte("x")); err == nil {
		t.Error("Write() without Begin succeeded, want error")
	}
	if err := e.End(true); err == nil {
		t.Error("End() without Begin succeeded, want error")
	}
	if err := e.Begin(0); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := e.Begin(0); err == nil {
		t.Error("second Begin() succeeded, want error")
	}
	if err := e.End(true); err != nil {
		t.Fatalf("End() error = %v", err)
	}
}
