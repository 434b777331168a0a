package credentials

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/otaportal/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	device := storage.NewFileDevice(filepath.Join(t.TempDir(), "nvs.bin"))
	store, err := New(device, 64, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func TestLoadUnprovisioned(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Load(); !errors.Is(err, ErrNotProvisioned) {
		t.Errorf("Load() on fresh storage error = %v, want ErrNotProvisioned", err)
	}
	if store.Provisioned() {
		t.Error("Provisioned() = true on fresh storage")
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("HomeNet", "secret123"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.SSID != "HomeNet" || creds.Passphrase != "secret123" {
		t.Errorf("Load() = %+v, want {HomeNet secret123}", creds)
	}
	if !store.Provisioned() {
		t.Error("Provisioned() = false after save")
	}
}

func TestSaveValidation(t *testing.T) {
	tests := []struct {
		name       string
		ssid       string
		passphrase string
		wantErr    error
	}{
		{"empty ssid", "", "secret123", ErrEmptySSID},
		{"short passphrase", "HomeNet", "short", ErrPassphraseTooShort},
		{"passphrase at minimum", "HomeNet", "12345678", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			err := store.Save(tt.ssid, tt.passphrase)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Save(%q, %q) error = %v, want %v", tt.ssid, tt.passphrase, err, tt.wantErr)
			}
		})
	}
}

func TestRejectedSaveKeepsPreviousRecord(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("HomeNet", "secret123"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("", "secret123"); !errors.Is(err, ErrEmptySSID) {
		t.Fatalf("Save() with empty ssid error = %v, want ErrEmptySSID", err)
	}

	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after rejected save error = %v", err)
	}
	if creds.SSID != "HomeNet" {
		t.Errorf("ssid = %q after rejected save, want %q", creds.SSID, "HomeNet")
	}
}

func TestErase(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("HomeNet", "secret123"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Erase(); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNotProvisioned) {
		t.Errorf("Load() after erase error = %v, want ErrNotProvisioned", err)
	}
}

func TestFieldTruncation(t *testing.T) {
	store := newTestStore(t)

	longSSID := strings.Repeat("s", 30)
	if err := store.Save(longSSID, "secret123"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Fields keep a NUL terminator, so 19 characters survive
	if want := strings.Repeat("s", 19); creds.SSID != want {
		t.Errorf("ssid = %q (len %d), want %q", creds.SSID, len(creds.SSID), want)
	}
}

func TestRecordMustFitRegion(t *testing.T) {
	device := storage.NewFileDevice(filepath.Join(t.TempDir(), "nvs.bin"))
	if _, err := New(device, 32, 0); err == nil {
		t.Error("New() with undersized region succeeded, want error")
	}
	if _, err := New(device, 64, 40); err == nil {
		t.Error("New() with offset past region end succeeded, want error")
	}
}
