package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/otaportal/internal/storage"
)

// Record layout within the storage region. Strings are NUL-terminated and
// the trailing bytes are zero-padded, matching the fixed on-flash format
// {ssid[20], password[20], marker[10]}.
const (
	ssidFieldLen     = 20
	passwordFieldLen = 20
	markerFieldLen   = 10

	// RecordSize is the total size of the persisted credential record.
	RecordSize = ssidFieldLen + passwordFieldLen + markerFieldLen

	// MinPassphraseLen is the shortest passphrase Save accepts (WPA2 minimum).
	MinPassphraseLen = 8

	// markerProvisioned is the exact sentinel that marks a valid record.
	// Anything else, including uninitialized storage, means not provisioned.
	markerProvisioned = "true"
	markerErased      = "false"
)

// ErrNotProvisioned is returned by Load when no valid credential record
// has ever been saved, or after an erase.
var ErrNotProvisioned = errors.New("credentials not provisioned")

// ErrEmptySSID rejects a save with no network name.
var ErrEmptySSID = errors.New("ssid cannot be empty")

// ErrPassphraseTooShort rejects a save with a passphrase below the WPA2 minimum.
var ErrPassphraseTooShort = fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLen)

// Credentials is a stored network credential record.
type Credentials struct {
	SSID       string
	Passphrase string
}

// Store persists a single network-credential record at a fixed offset of
// a storage device. It is the only writer of that record; everything else
// observes credentials read-only through Load.
type Store struct {
	mu     sync.Mutex
	device storage.Device
	size   int
	offset int
}

// New creates a credential store over the given device region.
// size is the total reserved region size; offset locates the record in it.
func New(device storage.Device, size, offset int) (*Store, error) {
	if offset < 0 || offset+RecordSize > size {
		return nil, fmt.Errorf("credential record at offset %d does not fit region of %d bytes", offset, size)
	}
	return &Store{device: device, size: size, offset: offset}, nil
}

// Load reads the stored record. It returns ErrNotProvisioned unless the
// provisioned marker matches the sentinel exactly.
func (s *Store) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.device.Begin(s.size); err != nil {
		return Credentials{}, fmt.Errorf("failed to open storage: %w", err)
	}
	defer s.device.End()

	record := make([]byte, RecordSize)
	if err := s.device.Read(s.offset, record); err != nil {
		return Credentials{}, fmt.Errorf("failed to read credential record: %w", err)
	}

	marker := fieldString(record[ssidFieldLen+passwordFieldLen:])
	if marker != markerProvisioned {
		return Credentials{}, ErrNotProvisioned
	}

	return Credentials{
		SSID:       fieldString(record[:ssidFieldLen]),
		Passphrase: fieldString(record[ssidFieldLen : ssidFieldLen+passwordFieldLen]),
	}, nil
}

// Provisioned reports whether a valid record is currently stored.
func (s *Store) Provisioned() bool {
	_, err := s.Load()
	return err == nil
}

// Validate checks a candidate credential pair against the save rules
// without touching storage.
func Validate(ssid, passphrase string) error {
	if ssid == "" {
		return ErrEmptySSID
	}
	if len(passphrase) < MinPassphraseLen {
		return ErrPassphraseTooShort
	}
	return nil
}

// Save validates and persists new credentials. Validation failures are
// reported before storage is touched, so a rejected save leaves the
// previous record (or the not-provisioned state) fully intact.
func (s *Store) Save(ssid, passphrase string) error {
	if err := Validate(ssid, passphrase); err != nil {
		return err
	}
	return s.writeRecord(ssid, passphrase, markerProvisioned)
}

// Erase overwrites the record with empty credentials and an explicit
// "false" marker, distinct from never-written storage.
func (s *Store) Erase() error {
	return s.writeRecord("", "", markerErased)
}

// writeRecord persists all three fields in one commit; a failed commit
// leaves nothing readable as provisioned.
func (s *Store) writeRecord(ssid, passphrase, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := make([]byte, RecordSize)
	putField(record[:ssidFieldLen], ssid)
	putField(record[ssidFieldLen:ssidFieldLen+passwordFieldLen], passphrase)
	putField(record[ssidFieldLen+passwordFieldLen:], marker)

	if err := s.device.Begin(s.size); err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer s.device.End()

	if err := s.device.Write(s.offset, record); err != nil {
		return fmt.Errorf("failed to write credential record: %w", err)
	}
	if err := s.device.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential record: %w", err)
	}
	return nil
}

// fieldString reads a NUL-terminated string out of a fixed-size field
func fieldString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

// putField writes s into a fixed-size field, truncating to leave room for
// the NUL terminator
func putField(field []byte, s string) {
	max := len(field) - 1
	if len(s) > max {
		s = s[:max]
	}
	copy(field, s)
}
