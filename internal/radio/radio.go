package radio

import (
	"fmt"
	"net"
)

// Mode is the radio operating mode of the device.
type Mode int

const (
	// ModeAccessPoint advertises the device's own network only.
	ModeAccessPoint Mode = iota
	// ModeStation joins an existing access point as a client.
	ModeStation
	// ModeDual runs both roles concurrently on the same radio.
	ModeDual
	// ModeAuto is a transient request value. It is never an observed
	// steady state: mode resolution turns it into ModeStation when valid
	// stored credentials exist, ModeAccessPoint otherwise.
	ModeAuto
)

// String returns a human-readable name for the mode
func (m Mode) String() string {
	switch m {
	case ModeAccessPoint:
		return "access-point"
	case ModeStation:
		return "station"
	case ModeDual:
		return "dual"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name to its Mode value. Unknown names are an error.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "access-point", "ap":
		return ModeAccessPoint, nil
	case "station", "sta":
		return ModeStation, nil
	case "dual":
		return ModeDual, nil
	case "auto", "":
		return ModeAuto, nil
	default:
		return ModeAuto, fmt.Errorf("unknown radio mode %q", name)
	}
}

// StationCapable reports whether the mode includes a station role.
func (m Mode) StationCapable() bool {
	return m == ModeStation || m == ModeDual
}

// AccessPointCapable reports whether the mode includes an access-point role.
func (m Mode) AccessPointCapable() bool {
	return m == ModeAccessPoint || m == ModeDual
}

// EncryptionKind identifies the security scheme of a discovered network.
type EncryptionKind int

const (
	EncryptionOpen EncryptionKind = iota
	EncryptionWEP
	EncryptionWPA
	EncryptionWPA2
	EncryptionWPAWPA2
	EncryptionWPA3
	EncryptionUnknown
)

// String returns the display name used in scan result messages
func (e EncryptionKind) String() string {
	switch e {
	case EncryptionOpen:
		return "Open"
	case EncryptionWEP:
		return "WEP"
	case EncryptionWPA:
		return "WPA"
	case EncryptionWPA2:
		return "WPA2"
	case EncryptionWPAWPA2:
		return "WPA/WPA2"
	case EncryptionWPA3:
		return "WPA3"
	default:
		return "Unknown"
	}
}

// Network is a single entry of a completed scan, in discovery order.
type Network struct {
	SSID       string
	RSSI       int
	Channel    int
	Encryption EncryptionKind
}

// Driver is the capability surface of the underlying radio.
//
// Implementations are expected to be safe for use from a single control
// task interleaved with transport callbacks; individual calls must be
// atomic but no call blocks (connection progress is observed via Linked).
type Driver interface {
	// SetMode switches the radio role. Resolved modes only (never ModeAuto).
	SetMode(mode Mode) error

	// StartAccessPoint brings up the local broadcast network and returns
	// the address the portal is reachable on.
	StartAccessPoint(ssid, password string) (net.IP, error)

	// BeginConnect starts association with the given network. It returns
	// immediately; completion is observed by polling Linked.
	BeginConnect(ssid, password string) error

	// Disconnect drops the current station association, if any.
	Disconnect() error

	// Linked reports whether the link layer has an active association.
	Linked() bool

	// StationIP returns the station address, or nil when not associated.
	StationIP() net.IP

	// StartScan begins an asynchronous network scan.
	StartScan() error

	// PollScan reports scan progress. done is false while a scan is still
	// running. On completion it returns the discovered networks, or a
	// non-nil error when the scan failed.
	PollScan() (networks []Network, done bool, err error)
}
