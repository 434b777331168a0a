package radio

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
)

// Simulated is an in-memory Driver used by the serve command when no real
// radio backend is configured, and by tests that need scripted link and
// scan behavior.
type Simulated struct {
	mu sync.Mutex

	mode      Mode
	apUp      bool
	apSSID    string
	linked    bool
	stationIP net.IP

	scanActive bool
	scanQueue  [][]Network
	scanErr    error

	// AcceptConnect controls whether BeginConnect results in a link.
	// When nil every connect attempt succeeds.
	AcceptConnect func(ssid, password string) bool
}

// NewSimulated creates a simulated radio with no link and no scan results.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// SetMode switches the simulated radio role
func (s *Simulated) SetMode(mode Mode) error {
	if mode == ModeAuto {
		return fmt.Errorf("cannot set unresolved mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if !mode.StationCapable() {
		s.linked = false
		s.stationIP = nil
	}
	if !mode.AccessPointCapable() {
		s.apUp = false
	}
	return nil
}

// StartAccessPoint brings up the simulated broadcast network
func (s *Simulated) StartAccessPoint(ssid, password string) (net.IP, error) {
	if ssid == "" {
		return nil, fmt.Errorf("access point ssid cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apUp = true
	s.apSSID = ssid
	logging.Debug("Simulated access point up", zap.String("ssid", ssid))
	return net.IPv4(192, 168, 4, 1), nil
}

// BeginConnect starts a simulated association attempt
func (s *Simulated) BeginConnect(ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mode.StationCapable() {
		return fmt.Errorf("radio not in a station-capable mode")
	}
	accept := s.AcceptConnect
	if accept == nil || accept(ssid, password) {
		s.linked = true
		s.stationIP = net.IPv4(192, 168, 1, 50)
	} else {
		s.linked = false
		s.stationIP = nil
	}
	return nil
}

// Disconnect drops the simulated association
func (s *Simulated) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked = false
	s.stationIP = nil
	return nil
}

// Linked reports the simulated link state
func (s *Simulated) Linked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked
}

// SetLinked forces the link state. Used to script link drops in tests.
func (s *Simulated) SetLinked(linked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked = linked
	if linked {
		s.stationIP = net.IPv4(192, 168, 1, 50)
	} else {
		s.stationIP = nil
	}
}

// StationIP returns the simulated station address
func (s *Simulated) StationIP() net.IP {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stationIP
}

// QueueScanResult schedules the result set the next completed scan returns.
func (s *Simulated) QueueScanResult(networks []Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanQueue = append(s.scanQueue, networks)
}

// FailNextScan makes the next scan complete with the given error.
func (s *Simulated) FailNextScan(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanErr = err
}

// StartScan begins a simulated scan
func (s *Simulated) StartScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanActive {
		return fmt.Errorf("scan already in progress")
	}
	s.scanActive = true
	return nil
}

// PollScan completes any active simulated scan immediately
func (s *Simulated) PollScan() ([]Network, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanActive {
		return nil, false, nil
	}
	s.scanActive = false
	if s.scanErr != nil {
		err := s.scanErr
		s.scanErr = nil
		return nil, true, err
	}
	if len(s.scanQueue) == 0 {
		return []Network{}, true, nil
	}
	networks := s.scanQueue[0]
	s.scanQueue = s.scanQueue[1:]
	return networks, true, nil
}

// AccessPointUp reports whether the simulated broadcast network is active
func (s *Simulated) AccessPointUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apUp
}

// AccessPointSSID returns the advertised ssid, if the AP is up
func (s *Simulated) AccessPointSSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apSSID
}
