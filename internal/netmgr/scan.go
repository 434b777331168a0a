package netmgr

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
	"github.com/muurk/otaportal/internal/radio"
)

// NoScanYet is the cached-count sentinel meaning no scan has completed
// since startup, or the last scan failed.
const NoScanYet = -1

// ScanResult is the outcome of one completed scan. Entries keep their
// discovery order; no re-sorting is imposed.
type ScanResult struct {
	Networks []radio.Network
	Failed   bool
}

// Scanner issues asynchronous network scans, caches the last completed
// result set, and republishes the cache when a live scan is not
// appropriate for the current radio mode.
type Scanner struct {
	driver radio.Driver

	mu          sync.Mutex
	pending     bool
	cached      []radio.Network
	cachedCount int
}

// NewScanner creates a scan coordinator with an empty cache.
func NewScanner(driver radio.Driver) *Scanner {
	return &Scanner{driver: driver, cachedCount: NoScanYet}
}

// RequestScan starts an asynchronous scan and marks it pending. It never
// blocks; completion is picked up by PollCompletion on a later tick.
func (s *Scanner) RequestScan() error {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil
	}
	s.pending = true
	s.mu.Unlock()

	if err := s.driver.StartScan(); err != nil {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
		return fmt.Errorf("failed to start scan: %w", err)
	}
	logging.Debug("Network scan started")
	return nil
}

// Pending reports whether a requested scan has not completed yet
func (s *Scanner) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// PollCompletion checks for a finished scan. While none is ready it
// returns (nil, false). On completion the cache is replaced atomically
// and the new result returned; a failed scan invalidates the cache count
// and yields an empty result with the failure marker set.
func (s *Scanner) PollCompletion() (*ScanResult, bool) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if !pending {
		return nil, false
	}

	networks, done, err := s.driver.PollScan()
	if !done {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false

	if err != nil {
		logging.Warn("Network scan failed", zap.Error(err))
		s.cached = nil
		s.cachedCount = NoScanYet
		return &ScanResult{Failed: true}, true
	}

	s.cached = append([]radio.Network(nil), networks...)
	s.cachedCount = len(networks)
	logging.Info("Network scan completed", zap.Int("networks", s.cachedCount))
	return &ScanResult{Networks: append([]radio.Network(nil), networks...)}, true
}

// PublishCached returns the last completed result set, or an explicit
// empty set when none exists. It never triggers a new scan; it is the
// path used in pure station mode where scanning could disrupt the
// active association.
func (s *Scanner) PublishCached() ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cachedCount <= NoScanYet {
		return ScanResult{Networks: []radio.Network{}}
	}
	return ScanResult{Networks: append([]radio.Network(nil), s.cached...)}
}

// CachedCount returns the entry count of the cache, or NoScanYet.
func (s *Scanner) CachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedCount
}
