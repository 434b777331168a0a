package netmgr

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/credentials"
	"github.com/muurk/otaportal/internal/logging"
	"github.com/muurk/otaportal/internal/radio"
)

const (
	// DefaultConnectTimeout bounds a foreground connection attempt.
	DefaultConnectTimeout = 20 * time.Second

	// DefaultReconnectTimeout bounds a single background reconnect attempt.
	DefaultReconnectTimeout = 5 * time.Second

	// DefaultReconnectDelay is the minimum spacing between reconnect attempts.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultMaxReconnectAttempts is the number of attempts per retry cycle.
	DefaultMaxReconnectAttempts = 3

	// linkPollInterval is how often Connect samples the link state.
	linkPollInterval = 500 * time.Millisecond
)

// ErrAccessPointOnly is returned by Connect when the radio is in pure
// access-point mode, where a station connection is disallowed entirely.
var ErrAccessPointOnly = errors.New("cannot connect to a network in access-point-only mode")

// ErrConnectTimeout is returned when the link did not come up within the
// attempt's timeout.
var ErrConnectTimeout = errors.New("connection attempt timed out")

// RecoverResult describes the outcome of one recovery-policy evaluation.
type RecoverResult int

const (
	// RecoverIdle means no attempt was due (delay not elapsed, or nothing
	// to reconnect to).
	RecoverIdle RecoverResult = iota
	// RecoverAttempted means a reconnect attempt ran (it may have failed).
	RecoverAttempted
	// RecoverCycleReset means the attempt budget was exhausted; the counter
	// was reset so a fresh cycle starts on the next eligible evaluation.
	RecoverCycleReset
)

// Options configures a connection manager.
type Options struct {
	// APSSID and APPassword are the device's own broadcast identity.
	APSSID     string
	APPassword string

	ConnectTimeout       time.Duration
	ReconnectTimeout     time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// Manager owns the resolved radio mode and drives every transition:
// bring-up, foreground connection attempts with timeout, disconnection,
// and the bounded-retry reconnection policy.
//
// All retry state lives in explicit fields so it is inspectable and so
// parallel instances (tests) never share counters.
type Manager struct {
	driver radio.Driver
	creds  *credentials.Store
	opts   Options

	mu                sync.Mutex
	mode              radio.Mode
	connected         bool
	autoReconnect     bool
	reconnectAttempts int
	lastAttempt       time.Time

	// now and sleep are swappable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a connection manager. Zero option fields get defaults.
func New(driver radio.Driver, creds *credentials.Store, opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReconnectTimeout <= 0 {
		opts.ReconnectTimeout = DefaultReconnectTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	return &Manager{
		driver:        driver,
		creds:         creds,
		opts:          opts,
		mode:          radio.ModeAccessPoint,
		autoReconnect: true,
		now:           time.Now,
		sleep:         time.Sleep,
	}
}

// ResolveMode turns a requested mode into the mode the device will run.
// ModeAuto resolves to station when valid stored credentials exist and to
// access-point otherwise. A station-capable request without stored
// credentials also falls back to access-point: there is nothing to join.
func (m *Manager) ResolveMode(requested radio.Mode) radio.Mode {
	if !requested.StationCapable() && requested != radio.ModeAuto {
		return requested
	}
	if !m.creds.Provisioned() {
		logging.Info("No stored credentials, resolving to access-point mode",
			zap.String("requested", requested.String()),
		)
		return radio.ModeAccessPoint
	}
	if requested == radio.ModeAuto {
		return radio.ModeStation
	}
	return requested
}

// Start resolves the requested mode and brings the radio up in it.
// For dual mode the local broadcast comes up alongside the station
// attempt and only a failed station attempt fails the start.
func (m *Manager) Start(requested radio.Mode) (radio.Mode, error) {
	resolved := m.ResolveMode(requested)
	logging.LogModeChange(requested.String(), resolved.String())

	if err := m.driver.SetMode(resolved); err != nil {
		return resolved, fmt.Errorf("failed to switch radio mode: %w", err)
	}

	m.mu.Lock()
	m.mode = resolved
	m.connected = false
	m.reconnectAttempts = 0
	m.mu.Unlock()

	switch resolved {
	case radio.ModeAccessPoint:
		ip, err := m.driver.StartAccessPoint(m.opts.APSSID, m.opts.APPassword)
		if err != nil {
			return resolved, fmt.Errorf("failed to start access point: %w", err)
		}
		logging.Info("Access point up",
			zap.String("ssid", m.opts.APSSID),
			zap.String("ip", ip.String()),
		)

	case radio.ModeStation:
		if err := m.connectStored(m.opts.ConnectTimeout); err != nil {
			return resolved, err
		}

	case radio.ModeDual:
		ip, err := m.driver.StartAccessPoint(m.opts.APSSID+"_AP", m.opts.APPassword)
		if err != nil {
			logging.Warn("Failed to start access point in dual mode", zap.Error(err))
		} else {
			logging.Info("Access point up",
				zap.String("ssid", m.opts.APSSID+"_AP"),
				zap.String("ip", ip.String()),
			)
		}
		if err := m.connectStored(m.opts.ConnectTimeout); err != nil {
			return resolved, err
		}
	}

	return resolved, nil
}

// connectStored runs a connection attempt against the saved credentials
func (m *Manager) connectStored(timeout time.Duration) error {
	creds, err := m.creds.Load()
	if err != nil {
		return fmt.Errorf("no stored credentials to connect with: %w", err)
	}
	return m.Connect(creds.SSID, creds.Passphrase, timeout)
}

// Connect blocks the calling task, polling link status until the
// association comes up or timeout elapses. It must not be called from a
// context that also services the transport layer. In access-point-only
// mode it fails immediately with no side effects.
func (m *Manager) Connect(ssid, passphrase string, timeout time.Duration) error {
	m.mu.Lock()
	if m.mode == radio.ModeAccessPoint {
		m.mu.Unlock()
		return ErrAccessPointOnly
	}
	m.mu.Unlock()

	logging.Info("Connecting to network", zap.String("ssid", ssid))
	if err := m.driver.BeginConnect(ssid, passphrase); err != nil {
		return fmt.Errorf("failed to start connection attempt: %w", err)
	}

	start := m.now()
	for !m.driver.Linked() {
		if m.now().Sub(start) >= timeout {
			logging.Warn("Connection attempt timed out", zap.String("ssid", ssid))
			return ErrConnectTimeout
		}
		m.sleep(linkPollInterval)
	}

	m.mu.Lock()
	m.connected = true
	m.reconnectAttempts = 0
	m.mu.Unlock()
	logging.Info("Connected to network", zap.String("ssid", ssid))
	return nil
}

// Disconnect drops the station association. It is an idempotent no-op in
// access-point-only mode and when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	stationCapable := m.mode.StationCapable()
	m.mu.Unlock()
	if !stationCapable {
		return
	}
	if err := m.driver.Disconnect(); err != nil {
		logging.Warn("Disconnect failed", zap.Error(err))
	}
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

// Liveness samples the link layer and updates the connected flag.
func (m *Manager) Liveness() bool {
	linked := m.driver.Linked()
	m.mu.Lock()
	m.connected = linked
	m.mu.Unlock()
	return linked
}

// Recover evaluates the reconnection policy once. Callers invoke it on
// every tick while the device is in a station-capable mode, disconnected,
// and auto-reconnect is enabled.
//
// Attempts are spaced by at least the reconnect delay. Once the attempt
// budget is exhausted the counter resets and the result surfaces the
// condition, but the process never permanently gives up: the next eligible
// evaluation begins a fresh cycle.
func (m *Manager) Recover() RecoverResult {
	m.mu.Lock()
	if !m.mode.StationCapable() || !m.autoReconnect {
		m.mu.Unlock()
		return RecoverIdle
	}
	if m.now().Sub(m.lastAttempt) < m.opts.ReconnectDelay {
		m.mu.Unlock()
		return RecoverIdle
	}
	if m.reconnectAttempts >= m.opts.MaxReconnectAttempts {
		m.reconnectAttempts = 0
		m.mu.Unlock()
		logging.Warn("Max reconnection attempts reached, starting a fresh cycle")
		return RecoverCycleReset
	}
	m.reconnectAttempts++
	m.lastAttempt = m.now()
	attempt := m.reconnectAttempts
	m.mu.Unlock()

	logging.Info("Attempting to reconnect",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", m.opts.MaxReconnectAttempts),
	)
	m.Disconnect()
	if err := m.connectStored(m.opts.ReconnectTimeout); err != nil {
		logging.Warn("Reconnect attempt failed", zap.Error(err))
	}
	return RecoverAttempted
}

// Mode returns the current resolved radio mode
func (m *Manager) Mode() radio.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Connected returns the last observed connection state
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ReconnectAttempts returns the attempt counter of the current retry cycle
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectAttempts
}

// SetAutoReconnect enables or disables the background recovery policy
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}
