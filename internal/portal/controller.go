package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/announce"
	"github.com/muurk/otaportal/internal/config"
	"github.com/muurk/otaportal/internal/credentials"
	"github.com/muurk/otaportal/internal/logging"
	"github.com/muurk/otaportal/internal/netmgr"
	"github.com/muurk/otaportal/internal/pages"
	"github.com/muurk/otaportal/internal/pairing"
	"github.com/muurk/otaportal/internal/radio"
	"github.com/muurk/otaportal/internal/session"
	"github.com/muurk/otaportal/internal/update"
)

// livenessInterval is how often the pure-station liveness re-check runs.
const livenessInterval = 10 * time.Second

// pairingSuccessMessage and pairingFailureMessage are the outcome
// payloads announced over the live session channel.
const (
	pairingSuccessMessage = `{"status":"success","message":"Pairing successful"}`
	pairingFailureMessage = `{"status":"error","message":"Pairing failed"}`
)

// CredentialsSavedFunc is the optional strategy invoked instead of the
// default persistence path when credentials arrive from the portal.
type CredentialsSavedFunc func(ssid, passphrase string)

// Controller ties the connectivity components together and exposes the
// surface the transport layer calls into. One controller instance is
// passed explicitly wherever it is needed; there is no ambient global.
type Controller struct {
	opts      config.Options
	driver    radio.Driver
	creds     *credentials.Store
	conn      *netmgr.Manager
	scanner   *netmgr.Scanner
	session   *session.Broadcaster
	arbiter   *pairing.Arbiter
	registry  *pages.Registry
	announcer *announce.Announcer
	restart   update.Restarter

	mu                 sync.Mutex
	onCredentialsSaved CredentialsSavedFunc
	lastLivenessCheck  time.Time
	startedAt          time.Time

	// now is swappable for tests
	now func() time.Time
}

// New wires a controller from its collaborators.
func New(opts config.Options, driver radio.Driver, creds *credentials.Store, restart update.Restarter) *Controller {
	if restart == nil {
		restart = func(time.Duration) {}
	}
	return &Controller{
		opts:   opts,
		driver: driver,
		creds:  creds,
		conn: netmgr.New(driver, creds, netmgr.Options{
			APSSID:               opts.APSSID,
			APPassword:           opts.APPassword,
			ConnectTimeout:       opts.ConnectTimeout,
			ReconnectDelay:       opts.ReconnectDelay,
			MaxReconnectAttempts: opts.MaxReconnectAttempts,
		}),
		scanner:   netmgr.NewScanner(driver),
		session:   session.New(opts.DebugLogMax),
		arbiter:   pairing.New(),
		registry:  pages.NewRegistry(),
		announcer: announce.New(opts.Domain, listenPort(opts.ListenAddr)),
		restart:   restart,
		now:       time.Now,
	}
}

// ResolveAndStart resolves the requested radio mode and brings the
// device up in it. Called once at startup, before the run loop.
func (c *Controller) ResolveAndStart(requested radio.Mode) error {
	resolved, err := c.conn.Start(requested)
	if err != nil {
		return NewTransientNetworkError("failed to start "+resolved.String()+" mode", err)
	}
	c.mu.Lock()
	c.startedAt = c.now()
	c.mu.Unlock()
	return nil
}

// Run drives the control loop until ctx is cancelled. It is the only
// long-lived task of the core; transport callbacks interleave with it.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	logging.Info("Control loop running",
		zap.Duration("tick_interval", c.opts.TickInterval),
		zap.String("mode", c.conn.Mode().String()),
	)
	for {
		select {
		case <-ctx.Done():
			c.announcer.Stop()
			logging.Info("Control loop stopped")
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick services one control-loop iteration: name-resolution bring-up,
// network-failure recovery, the pending pairing result, and any
// completed scan.
func (c *Controller) Tick() {
	mode := c.conn.Mode()

	// Name broadcast needs a station address before it can come up
	if mode.StationCapable() {
		_ = c.announcer.TryStart(c.driver.StationIP())
	}

	if mode.StationCapable() && !c.conn.Connected() {
		if c.conn.Recover() == netmgr.RecoverCycleReset {
			c.session.AppendDebugLine("Max reconnection attempts reached")
		}
	}

	if accepted, ok := c.arbiter.DrainPending(); ok {
		if accepted {
			logging.Info("Pairing successful")
			c.session.BroadcastText(pairingSuccessMessage)
		} else {
			logging.Warn("Pairing failed")
			c.session.BroadcastText(pairingFailureMessage)
		}
	}

	if c.scanner.Pending() {
		if result, ok := c.scanner.PollCompletion(); ok && !result.Failed {
			c.session.BroadcastText(encodeNetworks(result.Networks))
		}
	}

	// Periodic liveness re-check in pure station mode; a drop triggers
	// recovery immediately rather than waiting out the interval
	if mode == radio.ModeStation {
		c.mu.Lock()
		due := c.now().Sub(c.lastLivenessCheck) >= livenessInterval
		if due {
			c.lastLivenessCheck = c.now()
		}
		c.mu.Unlock()
		if due {
			wasConnected := c.conn.Connected()
			if !c.conn.Liveness() && wasConnected {
				logging.Warn("Station link lost")
				c.conn.Recover()
			}
		}
	}
}

// SaveCredentials validates and persists new network credentials.
// Validation happens before anything else: a rejected pair never reaches
// the strategy or storage. When a credentials-saved strategy is
// registered it owns persistence; the default path writes to the store
// and schedules a restart so the device comes back up in station mode.
func (c *Controller) SaveCredentials(ssid, passphrase string) error {
	if err := credentials.Validate(ssid, passphrase); err != nil {
		return NewValidationError(err.Error())
	}

	c.mu.Lock()
	strategy := c.onCredentialsSaved
	c.mu.Unlock()

	if strategy != nil {
		strategy(ssid, passphrase)
		return nil
	}

	if err := c.creds.Save(ssid, passphrase); err != nil {
		if errors.Is(err, credentials.ErrEmptySSID) || errors.Is(err, credentials.ErrPassphraseTooShort) {
			return NewValidationError(err.Error())
		}
		return NewPersistenceError("failed to save credentials", err)
	}
	logging.Info("Credentials saved, scheduling restart", zap.String("ssid", ssid))
	c.restart(time.Second)
	return nil
}

// EraseCredentials clears the stored credential record.
func (c *Controller) EraseCredentials() error {
	if err := c.creds.Erase(); err != nil {
		return NewPersistenceError("failed to erase credentials", err)
	}
	logging.Info("Credentials erased")
	return nil
}

// RequestScanOrServeCached starts a live scan, except in pure station
// mode where scanning could disrupt the active association; there the
// cached result set (possibly empty) is republished instead.
func (c *Controller) RequestScanOrServeCached() error {
	if c.conn.Mode() == radio.ModeStation {
		result := c.scanner.PublishCached()
		c.session.BroadcastText(encodeNetworks(result.Networks))
		return nil
	}
	if err := c.scanner.RequestScan(); err != nil {
		return NewTransientNetworkError("failed to start network scan", err)
	}
	return nil
}

// SubmitPairing validates an inbound pairing payload and hands it to the
// registered decision. Malformed payloads are rejected as protocol
// errors before the decision runs; ErrBusy and ErrNoDecision pass
// through for the transport layer to map.
func (c *Controller) SubmitPairing(payload []byte) error {
	_, err := c.arbiter.Submit(payload)
	if err != nil {
		if pairing.IsValidationError(err) {
			return NewProtocolError(err.Error())
		}
		return err
	}
	return nil
}

// ResolvePairing posts the asynchronous pairing verdict. The outcome is
// announced over the session channel on the next tick.
func (c *Controller) ResolvePairing(accepted bool) {
	c.arbiter.Resolve(accepted)
}

// OnPaired installs the pairing decision callback.
func (c *Controller) OnPaired(fn pairing.Decision) {
	c.arbiter.OnDecision(fn)
}

// OnCredentialsSaved installs the credentials-saved strategy. Passing nil
// restores the default persistence path.
func (c *Controller) OnCredentialsSaved(fn CredentialsSavedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCredentialsSaved = fn
}

// AppendDebugLine feeds a line into the debug console.
func (c *Controller) AppendDebugLine(text string) {
	c.session.AppendDebugLine(text)
}

// RegisterCustomPage adds a user page next to the built-in routes.
func (c *Controller) RegisterCustomPage(path, content string, get, post pages.Handler) {
	c.registry.Register(path, content, get, post)
}

// Session returns the shared live-session broadcaster.
func (c *Controller) Session() *session.Broadcaster {
	return c.session
}

// Pages returns the custom page registry.
func (c *Controller) Pages() *pages.Registry {
	return c.registry
}

// Options returns the daemon options the controller was built with.
func (c *Controller) Options() config.Options {
	return c.opts
}

// Mode returns the current resolved radio mode.
func (c *Controller) Mode() radio.Mode {
	return c.conn.Mode()
}

// Connected reports the last observed station connection state.
func (c *Controller) Connected() bool {
	return c.conn.Connected()
}

// StationIP returns the station address, or nil when not associated.
func (c *Controller) StationIP() net.IP {
	return c.driver.StationIP()
}

// Restart schedules the deliberate device restart.
func (c *Controller) Restart(after time.Duration) {
	c.restart(after)
}

// Uptime reports how long the portal has been started.
func (c *Controller) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return c.now().Sub(c.startedAt)
}

// scanEntry is the wire shape of one scan result entry.
type scanEntry struct {
	SSID       string `json:"ssid"`
	RSSI       int    `json:"rssi"`
	Channel    int    `json:"channel"`
	Encryption string `json:"encryption"`
}

// encodeNetworks renders a result set as the JSON array sent to clients
func encodeNetworks(networks []radio.Network) string {
	entries := make([]scanEntry, 0, len(networks))
	for _, n := range networks {
		entries = append(entries, scanEntry{
			SSID:       n.SSID,
			RSSI:       n.RSSI,
			Channel:    n.Channel,
			Encryption: n.Encryption.String(),
		})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// listenPort extracts the TCP port from a listen address, defaulting to 80
func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 80
	}
	return port
}
