package announce

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
)

const (
	// ServiceType is the mDNS service the portal advertises under.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Announcer advertises the portal hostname over mDNS so the device is
// reachable by name once it holds a station address. Bring-up is retried
// on later ticks until it succeeds; failures are logged, escalating to
// warn once they repeat.
type Announcer struct {
	hostname string
	port     int

	mu       sync.Mutex
	server   *zeroconf.Server
	failures int
}

// New creates an announcer for the given hostname (without the ".local"
// suffix) and portal port.
func New(hostname string, port int) *Announcer {
	return &Announcer{hostname: hostname, port: port}
}

// Started reports whether the advertisement is active
func (a *Announcer) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// TryStart attempts mDNS bring-up. It is a no-op while already started
// or while no station address exists (the service is only usable once
// the link has a non-null address).
func (a *Announcer) TryStart(stationIP net.IP) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil || stationIP == nil {
		return nil
	}

	server, err := zeroconf.Register(
		a.hostname,
		ServiceType,
		ServiceDomain,
		a.port,
		[]string{"path=/"},
		nil,
	)
	if err != nil {
		a.failures++
		if a.failures%10 == 1 {
			logging.Warn("mDNS bring-up failed, will retry",
				zap.String("hostname", a.hostname),
				zap.Int("failures", a.failures),
				zap.Error(err),
			)
		}
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	a.server = server
	a.failures = 0
	logging.Info("mDNS service registered",
		zap.String("hostname", a.hostname+".local"),
		zap.Int("port", a.port),
	)
	return nil
}

// Stop withdraws the advertisement
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
