// Package netmgr drives the radio connectivity state machine.
//
// Manager owns the resolved radio mode and every transition between
// access-point, station and dual operation. Its recovery policy is
// deliberately lenient: reconnect attempts are spaced by a configurable
// delay and counted against a per-cycle budget, and exhausting the budget
// only resets the counter - the device cycles rather than giving up, so a
// network that comes back hours later is still picked up.
//
// Scanner coordinates asynchronous network scans. Results are cached and
// the cache is republished verbatim in pure station mode, where starting
// a live scan could disrupt the active association.
package netmgr
