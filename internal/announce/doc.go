// Package announce advertises the portal over mDNS.
//
// The device registers its hostname as an _http._tcp service once the
// station link holds an address, letting clients on the same network
// reach the portal by name instead of IP. Registration is retried from
// the control loop until it succeeds.
package announce
