// Package radio defines the capability surface of the device radio.
//
// The connectivity core never talks to radio hardware directly; it is
// written against the Driver interface, which models the operations the
// portal needs: role switching between access-point, station and dual
// modes, non-blocking association attempts, asynchronous scans, and a
// liveness query.
//
// The package ships a Simulated driver with scriptable link and scan
// behavior. It backs the serve command when no hardware driver is wired
// in and gives the state-machine tests deterministic control over link
// drops and scan outcomes.
package radio
