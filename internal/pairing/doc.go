// Package pairing arbitrates the device pairing handshake.
//
// An inbound payload is validated structurally (shape and field
// constraints) before any user logic runs; a malformed request never
// reaches the decision callback. Structurally valid requests are handed
// to the externally supplied accept/reject decision, and the verdict
// comes back asynchronously: the owner calls Resolve, and the control
// loop drains the outcome on a later tick to announce it over the live
// session channel.
//
// Only one request may be in flight; concurrent submissions are rejected.
package pairing
