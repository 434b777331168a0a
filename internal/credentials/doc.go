// Package credentials owns the persisted network-credential record.
//
// The record is a fixed 50-byte layout {ssid[20], password[20], marker[10]}
// at a configurable offset within the reserved storage region. A record is
// only considered provisioned when the marker field holds the literal
// sentinel "true"; an erase writes an explicit "false" so erased and
// never-written storage stay distinguishable.
//
// Save validates input before touching storage and writes all three fields
// through a single commit, so no partial record is ever observable as
// provisioned.
package credentials
