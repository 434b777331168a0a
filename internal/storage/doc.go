// Package storage provides the persistent key-value region the credential
// store writes to.
//
// The Device interface mirrors embedded EEPROM/NVS semantics: a session is
// opened over a fixed-size region with Begin, reads and writes address raw
// offsets within it, and nothing persists until Commit. FileDevice is the
// host implementation, keeping the region in a small binary file and
// committing it atomically via a temp-file rename.
package storage
