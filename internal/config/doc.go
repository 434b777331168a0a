// Package config loads and persists the portal daemon options.
//
// Options cover the device's broadcast identity, the portal presentation
// strings, the reserved storage region, and the tuning knobs of the
// connectivity state machine (reconnect delay, attempt budget, connect
// timeout, tick period). The file is YAML, lives under the user config
// directory by default, and is written atomically.
package config
