// Package server is the HTTP and WebSocket surface of the device portal.
//
// The router exposes the built-in portal routes (index, Wi-Fi management,
// firmware update, erase, debug console, restart, pairing) plus the
// captive-portal probe paths that funnel clients to the index page.
// Requests that match no built-in route fall through to the custom page
// registry, so pages registered at runtime are served without touching
// the router.
//
// Handlers translate core errors into wire responses; they never reach
// into storage or the radio directly. The WebSocket endpoint attaches
// clients to the shared session broadcaster, over which scan results,
// pairing verdicts, and debug output are pushed.
package server
