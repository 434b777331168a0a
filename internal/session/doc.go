// Package session fans events out to the live clients of the portal's
// shared websocket channel.
//
// One Broadcaster serves the whole device: debug console lines, scan
// results and pairing outcomes all travel over the same channel. Debug
// lines are additionally kept in a rolling buffer so the console page can
// show recent history; the buffer clears wholesale when its line cap is
// reached, trading completeness for bounded memory.
package session
