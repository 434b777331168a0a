package session

import (
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
)

// DefaultLogCap is the default number of debug lines kept before the
// rolling buffer clears.
const DefaultLogCap = 200

// Broadcaster fans textual events out to every attached live client of
// the shared duplex channel and keeps a bounded rolling buffer of debug
// output. Losing buffered lines when the cap is reached is intentional:
// this is a rolling window, not a durable log.
type Broadcaster struct {
	mu           sync.Mutex
	clients      map[*websocket.Conn]bool
	debugViewing bool

	logBuf   strings.Builder
	logLines int
	logCap   int
}

// New creates a broadcaster with the given debug-line cap.
// A cap of zero or less falls back to DefaultLogCap.
func New(logCap int) *Broadcaster {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	return &Broadcaster{
		clients: make(map[*websocket.Conn]bool),
		logCap:  logCap,
	}
}

// Attach registers a live client connection
func (b *Broadcaster) Attach(conn *websocket.Conn) {
	b.mu.Lock()
	b.clients[conn] = true
	count := len(b.clients)
	b.mu.Unlock()
	logging.LogConnection(conn.RemoteAddr().String(), "session_attached")
	logging.Debug("Live client attached", zap.Int("clients", count))
}

// Detach removes a live client connection
func (b *Broadcaster) Detach(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	count := len(b.clients)
	b.mu.Unlock()
	logging.Debug("Live client detached", zap.Int("clients", count))
}

// ClientCount returns the number of attached live clients
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// SetDebugViewing flags whether a debug-viewing client is attached.
// While unset, debug lines are buffered silently instead of broadcast.
func (b *Broadcaster) SetDebugViewing(viewing bool) {
	b.mu.Lock()
	b.debugViewing = viewing
	b.mu.Unlock()
}

// DebugViewing reports whether debug output is being watched live
func (b *Broadcaster) DebugViewing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debugViewing
}

// BroadcastText fans a text message out to every attached client.
// With no clients attached it is side-effect free. Clients whose write
// fails are dropped.
func (b *Broadcaster) BroadcastText(message string) {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
			logging.Warn("Dropping live client after write failure",
				zap.String("remote_addr", conn.RemoteAddr().String()),
				zap.Error(err),
			)
			b.Detach(conn)
			_ = conn.Close()
		}
	}
}

// AppendDebugLine normalizes a raw debug line into its display-safe form,
// appends it to the rolling buffer, and broadcasts it live only while a
// debug viewer is attached. Returns the normalized line.
func (b *Broadcaster) AppendDebugLine(raw string) string {
	formatted := normalizeDebugLine(raw)

	b.mu.Lock()
	// Cap reached: clear buffer and counter together before appending
	if b.logLines >= b.logCap {
		b.logBuf.Reset()
		b.logLines = 0
	}
	b.logBuf.WriteString(formatted)
	b.logBuf.WriteString("<br/>")
	b.logLines++
	viewing := b.debugViewing
	b.mu.Unlock()

	if viewing {
		b.BroadcastText(formatted)
	}
	return formatted
}

// DebugHistory returns the buffered debug output
func (b *Broadcaster) DebugHistory() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logBuf.String()
}

// DebugLineCount returns the number of lines currently buffered
func (b *Broadcaster) DebugLineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logLines
}

// normalizeDebugLine replaces control characters with display-safe
// equivalents: newlines become <br/>, carriage returns are stripped,
// tabs become &emsp;.
func normalizeDebugLine(raw string) string {
	formatted := strings.ReplaceAll(raw, "\n", "<br/>")
	formatted = strings.ReplaceAll(formatted, "\r", "")
	formatted = strings.ReplaceAll(formatted, "\t", "&emsp;")
	return formatted
}
