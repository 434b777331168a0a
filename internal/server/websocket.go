package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
)

// handleWebSocket upgrades the request and attaches the client to the
// shared session channel. Inbound text frames are echoed into the debug
// console; the connection stays attached until the read loop fails.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	session := s.core.Session()
	session.Attach(conn)
	defer func() {
		session.Detach(conn)
		conn.Close()
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Live client read error",
					zap.String("remote_addr", conn.RemoteAddr().String()),
					zap.Error(err),
				)
			}
			return
		}
		if msgType == websocket.TextMessage {
			s.core.AppendDebugLine("Received message: " + string(payload))
		}
	}
}
