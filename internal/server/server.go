package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
	"github.com/muurk/otaportal/internal/portal"
	"github.com/muurk/otaportal/internal/update"
)

const (
	readHeaderTimeout = 10 * time.Second

	// restartAfterUpdate is the grace period between acknowledging a
	// firmware upload and restarting, long enough for the response to
	// reach the client.
	restartAfterUpdate = 2 * time.Second

	// restartAfterRequest follows a deliberate restart request.
	restartAfterRequest = time.Second
)

// Server serves the portal over HTTP on a single listener.
type Server struct {
	core     *portal.Controller
	engine   update.Engine
	router   *mux.Router
	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

// New builds a server around the portal core. The update engine receives
// firmware uploads; pass nil to reject uploads outright.
func New(core *portal.Controller, engine update.Engine) *Server {
	s := &Server{
		core:   core,
		engine: engine,
		upgrader: websocket.Upgrader{
			// Captive-portal clients connect from synthesized origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	s.httpSrv = &http.Server{
		Addr:              core.Options().ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens and serves until Shutdown is called. It returns nil on a
// clean shutdown.
func (s *Server) Start() error {
	logging.Info("HTTP server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("HTTP server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	// Captive-portal probes from Android and Windows land on the index
	r.HandleFunc("/generate_204", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/fwlink", s.handleIndex).Methods(http.MethodGet)

	r.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/wifimanage", s.handleWifiManage).Methods(http.MethodGet)
	r.HandleFunc("/save-wifi", s.handleSaveWifi).Methods(http.MethodPost)
	r.HandleFunc("/update", s.handleUpdatePage).Methods(http.MethodGet)
	r.HandleFunc("/update", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/erase", s.handleErasePage).Methods(http.MethodGet)
	r.HandleFunc("/erase", s.handleErase).Methods(http.MethodPost)
	r.HandleFunc("/debug", s.handleDebug).Methods(http.MethodGet)
	r.HandleFunc("/restart", s.handleRestartPage).Methods(http.MethodGet)
	r.HandleFunc("/restart", s.handleRestart).Methods(http.MethodPost)
	r.HandleFunc("/pair", s.handlePairPreflight).Methods(http.MethodOptions)
	r.HandleFunc("/pair", s.handlePair).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket)

	// Everything else consults the custom page registry at request time
	r.NotFoundHandler = http.HandlerFunc(s.handleCustomPage)
	return r
}
