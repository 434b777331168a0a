package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
	"github.com/muurk/otaportal/internal/pairing"
	"github.com/muurk/otaportal/internal/portal"
)

// runtimeUptimeResolution is how coarsely uptime is shown on the info page.
const runtimeUptimeResolution = time.Second

// writeHTML sends an HTML response body.
func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// writeText sends a plain-text response body.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// writeJSONStatus sends the {"status","message"} envelope the pairing
// endpoint speaks.
func writeJSONStatus(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":%q,"message":%q}`, kind, message)
}

// renderPage substitutes the portal placeholders into a template.
func (s *Server) renderPage(tmpl string) string {
	opts := s.core.Options()
	heading := opts.PortalTitle
	if heading == "" {
		heading = opts.ProductName
	}
	out := strings.ReplaceAll(tmpl, "%PORTAL_HEADING%", heading)
	out = strings.ReplaceAll(out, "%CUSTOM_DOMAIN%", opts.Domain)
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Leaving the debug page drops live debug streaming
	s.core.Session().SetDebugViewing(false)

	link := ""
	if first := s.core.Pages().First(); first != nil {
		link = fmt.Sprintf(`<li><a href="%s">%s</a></li>`, first.Path, strings.TrimPrefix(first.Path, "/"))
	}
	body := strings.ReplaceAll(s.renderPage(indexHTML), "%CUSTOM_PAGE_LINK%", link)
	writeHTML(w, http.StatusOK, body)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	opts := s.core.Options()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	ip := "none"
	if addr := s.core.StationIP(); addr != nil {
		ip = addr.String()
	}

	var rows strings.Builder
	row := func(k, v string) {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%s</td></tr>\n", k, v)
	}
	row("Product", opts.ProductName)
	row("Firmware Version", opts.FirmwareVersion)
	row("Radio Mode", s.core.Mode().String())
	row("Station IP", ip)
	row("AP SSID", opts.APSSID)
	row("Uptime", s.core.Uptime().Round(runtimeUptimeResolution).String())
	row("Runtime", runtime.Version())
	row("Platform", runtime.GOOS+"/"+runtime.GOARCH)
	row("CPUs", fmt.Sprintf("%d", runtime.NumCPU()))
	row("Heap In Use", fmt.Sprintf("%d KiB", mem.HeapAlloc/1024))

	body := strings.ReplaceAll(s.renderPage(infoHTML), "%DEVICE_INFO%", rows.String())
	writeHTML(w, http.StatusOK, body)
}

func (s *Server) handleWifiManage(w http.ResponseWriter, r *http.Request) {
	// Page load triggers a scan so results are streaming by the time the
	// client's live channel is up. In pure station mode the cached set is
	// republished instead.
	if err := s.core.RequestScanOrServeCached(); err != nil {
		logging.Warn("Scan request failed", zap.Error(err))
	}
	writeHTML(w, http.StatusOK, s.renderPage(wifiManageHTML))
}

func (s *Server) handleSaveWifi(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "Missing SSID or password")
		return
	}
	ssid := r.PostFormValue("ssid")
	password := r.PostFormValue("password")

	if err := s.core.SaveCredentials(ssid, password); err != nil {
		if portal.IsValidationError(err) {
			writeText(w, http.StatusBadRequest, portal.Message(err))
			return
		}
		logging.Error("Credential save failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Failed to save credentials")
		return
	}
	writeText(w, http.StatusOK, "WiFi credentials saved")
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, s.renderPage(updateHTML))
}

// handleUpload streams a multipart firmware image into the update engine
// and restarts the device after acknowledging the result.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Connection", "close")

	if s.engine == nil {
		writeText(w, http.StatusInternalServerError, "FAIL")
		return
	}

	err := s.receiveFirmware(r)
	if err != nil {
		logging.Error("Firmware update failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "FAIL")
	} else {
		logging.Info("Firmware update staged, scheduling restart")
		writeText(w, http.StatusOK, "OK")
	}
	s.core.Restart(restartAfterUpdate)
}

func (s *Server) receiveFirmware(r *http.Request) error {
	mr, err := r.MultipartReader()
	if err != nil {
		return fmt.Errorf("not a multipart upload: %w", err)
	}
	part, err := firmwarePart(mr)
	if err != nil {
		return err
	}
	defer part.Close()

	if err := s.engine.Begin(r.ContentLength); err != nil {
		return err
	}
	_, copyErr := io.Copy(s.engine, part)
	if endErr := s.engine.End(copyErr == nil); endErr != nil {
		return endErr
	}
	if copyErr != nil {
		return copyErr
	}
	// The engine may flag an in-band failure even when every call returned
	// cleanly; the verdict is its to give
	if s.engine.HasError() {
		return fmt.Errorf("update engine reported a failed image")
	}
	return nil
}

// firmwarePart returns the first file part of the upload
func firmwarePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, fmt.Errorf("no firmware part in upload: %w", err)
		}
		if part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) handleErasePage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, s.renderPage(eraseHTML))
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	if err := s.core.EraseCredentials(); err != nil {
		logging.Error("Erase failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Failed to erase settings")
		return
	}
	writeText(w, http.StatusOK, "Settings erased.")
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	s.core.Session().SetDebugViewing(true)
	body := strings.ReplaceAll(s.renderPage(debugHTML), "%DEBUG_HISTORY%", s.core.Session().DebugHistory())
	writeHTML(w, http.StatusOK, body)
}

func (s *Server) handleRestartPage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, s.renderPage(restartHTML))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "Restarting...")
	s.core.Restart(restartAfterRequest)
}

func setPairingCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handlePairPreflight(w http.ResponseWriter, r *http.Request) {
	setPairingCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	setPairingCORS(w)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, "error", "Empty request body")
		return
	}

	if err := s.core.SubmitPairing(body); err != nil {
		switch {
		case portal.IsProtocolError(err):
			writeJSONStatus(w, http.StatusBadRequest, "error", portal.Message(err))
		case errors.Is(err, pairing.ErrBusy):
			writeJSONStatus(w, http.StatusConflict, "error", "Pairing already in progress")
		case errors.Is(err, pairing.ErrNoDecision):
			writeJSONStatus(w, http.StatusInternalServerError, "error", "Missing Pairing Functionality")
		default:
			logging.Error("Pairing submit failed", zap.Error(err))
			writeJSONStatus(w, http.StatusInternalServerError, "error", "Pairing failed")
		}
		return
	}
	// The verdict arrives asynchronously over the live channel
	writeJSONStatus(w, http.StatusAccepted, "success", "Request Accepted: Listen On Websocket")
}

// handleCustomPage serves paths matching no built-in route from the
// custom page registry.
func (s *Server) handleCustomPage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setPairingCORS(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	page := s.core.Pages().Lookup(r.URL.Path)
	if page == nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if page.Get != nil {
			body, err := page.Get(r.URL.Query())
			if err != nil {
				writeText(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeHTML(w, http.StatusOK, body)
			return
		}
		writeHTML(w, http.StatusOK, page.Content)
	case http.MethodPost:
		if page.Post == nil {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeText(w, http.StatusBadRequest, "Malformed form body")
			return
		}
		body, err := page.Post(r.PostForm)
		if err != nil {
			writeText(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeHTML(w, http.StatusOK, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
