package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/otaportal/internal/config"
	"github.com/muurk/otaportal/internal/credentials"
	"github.com/muurk/otaportal/internal/pairing"
	"github.com/muurk/otaportal/internal/portal"
	"github.com/muurk/otaportal/internal/radio"
	"github.com/muurk/otaportal/internal/storage"
	"github.com/muurk/otaportal/internal/update"
)

type restartRecorder struct {
	delays []time.Duration
}

func (r *restartRecorder) record(after time.Duration) {
	r.delays = append(r.delays, after)
}

func newTestServer(t *testing.T) (*Server, *portal.Controller, *restartRecorder, string) {
	t.Helper()
	dir := t.TempDir()
	opts := config.Default()
	opts.StoragePath = filepath.Join(dir, "nvs.bin")
	opts.StagingPath = filepath.Join(dir, "firmware.bin")

	device := storage.NewFileDevice(opts.StoragePath)
	creds, err := credentials.New(device, opts.StorageSize, opts.StorageOffset)
	if err != nil {
		t.Fatalf("credentials.New() error = %v", err)
	}

	rec := &restartRecorder{}
	core := portal.New(opts, radio.NewSimulated(), creds, rec.record)
	if err := core.ResolveAndStart(radio.ModeAuto); err != nil {
		t.Fatalf("ResolveAndStart() error = %v", err)
	}
	return New(core, update.NewFileEngine(opts.StagingPath)), core, rec, opts.StagingPath
}

func doRequest(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestIndexPage(t *testing.T) {
	srv, core, _, _ := newTestServer(t)

	for _, path := range []string{"/", "/generate_204", "/fwlink"} {
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), core.Options().PortalTitle) {
			t.Errorf("GET %s body missing portal heading", path)
		}
	}
}

func TestIndexStopsDebugViewing(t *testing.T) {
	srv, core, _, _ := newTestServer(t)

	doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/debug", nil))
	if !core.Session().DebugViewing() {
		t.Fatal("debug page did not enable live viewing")
	}
	doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if core.Session().DebugViewing() {
		t.Error("index did not disable live viewing")
	}
}

func TestDebugPageShowsHistory(t *testing.T) {
	srv, core, _, _ := newTestServer(t)
	core.AppendDebugLine("boot complete")

	rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/debug", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /debug status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "boot complete<br/>") {
		t.Error("debug page missing buffered history")
	}
}

func TestInfoPage(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/info", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /info status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Radio Mode", "access-point", "Uptime"} {
		if !strings.Contains(body, want) {
			t.Errorf("info page missing %q", want)
		}
	}
}

func TestSaveWifi(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			"valid credentials",
			url.Values{"ssid": {"HomeNet"}, "password": {"secret123"}},
			http.StatusOK,
			"WiFi credentials saved",
		},
		{
			"empty ssid",
			url.Values{"ssid": {""}, "password": {"secret123"}},
			http.StatusBadRequest,
			"ssid cannot be empty",
		},
		{
			"short password",
			url.Values{"ssid": {"HomeNet"}, "password": {"short"}},
			http.StatusBadRequest,
			"passphrase must be at least 8 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, rec, _ := newTestServer(t)

			req := httptest.NewRequest(http.MethodPost, "/save-wifi", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := doRequest(t, srv, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want substring %q", rr.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusOK {
				if len(rec.delays) != 1 || rec.delays[0] != time.Second {
					t.Errorf("restart delays = %v, want [1s]", rec.delays)
				}
			} else if len(rec.delays) != 0 {
				t.Errorf("restart scheduled after rejected save: %v", rec.delays)
			}
		})
	}
}

func TestErase(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/erase", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /erase status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Settings erased.") {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestRestart(t *testing.T) {
	srv, _, rec, _ := newTestServer(t)

	rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/restart", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /restart status = %d, want 200", rr.Code)
	}
	if len(rec.delays) != 1 || rec.delays[0] != time.Second {
		t.Errorf("restart delays = %v, want [1s]", rec.delays)
	}
}

func TestFirmwareUpload(t *testing.T) {
	srv, _, rec, stagingPath := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("firmware", "firmware.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, "fake-image-bytes"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/update", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := doRequest(t, srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("POST /update status = %d, want 200", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "OK" {
		t.Errorf("body = %q, want OK", got)
	}
	data, err := os.ReadFile(stagingPath)
	if err != nil {
		t.Fatalf("staged image missing: %v", err)
	}
	if string(data) != "fake-image-bytes" {
		t.Errorf("staged image = %q", data)
	}
	if len(rec.delays) != 1 || rec.delays[0] != restartAfterUpdate {
		t.Errorf("restart delays = %v, want [%v]", rec.delays, restartAfterUpdate)
	}
}

// flaggingEngine accepts the whole image but reports an in-band failure,
// like a flash writer that detects a bad image only at verification.
type flaggingEngine struct{}

func (flaggingEngine) Begin(int64) error         { return nil }
func (flaggingEngine) Write(p []byte) (int, error) { return len(p), nil }
func (flaggingEngine) End(bool) error            { return nil }
func (flaggingEngine) HasError() bool            { return true }

func TestFirmwareUploadReportsEngineError(t *testing.T) {
	_, core, rec, _ := newTestServer(t)
	srv := New(core, flaggingEngine{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("firmware", "firmware.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, "bad-image"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/update", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := doRequest(t, srv, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "FAIL" {
		t.Errorf("body = %q, want FAIL", got)
	}
	if len(rec.delays) != 1 || rec.delays[0] != restartAfterUpdate {
		t.Errorf("restart delays = %v, want [%v]", rec.delays, restartAfterUpdate)
	}
}

func TestFirmwareUploadRejectsNonMultipart(t *testing.T) {
	srv, _, rec, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader("raw bytes"))
	rr := doRequest(t, srv, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "FAIL" {
		t.Errorf("body = %q, want FAIL", got)
	}
	// Failed updates still restart back into a known state
	if len(rec.delays) != 1 || rec.delays[0] != restartAfterUpdate {
		t.Errorf("restart delays = %v, want [%v]", rec.delays, restartAfterUpdate)
	}
}

func TestPair(t *testing.T) {
	valid := `{"user_ids":["u1"],"wifi_ssid":"HomeNet","wifi_password":"secret123","master_pin":"1234"}`

	t.Run("accepted", func(t *testing.T) {
		srv, core, _, _ := newTestServer(t)
		core.OnPaired(func(*pairing.Request) {})

		rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/pair", strings.NewReader(valid)))
		if rr.Code != http.StatusAccepted {
			t.Errorf("status = %d, want 202", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Request Accepted: Listen On Websocket") {
			t.Errorf("body = %q", rr.Body.String())
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing CORS header")
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv, core, _, _ := newTestServer(t)
		core.OnPaired(func(*pairing.Request) {})

		rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/pair", strings.NewReader("{bad")))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Invalid JSON format") {
			t.Errorf("body = %q", rr.Body.String())
		}
	})

	t.Run("no decision configured", func(t *testing.T) {
		srv, _, _, _ := newTestServer(t)

		rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/pair", strings.NewReader(valid)))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Missing Pairing Functionality") {
			t.Errorf("body = %q", rr.Body.String())
		}
	})

	t.Run("busy", func(t *testing.T) {
		srv, core, _, _ := newTestServer(t)
		core.OnPaired(func(*pairing.Request) {})

		doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/pair", strings.NewReader(valid)))
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/pair", strings.NewReader(valid)))
		if rr.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rr.Code)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		srv, _, _, _ := newTestServer(t)

		rr := doRequest(t, srv, httptest.NewRequest(http.MethodOptions, "/pair", nil))
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("missing CORS methods header")
		}
	})
}

func TestCustomPages(t *testing.T) {
	srv, core, _, _ := newTestServer(t)

	core.RegisterCustomPage("/static", "<p>static body</p>", nil, nil)
	core.RegisterCustomPage("/dynamic", "", func(params url.Values) (string, error) {
		return "hello " + params.Get("name"), nil
	}, func(params url.Values) (string, error) {
		return "posted " + params.Get("value"), nil
	})

	t.Run("static content", func(t *testing.T) {
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/static", nil))
		if rr.Code != http.StatusOK || rr.Body.String() != "<p>static body</p>" {
			t.Errorf("GET /static = %d %q", rr.Code, rr.Body.String())
		}
	})

	t.Run("get handler with query", func(t *testing.T) {
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/dynamic?name=world", nil))
		if rr.Body.String() != "hello world" {
			t.Errorf("GET /dynamic = %q", rr.Body.String())
		}
	})

	t.Run("post handler with form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/dynamic", strings.NewReader("value=42"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := doRequest(t, srv, req)
		if rr.Body.String() != "posted 42" {
			t.Errorf("POST /dynamic = %q", rr.Body.String())
		}
	})

	t.Run("post without handler", func(t *testing.T) {
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/static", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST /static status = %d, want 405", rr.Code)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("GET /nowhere status = %d, want 404", rr.Code)
		}
	})

	t.Run("registered after server build", func(t *testing.T) {
		core.RegisterCustomPage("/late", "<p>late</p>", nil, nil)
		rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/late", nil))
		if rr.Code != http.StatusOK || rr.Body.String() != "<p>late</p>" {
			t.Errorf("GET /late = %d %q", rr.Code, rr.Body.String())
		}
	})
}

func TestIndexLinksFirstCustomPage(t *testing.T) {
	srv, core, _, _ := newTestServer(t)
	core.RegisterCustomPage("/mypage", "body", nil, nil)

	rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), `href="/mypage"`) {
		t.Error("index missing custom page link")
	}
}

func TestWifiManageTriggersScan(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rr := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/wifimanage", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /wifimanage status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "save-wifi") {
		t.Error("wifimanage page missing credentials form")
	}
}
