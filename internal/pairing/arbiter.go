package pairing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/logging"
)

const (
	// MinPasswordLen is the minimum wifi_password length accepted.
	MinPasswordLen = 8
	// MinPINLen is the minimum master_pin length accepted.
	MinPINLen = 4
)

var (
	// ErrBusy is returned when a pairing request is already in flight.
	ErrBusy = errors.New("pairing request already in progress")
	// ErrNoDecision is returned when no decision callback is configured.
	ErrNoDecision = errors.New("pairing decision callback not configured")
)

// ValidationError rejects a malformed pairing payload with a specific
// message before any decision logic runs.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is a pairing validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Request is a parsed pairing payload.
type Request struct {
	UserIDs      []string `json:"user_ids"`
	WifiSSID     string   `json:"wifi_ssid"`
	WifiPassword string   `json:"wifi_password"`
	MasterPIN    string   `json:"master_pin"`
}

// Decision is the user-supplied accept/reject hook. It receives the
// parsed request by pointer and may enrich or consume it; the verdict is
// delivered later through Resolve.
type Decision func(*Request)

// Arbiter validates inbound pairing payloads and runs the request state
// machine: Idle -> RequestReceived -> resolved -> Idle. Only one request
// may be in flight at a time.
type Arbiter struct {
	mu       sync.Mutex
	decision Decision
	pending  bool
	resolved bool
	verdict  bool
}

// New creates an arbiter with no decision callback configured.
func New() *Arbiter {
	return &Arbiter{}
}

// OnDecision installs the accept/reject decision callback.
func (a *Arbiter) OnDecision(fn Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decision = fn
}

// Submit validates the raw payload and, on structural success, hands the
// parsed request to the decision callback exactly once. Validation is
// all-or-nothing: any malformed field rejects the whole request before
// the callback is considered.
func (a *Arbiter) Submit(payload []byte) (*Request, error) {
	req, err := parseRequest(payload)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.pending {
		a.mu.Unlock()
		return nil, ErrBusy
	}
	if a.decision == nil {
		a.mu.Unlock()
		return nil, ErrNoDecision
	}
	a.pending = true
	a.resolved = false
	decision := a.decision
	a.mu.Unlock()

	logging.Info("Pairing request received",
		zap.Int("user_ids", len(req.UserIDs)),
		zap.String("wifi_ssid", req.WifiSSID),
	)
	decision(req)
	return req, nil
}

// Resolve posts the asynchronous verdict for the in-flight request.
// It is a no-op when nothing is pending.
func (a *Arbiter) Resolve(accepted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending {
		return
	}
	a.resolved = true
	a.verdict = accepted
}

// DrainPending consumes a posted verdict, returning it exactly once and
// resetting the state machine to idle. ok is false while no verdict is
// waiting.
func (a *Arbiter) DrainPending() (accepted bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending || !a.resolved {
		return false, false
	}
	accepted = a.verdict
	a.pending = false
	a.resolved = false
	a.verdict = false
	return accepted, true
}

// Busy reports whether a request is currently in flight
func (a *Arbiter) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// parseRequest decodes and validates a pairing payload
func parseRequest(payload []byte) (*Request, error) {
	if len(payload) == 0 {
		return nil, &ValidationError{Message: "Empty request body"}
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &ValidationError{Message: "Invalid JSON format"}
	}

	if req.UserIDs == nil || req.WifiSSID == "" || req.WifiPassword == "" || req.MasterPIN == "" {
		return nil, &ValidationError{Message: "Missing or invalid keys"}
	}
	if len(req.UserIDs) < 1 {
		return nil, &ValidationError{Message: "Validation failed: user_ids cannot be empty"}
	}
	for i, id := range req.UserIDs {
		if id == "" {
			return nil, &ValidationError{Message: fmt.Sprintf("Validation failed: user_ids[%d] is empty", i)}
		}
	}
	if len(req.WifiPassword) < MinPasswordLen {
		return nil, &ValidationError{Message: fmt.Sprintf("Validation failed: wifi_password must be at least %d characters", MinPasswordLen)}
	}
	if len(req.MasterPIN) < MinPINLen {
		return nil, &ValidationError{Message: fmt.Sprintf("Validation failed: master_pin must be at least %d characters", MinPINLen)}
	}
	return &req, nil
}
