// Package health reports transport connectivity over HTTP (/healthz,
// /readyz) and the standard gRPC health protocol.
package health

import (
	"encoding/json"
	"net/http"
)

// Link is implemented by the device and remote transports.
type Link interface {
	Connected() bool
}

// Checker combines the two transport checks. A nil one counts as down.
type Checker struct {
	Device Link
	Remote Link
}

func up(p Link) bool { return p != nil && p.Connected() }

// Ready reports whether both transports are connected.
func (c Checker) Ready() bool { return up(c.Device) && up(c.Remote) }

// Status is "ok" when both transports are up, "degraded" when one is and
// "down" otherwise.
func (c Checker) Status() string {
	device, remote := up(c.Device), up(c.Remote)
	switch {
	case device && remote:
		return "ok"
	case device || remote:
		return "degraded"
	default:
		return "down"
	}
}

type healthHandler struct {
	checker Checker
}

func NewHealthHandler(c Checker) http.Handler {
	return &healthHandler{checker: c}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string `json:"status"`
		DeviceConnected bool   `json:"device_connected"`
		RemoteConnected bool   `json:"remote_connected"`
	}
	st := status{
		Status:          h.checker.Status(),
		DeviceConnected: up(h.checker.Device),
		RemoteConnected: up(h.checker.Remote),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// Handler /readyz: 200 only when both transports are connected.
type readyHandler struct {
	checker Checker
}

func NewReadyHandler(c Checker) http.Handler {
	return &readyHandler{checker: c}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.checker.Ready()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
