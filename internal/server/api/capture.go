package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// Capture is the camera pipeline the handler switches on and off.
type Capture interface {
	Start() error
	Stop()
	Running() bool
}

// CaptureHandler serves /api/capture.
type CaptureHandler struct {
	capture Capture
}

// NewCaptureHandler creates a CaptureHandler for c.
func NewCaptureHandler(c Capture) *CaptureHandler {
	return &CaptureHandler{capture: c}
}

type captureRequest struct {
	Running *bool `json:"running"`
}

type captureResponse struct {
	Running bool `json:"running"`
}

// ServeHTTP reports the capture state on GET and changes it on POST.
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, captureResponse{Running: h.capture.Running()})
	case http.MethodPost:
		h.set(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CaptureHandler) set(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Running == nil {
		writeError(w, http.StatusBadRequest, "running is required")
		return
	}

	if *req.Running {
		if err := h.capture.Start(); err != nil {
			log.Printf("failed to start capture: %v", err)
			writeError(w, http.StatusServiceUnavailable, "Failed to start camera")
			return
		}
	} else {
		h.capture.Stop()
	}

	writeJSON(w, http.StatusOK, captureResponse{Running: h.capture.Running()})
}
