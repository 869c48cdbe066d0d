package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval caps the MJPEG rate at roughly 15 FPS.
const streamInterval = 66 * time.Millisecond

// FrameSource provides the latest encoded overlay frame and its sequence number.
type FrameSource interface {
	Latest() ([]byte, uint64)
}

// StreamHandler serves the overlay frames as MJPEG.
type StreamHandler struct {
	frames FrameSource
	done   <-chan struct{}
}

// NewStreamHandler creates a StreamHandler. Open streams end when done is closed.
func NewStreamHandler(frames FrameSource, done <-chan struct{}) *StreamHandler {
	return &StreamHandler{frames: frames, done: done}
}

// ServeHTTP streams each new frame once. Frames that have not changed since
// the last part are not repeated.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last uint64
	for {
		if data, seq := h.frames.Latest(); seq != last && len(data) > 0 {
			if err := writePart(w, data); err != nil {
				return
			}
			last = seq
		}

		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
