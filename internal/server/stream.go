package server

import (
	"fmt"
	"net/http"
	"time"
)

const idlePoll = 250 * time.Millisecond

// FrameSource exposes the most recent camera frame seen by the detection
// feed. seq grows with every frame; jpeg is nil while no session holds the
// camera.
type FrameSource interface {
	LatestFrame() (jpeg []byte, seq uint64)
	FPS() int
}

// StreamHandler serves the detection feed's frames as MJPEG. It never reads
// the camera itself, so viewers do not take frames away from detection.
type StreamHandler struct {
	frames FrameSource
}

// NewStreamHandler creates a StreamHandler over frames.
func NewStreamHandler(frames FrameSource) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	interval := time.Second / time.Duration(max(h.frames.FPS(), 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg, seq := h.frames.LatestFrame()
		if jpeg == nil {
			ticker.Reset(idlePoll)
			continue
		}
		ticker.Reset(interval)
		if seq == sent {
			continue
		}
		sent = seq

		if err := writePart(w, jpeg); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
