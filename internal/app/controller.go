package app

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/gesturecast/internal/capture"
	"github.com/ayusman/gesturecast/internal/detector"
	"github.com/ayusman/gesturecast/internal/overlay"
	"github.com/ayusman/gesturecast/internal/stream"
	"gocv.io/x/gocv"
)

// DefaultPulseDuration is how long the label stays highlighted after a prediction.
const DefaultPulseDuration = 300 * time.Millisecond

// Sender ships a normalized vector without waiting for a reply.
type Sender interface {
	Send(v []float64)
}

// Renderer draws frames, optionally with a hand skeleton, onto the viewer surface.
type Renderer interface {
	Render(frame *gocv.Mat, hand *detector.HandLandmarks)
	Clear()
}

// Labeler is the label part of the status surface.
type Labeler interface {
	SetLabel(label string, tone overlay.Tone)
	Pulse(d time.Duration)
}

// DefaultErrorLabels maps the service error kinds that are shown to the user
// onto their display text.
func DefaultErrorLabels() map[string]string {
	return map[string]string{
		"Model not loaded": "Model missing!",
	}
}

// ControllerConfig holds the collaborators of a Controller.
type ControllerConfig struct {
	Camera        capture.Camera
	Detector      detector.Detector
	Sender        Sender
	Renderer      Renderer
	Labels        Labeler
	ErrorLabels   map[string]string
	PulseDuration time.Duration
}

// ControllerStats counts processed frames.
type ControllerStats struct {
	Running      bool   `json:"running"`
	Frames       uint64 `json:"frames"`
	Hands        uint64 `json:"hands"`
	DetectErrors uint64 `json:"detect_errors"`
	Discarded    uint64 `json:"discarded"`
}

// Controller runs the per-frame cycle: read a frame, detect, render, and send
// the normalized first hand. Replies from the service are routed back to the
// label through HandleMessage.
type Controller struct {
	camera   capture.Camera
	detector detector.Detector
	sender   Sender
	renderer Renderer
	labels   Labeler
	pulse    time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	hmu         sync.RWMutex
	errorLabels map[string]string
	predFns     []func(label string)

	frames       atomic.Uint64
	hands        atomic.Uint64
	detectErrors atomic.Uint64
	discarded    atomic.Uint64
}

// NewController creates a stopped Controller.
func NewController(config ControllerConfig) *Controller {
	labels := config.ErrorLabels
	if labels == nil {
		labels = DefaultErrorLabels()
	}
	pulse := config.PulseDuration
	if pulse <= 0 {
		pulse = DefaultPulseDuration
	}

	return &Controller{
		camera:      config.Camera,
		detector:    config.Detector,
		sender:      config.Sender,
		renderer:    config.Renderer,
		labels:      config.Labels,
		pulse:       pulse,
		errorLabels: copyLabels(labels),
	}
}

// Start opens the camera and launches the frame loop. Starting a running
// controller does nothing.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	if err := c.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	c.stopCh = make(chan struct{})
	c.running = true
	go c.runPipeline(c.stopCh)

	log.Println("Frame pipeline started")
	return nil
}

// Stop halts the frame loop, clears the overlay and resets the label. A
// detection still in flight completes and its result is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.stopCh = nil
	c.renderer.Clear()
	c.labels.SetLabel(overlay.LabelWaiting, overlay.ToneMuted)
	c.mu.Unlock()

	if err := c.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	log.Println("Frame pipeline stopped")
}

// Running reports whether the frame loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns the frame counters.
func (c *Controller) Stats() ControllerStats {
	return ControllerStats{
		Running:      c.Running(),
		Frames:       c.frames.Load(),
		Hands:        c.hands.Load(),
		DetectErrors: c.detectErrors.Load(),
		Discarded:    c.discarded.Load(),
	}
}

// OnPrediction registers fn to be called with every predicted label.
func (c *Controller) OnPrediction(fn func(label string)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.predFns = append(c.predFns, fn)
}

// SetErrorLabels replaces the table of service errors shown to the user.
func (c *Controller) SetErrorLabels(labels map[string]string) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.errorLabels = copyLabels(labels)
}

// HandleMessage applies a service reply to the label. Predictions pulse the
// label; known error kinds show their fallback text; unknown kinds are only
// logged.
func (c *Controller) HandleMessage(msg stream.InboundMessage) {
	switch m := msg.(type) {
	case stream.Prediction:
		c.labels.SetLabel(m.Label, overlay.ToneNormal)
		c.labels.Pulse(c.pulse)

		c.hmu.RLock()
		fns := append(([]func(string))(nil), c.predFns...)
		c.hmu.RUnlock()
		for _, fn := range fns {
			fn(m.Label)
		}

	case stream.ErrorReply:
		c.hmu.RLock()
		text, known := c.errorLabels[m.Kind]
		c.hmu.RUnlock()

		log.Printf("Service error: %s", m.Kind)
		if known {
			c.labels.SetLabel(text, overlay.ToneError)
		}
	}
}

// processFrame runs detection on one frame and applies the result unless the
// loop owning stopCh was stopped in the meantime, even if a new loop has
// started since.
func (c *Controller) processFrame(frame *gocv.Mat, stopCh <-chan struct{}) {
	hands, err := c.detector.Detect(frame)
	if err != nil {
		c.detectErrors.Add(1)
		log.Printf("Error detecting hands: %v", err)
		hands = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stopCh:
		c.discarded.Add(1)
		return
	default:
	}
	c.frames.Add(1)

	if len(hands) == 0 {
		c.renderer.Render(frame, nil)
		c.labels.SetLabel(overlay.LabelNoHand, overlay.ToneMuted)
		return
	}

	hand := hands[0]
	c.hands.Add(1)
	c.renderer.Render(frame, &hand)
	c.sender.Send(hand.Vector())
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
