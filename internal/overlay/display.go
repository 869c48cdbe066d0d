// Package overlay holds what the user sees: the connection status, the
// latest gesture label and the annotated camera frame.
package overlay

import (
	"sync"
	"time"

	"github.com/ayusman/gesturecast/internal/stream"
)

// Status texts shown for each connection state.
const (
	StatusConnecting = "Connecting..."
	StatusOpen       = "Connected to API"
	StatusClosed     = "Disconnected"
)

// Label texts that are not gesture names.
const (
	LabelWaiting = "Waiting..."
	LabelNoHand  = "No hand"
)

// Tone selects how the label is presented.
type Tone string

const (
	ToneNormal Tone = "normal"
	ToneMuted  Tone = "muted"
	ToneError  Tone = "error"
)

// Snapshot is a copy of the display state.
type Snapshot struct {
	Status     string    `json:"status"`
	StatusText string    `json:"status_text"`
	Label      string    `json:"label"`
	Tone       Tone      `json:"tone"`
	Pulsing    bool      `json:"pulsing"`
	Pulses     uint64    `json:"pulses"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Display is the status and label surface. It is safe for concurrent use.
// Subscribers are called after every change, outside the state lock, and see
// changes in the order they were made. A subscriber must not change the
// display it is subscribed to.
type Display struct {
	// notify serializes changes with their delivery; taken before mu.
	notify     sync.Mutex
	mu         sync.Mutex
	state      stream.State
	label      string
	tone       Tone
	pulseUntil time.Time
	pulseTimer *time.Timer
	pulses     uint64
	updated    time.Time
	nextID     int
	subs       map[int]func(Snapshot)
}

// NewDisplay returns a display showing "Waiting..." while disconnected.
func NewDisplay() *Display {
	return &Display{
		state:   stream.Closed,
		label:   LabelWaiting,
		tone:    ToneMuted,
		updated: time.Now(),
		subs:    make(map[int]func(Snapshot)),
	}
}

// StatusText returns the text shown for a connection state.
func StatusText(s stream.State) string {
	switch s {
	case stream.Connecting:
		return StatusConnecting
	case stream.Open:
		return StatusOpen
	default:
		return StatusClosed
	}
}

// SetConnection updates the status indicator.
func (d *Display) SetConnection(s stream.State) {
	d.notify.Lock()
	defer d.notify.Unlock()
	d.mu.Lock()
	if d.state == s {
		d.mu.Unlock()
		return
	}
	d.state = s
	d.touch()
	d.publish()
}

// SetLabel updates the label and its tone.
func (d *Display) SetLabel(label string, tone Tone) {
	d.notify.Lock()
	defer d.notify.Unlock()
	d.mu.Lock()
	if d.label == label && d.tone == tone {
		d.mu.Unlock()
		return
	}
	d.label = label
	d.tone = tone
	d.touch()
	d.publish()
}

// Pulse highlights the label for the given duration.
func (d *Display) Pulse(dur time.Duration) {
	d.notify.Lock()
	defer d.notify.Unlock()
	d.mu.Lock()
	d.pulses++
	d.pulseUntil = time.Now().Add(dur)
	if d.pulseTimer != nil {
		d.pulseTimer.Stop()
	}
	d.pulseTimer = time.AfterFunc(dur, d.endPulse)
	d.touch()
	d.publish()
}

func (d *Display) endPulse() {
	d.notify.Lock()
	defer d.notify.Unlock()
	d.mu.Lock()
	if time.Now().Before(d.pulseUntil) {
		d.mu.Unlock()
		return
	}
	d.touch()
	d.publish()
}

// Snapshot returns the current state.
func (d *Display) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription.
func (d *Display) Subscribe(fn func(Snapshot)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.subs[id] = fn

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *Display) touch() {
	d.updated = time.Now()
}

func (d *Display) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     d.state.String(),
		StatusText: StatusText(d.state),
		Label:      d.label,
		Tone:       d.tone,
		Pulsing:    time.Now().Before(d.pulseUntil),
		Pulses:     d.pulses,
		UpdatedAt:  d.updated,
	}
}

// publish must be called with notify and mu held; it releases mu.
func (d *Display) publish() {
	snap := d.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
