// Package tray provides the system tray surface for gesturecast.
package tray

import (
	"sync"

	"github.com/ayusman/gesturecast/internal/overlay"
	"github.com/getlantern/systray"
)

const (
	titleStart = "Start Camera"
	titleStop  = "Stop Camera"
)

// Tray shows the connection status and last gesture, and lets the user start
// and stop the camera.
type Tray struct {
	onToggle func(running bool)
	onViewer func()
	onQuit   func()
	running  bool
	status   string
	last     string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuStatus      *systray.MenuItem
	menuLastGesture *systray.MenuItem
	menuToggle      *systray.MenuItem
}

// New creates a Tray with the camera stopped.
func New() *Tray {
	return &Tray{
		status: overlay.StatusClosed,
	}
}

// OnToggle sets the callback invoked with the requested camera state.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnViewer sets the callback for the "Open Viewer" item.
func (t *Tray) OnViewer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onViewer = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle("GestureCast")
	systray.SetTooltip("GestureCast hand gesture streaming")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Connection to the recognition service")
	t.menuStatus.Disable()

	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last recognized gesture")
	t.menuLastGesture.Disable()
	systray.AddSeparator()

	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop the camera")
	t.mu.Unlock()

	menuViewer := systray.AddMenuItem("Open Viewer", "Open the viewer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit GestureCast")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuViewer.ClickedCh:
				t.handleViewer()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle asks for the opposite of the current camera state. The menu
// follows SetRunning, not the click.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.running
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		callback(want)
	}
}

func (t *Tray) handleViewer() {
	t.mu.RLock()
	callback := t.onViewer
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Update applies a display snapshot to the status item.
func (t *Tray) Update(s overlay.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = s.StatusText
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(s.StatusText)
	}
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastTitle(name))
	}
}

// SetRunning records whether the camera is running.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
}

// Status returns the status text, last gesture and camera state last applied.
func (t *Tray) Status() (status, last string, running bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status, t.last, t.running
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func toggleTitle(running bool) string {
	if running {
		return titleStop
	}
	return titleStart
}
