package tray

import (
	"testing"

	"github.com/ayusman/gesturecast/internal/overlay"
)

func TestTray_StateBeforeReady(t *testing.T) {
	tr := New()

	status, last, running := tr.Status()
	if status != overlay.StatusClosed || last != "" || running {
		t.Fatalf("unexpected initial state %q %q %v", status, last, running)
	}

	tr.Update(overlay.Snapshot{StatusText: overlay.StatusOpen})
	tr.SetLastGesture("thumbs_up")
	tr.SetRunning(true)

	status, last, running = tr.Status()
	if status != overlay.StatusOpen || last != "thumbs_up" || !running {
		t.Errorf("unexpected state %q %q %v", status, last, running)
	}
}

func TestTray_ToggleRequestsOppositeState(t *testing.T) {
	tr := New()

	var got []bool
	tr.OnToggle(func(running bool) { got = append(got, running) })

	tr.handleToggle()
	tr.SetRunning(true)
	tr.handleToggle()

	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("unexpected toggle requests %v", got)
	}
}

func TestTray_ViewerCallback(t *testing.T) {
	tr := New()
	tr.handleViewer()

	called := false
	tr.OnViewer(func() { called = true })
	tr.handleViewer()
	if !called {
		t.Error("expected viewer callback")
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"no gesture", lastTitle(""), "Last: none"},
		{"gesture", lastTitle("fist"), "Last: fist"},
		{"stopped", toggleTitle(false), "Start Camera"},
		{"running", toggleTitle(true), "Stop Camera"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}
