package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/gesturecast/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func addSamples(t *testing.T, s *store.Store, sessionID, label string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Samples().Create(&store.Sample{SessionID: sessionID, Label: label, Vector: []float64{0, 0, float64(i), 1}})
		if err != nil {
			t.Fatalf("failed to create sample: %v", err)
		}
	}
}

type fakeCapture struct {
	running  bool
	startErr error
}

func (f *fakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeCapture) Stop()         { f.running = false }
func (f *fakeCapture) Running() bool { return f.running }

func TestCaptureHandler(t *testing.T) {
	c := &fakeCapture{}
	handler := NewCaptureHandler(c)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/capture", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("start", func(t *testing.T) {
		rec := post(`{"running": true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp captureResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if !resp.Running || !c.running {
			t.Error("expected capture to be running")
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/capture", nil))
		var resp captureResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if !resp.Running {
			t.Error("expected running true")
		}
	})

	t.Run("stop", func(t *testing.T) {
		rec := post(`{"running": false}`)
		if rec.Code != http.StatusOK || c.running {
			t.Errorf("expected stopped capture, status %d", rec.Code)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		c.startErr = errors.New("no camera")
		defer func() { c.startErr = nil }()
		if rec := post(`{"running": true}`); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("bad requests", func(t *testing.T) {
		for _, body := range []string{`not json`, `{}`} {
			if rec := post(body); rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/capture", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestSamplesHandler(t *testing.T) {
	s := newTestStore(t)
	addSamples(t, s, "", "fist", 2)
	addSamples(t, s, "", "open_palm", 3)
	handler := NewSamplesHandler(s)

	t.Run("counts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp countsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Total != 5 || len(resp.Labels) != 2 || resp.Labels[0].Label != "fist" {
			t.Errorf("unexpected counts %+v", resp)
		}
	})

	t.Run("list by label", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples?label=open_palm", nil))

		var resp listSamplesResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Samples) != 3 {
			t.Errorf("expected 3 samples, got %d", len(resp.Samples))
		}
	})

	t.Run("delete label", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/samples?label=fist", nil))

		var resp deleteSamplesResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Deleted != 2 {
			t.Errorf("expected 2 deleted, got %d", resp.Deleted)
		}
	})

	t.Run("delete requires label", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/samples", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSessionsHandler(t *testing.T) {
	s := newTestStore(t)
	session, err := s.Sessions().Create("thumbs_up", 10)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	addSamples(t, s, session.ID, "thumbs_up", 4)
	handler := NewSessionsHandler(s)

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

		var resp listSessionsResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Sessions) != 1 || resp.Sessions[0].Collected != 4 || resp.Sessions[0].Target != 10 {
			t.Errorf("unexpected sessions %+v", resp.Sessions)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp sessionResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.ID != session.ID || resp.Label != "thumbs_up" {
			t.Errorf("unexpected session %+v", resp)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+session.ID, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		left, _ := s.Samples().ListByLabel("thumbs_up")
		if len(left) != 0 {
			t.Errorf("expected samples removed, %d left", len(left))
		}
	})

	t.Run("not found", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/sessions/missing", nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", method, rec.Code)
			}
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
