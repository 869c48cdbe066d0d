package detector

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

const epsilon = 1e-9

func TestNormalize(t *testing.T) {
	t.Run("two point scenario", func(t *testing.T) {
		set := LandmarkSet{{X: 0.5, Y: 0.5}, {X: 0.6, Y: 0.7}}
		want := Vector{0, 0, 0.1, 0.2}

		got := Normalize(set)

		if len(got) != len(want) {
			t.Fatalf("expected %d values, got %d", len(want), len(got))
		}
		for i := range want {
			if math.Abs(got[i]-want[i]) > epsilon {
				t.Errorf("value %d: expected %f, got %f", i, want[i], got[i])
			}
		}
	})

	t.Run("reference point maps to origin", func(t *testing.T) {
		thumbs, palm := ThumbsUpLandmarks(), OpenPalmLandmarks()
		sets := []LandmarkSet{
			{{X: 0.3, Y: 0.9}},
			{{X: 1.0, Y: 0.0}, {X: 0.2, Y: 0.2}},
			thumbs.Set(),
			palm.Set(),
		}
		for _, set := range sets {
			v := Normalize(set)
			if v[0] != 0 || v[1] != 0 {
				t.Errorf("expected (0, 0) first pair, got (%f, %f)", v[0], v[1])
			}
		}
	})

	t.Run("length is twice the landmark count", func(t *testing.T) {
		for n := 1; n <= NumLandmarks; n++ {
			set := make(LandmarkSet, n)
			for i := range set {
				set[i] = Point3D{X: float64(i) * 0.01, Y: 1 - float64(i)*0.02}
			}
			if got := len(Normalize(set)); got != 2*n {
				t.Errorf("n=%d: expected length %d, got %d", n, 2*n, got)
			}
		}
	})

	t.Run("deterministic and does not mutate input", func(t *testing.T) {
		palm := OpenPalmLandmarks()
		set := palm.Set()
		before := append(LandmarkSet(nil), set...)

		first := Normalize(set)
		second := Normalize(set)

		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("value %d differs between calls: %f vs %f", i, first[i], second[i])
			}
		}
		for i := range set {
			if set[i] != before[i] {
				t.Fatalf("landmark %d was modified", i)
			}
		}
	})

	t.Run("z is ignored", func(t *testing.T) {
		flat := LandmarkSet{{X: 0.1, Y: 0.2}, {X: 0.4, Y: 0.4}}
		deep := LandmarkSet{{X: 0.1, Y: 0.2, Z: 0.7}, {X: 0.4, Y: 0.4, Z: -0.3}}

		a, b := Normalize(flat), Normalize(deep)
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("value %d: z changed output (%f vs %f)", i, a[i], b[i])
			}
		}
	})

	t.Run("translation invariant", func(t *testing.T) {
		hand := ThumbsUpLandmarks()
		shifted := hand
		for i := range shifted.Points {
			shifted.Points[i].X += 0.125
			shifted.Points[i].Y -= 0.25
		}

		a, b := hand.Vector(), shifted.Vector()
		for i := range a {
			if math.Abs(a[i]-b[i]) > epsilon {
				t.Errorf("value %d: expected %f, got %f", i, a[i], b[i])
			}
		}
	})

	t.Run("empty set panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for empty landmark set")
			}
		}()
		Normalize(nil)
	})
}

func TestHandLandmarks_Vector(t *testing.T) {
	hand := ThumbsUpLandmarks()
	v := hand.Vector()

	if len(v) != VectorLen {
		t.Fatalf("expected %d values, got %d", VectorLen, len(v))
	}

	tip := 2 * ThumbTip
	wantX := hand.Points[ThumbTip].X - hand.Points[Wrist].X
	wantY := hand.Points[ThumbTip].Y - hand.Points[Wrist].Y
	if math.Abs(v[tip]-wantX) > epsilon || math.Abs(v[tip+1]-wantY) > epsilon {
		t.Errorf("thumb tip: expected (%f, %f), got (%f, %f)", wantX, wantY, v[tip], v[tip+1])
	}
}

func TestConnections(t *testing.T) {
	if len(Connections) != 21 {
		t.Errorf("expected 21 connections, got %d", len(Connections))
	}
	for _, c := range Connections {
		if c.From < 0 || c.From >= NumLandmarks || c.To < 0 || c.To >= NumLandmarks {
			t.Errorf("connection %v out of range", c)
		}
	}
}

func TestDecodeHands(t *testing.T) {
	t.Run("no hands", func(t *testing.T) {
		hands, err := decodeHands([]byte(`{"hands": []}` + "\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected 0 hands, got %d", len(hands))
		}
	})

	t.Run("full hand", func(t *testing.T) {
		line := `{"hands": [{"handedness": "Left", "score": 0.8, "points": [`
		for i := 0; i < NumLandmarks; i++ {
			if i > 0 {
				line += ","
			}
			line += `{"x": 0.5, "y": 0.25, "z": 0}`
		}
		line += `]}]}`

		hands, err := decodeHands([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if hands[0].Handedness != "Left" {
			t.Errorf("expected handedness Left, got %s", hands[0].Handedness)
		}
		if hands[0].Points[PinkyTip].Y != 0.25 {
			t.Errorf("expected pinky tip y 0.25, got %f", hands[0].Points[PinkyTip].Y)
		}
	})

	t.Run("incomplete hand is skipped", func(t *testing.T) {
		hands, err := decodeHands([]byte(`{"hands": [{"points": [{"x": 1, "y": 1}]}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected incomplete hand to be skipped, got %d", len(hands))
		}
	})

	t.Run("garbage is an error", func(t *testing.T) {
		if _, err := decodeHands([]byte("Traceback (most recent call last)")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script = filepath.Join(t.TempDir(), "missing.py")

	_, err := NewMediaPipeDetector(cfg)
	if !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{ThumbsUpLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("gate blocks until released", func(t *testing.T) {
		mock := NewMockDetector()
		gate := make(chan struct{})
		mock.SetGate(gate)

		done := make(chan struct{})
		go func() {
			mock.Detect(nil)
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("Detect returned before gate was released")
		default:
		}

		close(gate)
		<-done
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestFixtures(t *testing.T) {
	t.Run("thumbs up has thumb raised", func(t *testing.T) {
		hand := ThumbsUpLandmarks()
		if hand.Points[ThumbTip].Y >= hand.Points[ThumbMCP].Y {
			t.Error("thumb tip should be above thumb MCP (lower Y value)")
		}
		if ext := hand.Points[IndexMCP].Y - hand.Points[IndexTip].Y; ext > 0.15 {
			t.Errorf("index finger appears extended (extension: %f)", ext)
		}
	})

	t.Run("open palm has fingers extended", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		tips := [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}}
		for _, f := range tips {
			if ext := hand.Points[f[0]].Y - hand.Points[f[1]].Y; ext < 0.2 {
				t.Errorf("finger %d not extended enough (extension: %f)", f[1], ext)
			}
		}
	})
}
