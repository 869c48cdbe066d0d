// Package detector provides hand detection interfaces and the landmark types streamed to the classifier.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// VectorLen is the length of a normalized vector for a full hand skeleton.
const VectorLen = 2 * NumLandmarks

// Connection is a pair of landmark indices joined by a bone in the skeleton overlay.
type Connection struct {
	From, To int
}

// Connections lists the bones of the hand skeleton (MediaPipe HAND_CONNECTIONS).
var Connections = []Connection{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D is a landmark in normalized image space (0.0-1.0). Z is carried but not streamed.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet is an ordered sequence of landmarks. Index 0 is the reference point.
type LandmarkSet []Point3D

// Vector is a flattened (dx, dy) sequence relative to the reference point.
type Vector []float64

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Set returns the hand's landmarks as a LandmarkSet with the wrist at index 0.
func (h *HandLandmarks) Set() LandmarkSet {
	set := make(LandmarkSet, NumLandmarks)
	copy(set, h.Points[:])
	return set
}

// Vector returns the normalized vector for this hand.
func (h *HandLandmarks) Vector() Vector {
	return Normalize(h.Set())
}

// Normalize translates every landmark so the reference point becomes the origin and
// flattens the result as x0, y0, x1, y1, ... in landmark order. Scale and rotation
// are left untouched; the classifier is trained on exactly this representation.
//
// It panics if set is empty.
func Normalize(set LandmarkSet) Vector {
	if len(set) == 0 {
		panic("detector: Normalize called with empty landmark set")
	}

	base := set[0]
	v := make(Vector, 0, 2*len(set))
	for _, p := range set {
		v = append(v, p.X-base.X, p.Y-base.Y)
	}
	return v
}
