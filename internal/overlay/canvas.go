package overlay

import (
	"image"
	"image/color"
	"log"
	"sync"

	"github.com/ayusman/gesturecast/internal/detector"
	"gocv.io/x/gocv"
)

var (
	connectorColor = color.RGBA{R: 0, G: 206, B: 201, A: 255}
	landmarkColor  = color.RGBA{R: 108, G: 92, B: 231, A: 255}
)

const (
	connectorThickness = 4
	landmarkRadius     = 4
)

// Canvas draws hand skeletons onto camera frames and keeps the latest
// annotated frame as JPEG for viewers.
type Canvas struct {
	mu     sync.RWMutex
	latest []byte
	width  int
	height int
	seq    uint64
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Render copies frame, draws hand on it when non-nil and publishes the result.
// The frame itself is not modified.
func (c *Canvas) Render(frame *gocv.Mat, hand *detector.HandLandmarks) {
	if frame == nil || frame.Empty() {
		return
	}

	img := frame.Clone()
	defer img.Close()

	if hand != nil {
		drawHand(&img, hand)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		log.Printf("overlay: encode frame: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	c.mu.Lock()
	c.latest = data
	c.width = img.Cols()
	c.height = img.Rows()
	c.seq++
	c.mu.Unlock()
}

// Clear drops the published frame.
func (c *Canvas) Clear() {
	c.mu.Lock()
	c.latest = nil
	c.width, c.height = 0, 0
	c.seq++
	c.mu.Unlock()
}

// Latest returns the most recent JPEG (nil after Clear) and its sequence
// number, which changes on every Render or Clear.
func (c *Canvas) Latest() ([]byte, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.seq
}

// Size returns the dimensions of the latest frame.
func (c *Canvas) Size() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

func drawHand(img *gocv.Mat, hand *detector.HandLandmarks) {
	w, h := img.Cols(), img.Rows()

	for _, conn := range detector.Connections {
		from := toPixel(hand.Points[conn.From], w, h)
		to := toPixel(hand.Points[conn.To], w, h)
		gocv.Line(img, from, to, connectorColor, connectorThickness)
	}
	for _, p := range hand.Points {
		gocv.Circle(img, toPixel(p, w, h), landmarkRadius, landmarkColor, -1)
	}
}

// toPixel maps normalized image coordinates onto a w x h surface.
func toPixel(p detector.Point3D, w, h int) image.Point {
	return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
}
