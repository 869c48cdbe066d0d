package app

import (
	"log"
	"time"
)

// frameRetryDelay is the pause after a failed frame read.
const frameRetryDelay = 100 * time.Millisecond

// runPipeline is the frame loop. It runs at the camera's native rate: the only
// blocking calls are ReadFrame and Detect, never network I/O.
func (c *Controller) runPipeline(stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, err := c.camera.ReadFrame()
		if err != nil {
			select {
			case <-stopCh:
				return
			case <-time.After(frameRetryDelay):
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}

		c.processFrame(frame, stopCh)
		frame.Close()
	}
}
