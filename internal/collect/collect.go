// Package collect records labelled training samples from the camera.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ayusman/gesturecast/internal/capture"
	"github.com/ayusman/gesturecast/internal/detector"
	"github.com/ayusman/gesturecast/internal/store"
	"github.com/schollz/progressbar/v3"
)

// maxReadFailures is how many frame reads in a row may fail before a run is aborted.
const maxReadFailures = 50

// readRetryDelay is the pause after a failed frame read.
const readRetryDelay = 100 * time.Millisecond

// Options describes one collection run.
type Options struct {
	Label    string
	Samples  int
	Progress io.Writer // progress bar output, nil disables it
}

// Result summarizes a collection run.
type Result struct {
	SessionID string
	Collected int
	Frames    int
	Skipped   int
}

// Collector stores one normalized hand vector per frame until the target is reached.
type Collector struct {
	camera   capture.Camera
	detector detector.Detector
	store    *store.Store

	retryDelay time.Duration
}

// New creates a Collector.
func New(camera capture.Camera, d detector.Detector, st *store.Store) *Collector {
	return &Collector{
		camera:     camera,
		detector:   d,
		store:      st,
		retryDelay: readRetryDelay,
	}
}

// Run collects opts.Samples samples under a new session. Frames without a
// hand are skipped. Cancelling ctx ends the run early without an error.
func (c *Collector) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Label == "" {
		return Result{}, errors.New("label is required")
	}
	if opts.Samples <= 0 {
		return Result{}, fmt.Errorf("sample count must be positive, got %d", opts.Samples)
	}

	session, err := c.store.Sessions().Create(opts.Label, opts.Samples)
	if err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}
	res := Result{SessionID: session.ID}

	if err := c.camera.Open(); err != nil {
		return res, fmt.Errorf("open camera: %w", err)
	}
	defer c.camera.Close()

	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	bar := progressbar.NewOptions(opts.Samples,
		progressbar.OptionSetDescription(fmt.Sprintf("Collecting %s", opts.Label)),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	samples := c.store.Samples()
	failures := 0

	for res.Collected < opts.Samples {
		if ctx.Err() != nil {
			log.Printf("collection of %s interrupted after %d samples", opts.Label, res.Collected)
			return res, nil
		}

		frame, err := c.camera.ReadFrame()
		if err != nil {
			failures++
			if failures >= maxReadFailures {
				return res, fmt.Errorf("camera stopped delivering frames: %w", err)
			}
			select {
			case <-ctx.Done():
				log.Printf("collection of %s interrupted after %d samples", opts.Label, res.Collected)
				return res, nil
			case <-time.After(c.retryDelay):
			}
			continue
		}
		failures = 0
		res.Frames++

		hands, err := c.detector.Detect(frame)
		frame.Close()
		if err != nil || len(hands) == 0 {
			if err != nil {
				log.Printf("Error detecting hands: %v", err)
			}
			res.Skipped++
			continue
		}

		hand := hands[0]
		sample := &store.Sample{
			SessionID:  session.ID,
			Label:      opts.Label,
			Handedness: hand.Handedness,
			Vector:     hand.Vector(),
		}
		if err := samples.Create(sample); err != nil {
			return res, fmt.Errorf("save sample: %w", err)
		}
		res.Collected++
		bar.Add(1)
	}

	return res, nil
}
