package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ayusman/gesturecast/internal/app"
	"github.com/ayusman/gesturecast/internal/capture"
	"github.com/ayusman/gesturecast/internal/collect"
	"github.com/spf13/cobra"
)

var collectOpts struct {
	label   string
	samples int
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Record labelled hand samples for training",
	RunE: func(cmd *cobra.Command, args []string) error {
		if collectOpts.label == "" {
			return errors.New("--label is required")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		det := app.NewDetector(cfg.Detector)
		defer det.Close()

		cam := capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
		})

		res, err := collect.New(cam, det, st).Run(cmd.Context(), collect.Options{
			Label:    collectOpts.label,
			Samples:  collectOpts.samples,
			Progress: os.Stderr,
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		fmt.Printf("Saved %d samples for %q (session %s, %d frames, %d without a hand)\n",
			res.Collected, collectOpts.label, res.SessionID, res.Frames, res.Skipped)
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVarP(&collectOpts.label, "label", "l", "", "gesture label to record")
	collectCmd.Flags().IntVarP(&collectOpts.samples, "samples", "n", 500, "number of samples to record")
	rootCmd.AddCommand(collectCmd)
}
