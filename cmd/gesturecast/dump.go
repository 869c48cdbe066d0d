package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ayusman/gesturecast/internal/recorder"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <traffic.bin>",
	Short: "Print a recorded traffic log as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return dumpTraffic(f, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

type dumpLine struct {
	Time time.Time       `json:"time"`
	Dir  string          `json:"dir"`
	Data json.RawMessage `json:"data,omitempty"`
	Raw  string          `json:"raw,omitempty"`
}

func dumpTraffic(r io.Reader, out io.Writer) error {
	rd, err := recorder.NewReader(r)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		line := dumpLine{Time: rec.Time, Dir: rec.Dir}
		if json.Valid(rec.Data) {
			line.Data = rec.Data
		} else {
			line.Raw = string(rec.Data)
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
}
