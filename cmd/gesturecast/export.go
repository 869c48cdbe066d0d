package main

import (
	"fmt"
	"io"

	"github.com/ayusman/gesturecast/internal/store"
	"github.com/spf13/cobra"
)

var exportOpts struct {
	out   string
	label string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export samples as training CSV files",
	Long: `Export writes one <label>.csv per gesture into --out. With --out - a
single CSV is written to standard output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		return runExport(st, exportOpts.out, exportOpts.label, cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOpts.out, "out", "o", "data", "output directory, - for stdout")
	exportCmd.Flags().StringVarP(&exportOpts.label, "label", "l", "", "only export this label")
	rootCmd.AddCommand(exportCmd)
}

func runExport(st *store.Store, out, label string, stdout io.Writer) error {
	var (
		samples []store.Sample
		err     error
	)
	if label != "" {
		samples, err = st.Samples().ListByLabel(label)
	} else {
		samples, err = st.Samples().List()
	}
	if err != nil {
		return fmt.Errorf("failed to list samples: %w", err)
	}

	if out == "-" {
		return store.WriteCSV(stdout, samples)
	}

	if len(samples) == 0 {
		fmt.Fprintln(stdout, "No samples to export.")
		return nil
	}

	files, err := store.ExportDir(out, samples)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(stdout, "Wrote %s\n", f)
	}
	return nil
}
