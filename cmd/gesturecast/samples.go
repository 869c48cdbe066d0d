package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ayusman/gesturecast/internal/store"
	"github.com/spf13/cobra"
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Inspect and manage collected samples",
}

var samplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show sample counts per label",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return listSamples(st, cmd.OutOrStdout())
	},
}

var samplesDeleteCmd = &cobra.Command{
	Use:   "delete <label>",
	Short: "Delete every sample of a label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Samples().DeleteByLabel(args[0])
		if err != nil {
			return fmt.Errorf("failed to delete samples: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d samples labelled %q\n", n, args[0])
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List collection sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return listSessions(st, cmd.OutOrStdout())
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its samples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Sessions().Delete(args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("session %s not found", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	samplesCmd.AddCommand(samplesListCmd, samplesDeleteCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(samplesCmd, sessionsCmd)
}

func listSamples(st *store.Store, out io.Writer) error {
	counts, err := st.Samples().CountByLabel()
	if err != nil {
		return fmt.Errorf("failed to count samples: %w", err)
	}

	if len(counts) == 0 {
		fmt.Fprintln(out, "No samples found in database.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSAMPLES")
	fmt.Fprintln(w, "-----\t-------")

	total := 0
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\n", c.Label, c.Count)
		total += c.Count
	}
	fmt.Fprintf(w, "\t%d\n", total)
	return w.Flush()
}

func listSessions(st *store.Store, out io.Writer) error {
	sessions, err := st.Sessions().List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found in database.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tCOLLECTED\tCREATED")
	fmt.Fprintln(w, "--\t-----\t---------\t-------")

	for _, s := range sessions {
		samples, err := st.Samples().ListBySession(s.ID)
		if err != nil {
			return fmt.Errorf("failed to list samples of session %s: %w", s.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", s.ID, s.Label, len(samples), s.Target, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
