package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/audiolibrelab/robocapture/internal/history"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [id-or-stem]",
	Short: "List recorded sessions",
	Long: `List recent sessions from the local history database, newest first.
With an argument, show the full record of one session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.History.Enabled {
			return fmt.Errorf("session history is disabled (history.enabled)")
		}
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := history.Open(cfg.History.Database)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		if len(args) == 1 {
			record, err := store.Get(ctx, args[0])
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no session matches %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("id: %s\n", record.ID)
			fmt.Printf("stem: %s\n", record.Stem)
			fmt.Printf("started: %s\n", record.StartedAt.Format(time.DateTime))
			fmt.Printf("duration: %s\n", record.Duration().Round(time.Millisecond))
			fmt.Printf("camera: %d\n", record.Camera)
			fmt.Printf("video: %s (%d frames)\n", record.VideoFile, record.VideoFrames)
			fmt.Printf("audio: %s\n", record.AudioPath)
			if record.SonarLog != "" {
				fmt.Printf("sonar_log: %s (%d samples)\n", record.SonarLog, record.Sensors.SonarSamples)
			}
			if record.TouchLog != "" {
				fmt.Printf("touch_log: %s (%d samples)\n", record.TouchLog, record.Sensors.TouchSamples)
			}
			if record.StopError != "" {
				fmt.Printf("stop_error: %s\n", record.StopError)
			}
			return nil
		}

		records, err := store.List(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No sessions recorded yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STEM\tSTARTED\tDURATION\tSONAR\tTOUCH")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", r.Stem, r.StartedAt.Format(time.DateTime),
				r.Duration().Round(time.Second), r.Sensors.SonarSamples, r.Sensors.TouchSamples)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of sessions to list")
}
