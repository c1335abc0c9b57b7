package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/robocapture/internal/console"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Control recording sessions from a terminal UI",
	Long: `Open a full-screen terminal console with the same controls as the web page.
Logs are written to robocapture.log next to the sensor logs while the console runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The console owns the terminal, so logs go to a file.
		logPath := filepath.Join(cfg.Sensors.LogDirectory, "robocapture.log")
		if err := os.MkdirAll(cfg.Sensors.LogDirectory, 0755); err != nil {
			return err
		}
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer logFile.Close()
		redirectLogging(logFile)

		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()
		defer svc.Close(context.Background())

		return console.Run(context.Background(), svc)
	},
}

func redirectLogging(w io.Writer) {
	level := slog.LevelInfo
	if verboseLevel >= 1 {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
