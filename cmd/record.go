package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/robocapture/internal/service"
	"github.com/audiolibrelab/robocapture/internal/session"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [label]",
	Short: "Record one session until interrupted",
	Long: `Connect to the robot, start a recording session and stop it on Ctrl+C.
The optional label is appended to the session name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("address")
		port, _ := cmd.Flags().GetInt("port")
		sonar, _ := cmd.Flags().GetBool("sonar")
		touch, _ := cmd.Flags().GetBool("touch")
		audioFormat, _ := cmd.Flags().GetString("audio")
		bottom, _ := cmd.Flags().GetBool("bottom-camera")

		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := context.Background()
		defer svc.Close(ctx)

		if err := svc.Connect(ctx, address, port); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		update := service.OptionsUpdate{}
		if len(args) == 1 {
			update.Label = &args[0]
		}
		if cmd.Flags().Changed("sonar") {
			update.SonarLogging = &sonar
		}
		if cmd.Flags().Changed("touch") {
			update.TouchLogging = &touch
		}
		if _, err := svc.SetOptions(update); err != nil {
			return err
		}

		if audioFormat != "" {
			format, err := session.ParseAudioFormat(audioFormat)
			if err != nil {
				return err
			}
			if svc.Status().AudioFormat != format.Extension() {
				if _, err := svc.SwitchAudio(); err != nil {
					return fmt.Errorf("failed to select audio format: %w", err)
				}
			}
		}
		if bottom {
			if _, err := svc.SwitchCamera(ctx); err != nil {
				return fmt.Errorf("failed to select camera: %w", err)
			}
		}

		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		status := svc.Status()
		slog.Info("Recording - Press Ctrl+C to stop",
			"stem", status.Current.Stem,
			"camera", status.Camera,
			"audio", status.AudioFormat)

		// Handle interruption
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		// Wait for interrupt signal
		<-sigChan
		slog.Info("Stopping recording...")

		if err := svc.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		if last := svc.Status().Last; last != nil {
			fmt.Printf("Session %s (%s)\n", last.Stem, last.Duration().Round(time.Second))
			fmt.Printf("  video: %s (%d frames)\n", last.VideoFile, last.VideoFrames)
			fmt.Printf("  audio: %s\n", last.AudioPath)
			if last.SonarLog != "" {
				fmt.Printf("  sonar: %s (%d samples)\n", last.SonarLog, last.Sensors.SonarSamples)
			}
			if last.TouchLog != "" {
				fmt.Printf("  touch: %s (%d samples)\n", last.TouchLog, last.Sensors.TouchSamples)
			}
		}
		return nil
	},
}

func init() {
	recordCmd.Flags().String("address", "", "robot address (overrides config)")
	recordCmd.Flags().Int("port", 0, "robot port (overrides config)")
	recordCmd.Flags().Bool("sonar", false, "log sonar distances")
	recordCmd.Flags().Bool("touch", false, "log hand touch sensors")
	recordCmd.Flags().String("audio", "", "audio format: wav or ogg (overrides config)")
	recordCmd.Flags().Bool("bottom-camera", false, "record the bottom camera")
}
