package cmd

import (
	"fmt"

	"github.com/audiolibrelab/robocapture/internal/service"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [label]",
	Short: "Show resolved configuration and file paths for a session",
	Long:  `Display the file paths a session started now with the given label would use, followed by the resolved configuration.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) == 1 {
			label = args[0]
		}

		svc, err := service.New(cfg, service.Options{})
		if err != nil {
			return err
		}
		info := svc.Info(label)
		options := svc.Status().Options

		// Display file paths
		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("stem: %s\n", info.Stem)
		fmt.Printf("video: %s (on robot)\n", info.VideoFile)
		fmt.Printf("audio: %s (on robot)\n", info.AudioFile)
		fmt.Printf("sonar_log: %s\n", info.SonarLog)
		fmt.Printf("touch_log: %s\n", info.TouchLog)

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")
		if cfg.Profile != "" {
			fmt.Printf("profile: %s\n", cfg.Profile)
		}

		fmt.Printf("\n[Robot]\n")
		fmt.Printf("address: %s\n", cfg.RobotAddress())
		fmt.Printf("dial_timeout: %s\n", cfg.Robot.DialTimeout)
		fmt.Printf("call_timeout: %s\n", cfg.Robot.CallTimeout)

		fmt.Printf("\n[Video]\n")
		fmt.Printf("resolution: %d\n", cfg.Video.Resolution)
		fmt.Printf("frame_rate: %d\n", cfg.Video.FrameRate)
		fmt.Printf("format: %s\n", cfg.Video.Format)

		fmt.Printf("\n[Session]\n")
		fmt.Printf("audio_format: %s\n", options.AudioFormat.Extension())
		fmt.Printf("sonar_logging: %t\n", options.SonarLogging)
		fmt.Printf("touch_logging: %t\n", options.TouchLogging)

		fmt.Printf("\n[Sensors]\n")
		fmt.Printf("poll_interval: %s\n", cfg.Sensors.PollInterval)
		fmt.Printf("sonar_tag: %s\n", cfg.Sensors.SonarTag)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
