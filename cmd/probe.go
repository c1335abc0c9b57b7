package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Read the sonar and touch sensors once",
	Long: `Connect to the robot and print one sonar and touch reading.
Use it to check the memory keys before enabling sensor logging.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("address")
		port, _ := cmd.Flags().GetInt("port")

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

		result, err := svc.Probe(ctx)
		if err != nil {
			return fmt.Errorf("failed to read sensors: %w", err)
		}

		keys := cfg.Sensors.Keys
		fmt.Printf("Sensors (%s)\n", svc.Status().Address)
		fmt.Printf("═══════════════════════════════════════\n\n")
		fmt.Printf("Sonar:\n")
		fmt.Printf("  left:  %g m  (%s)\n", result.Sonar.Left, keys.SonarLeft)
		fmt.Printf("  right: %g m  (%s)\n", result.Sonar.Right, keys.SonarRight)
		fmt.Printf("\nTouch:\n")
		for i, pressed := range result.Touch.Channels {
			fmt.Printf("  %d. %-5t (%s)\n", i+1, pressed, keys.Touch[i])
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().String("address", "", "robot address (overrides config)")
	probeCmd.Flags().Int("port", 0, "robot port (overrides config)")
}
