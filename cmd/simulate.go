package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/audiolibrelab/robocapture/internal/simulator"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated robot",
	Long: `Serve the robot broker protocol from a simulated platform.
The simulator answers video, audio, sonar and memory calls like a robot
would, producing a slowly varying sonar signal and periodic hand touches.

Point the recorder at it with --address 127.0.0.1 --port 9559.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		latency, _ := cmd.Flags().GetDuration("latency")
		without, _ := cmd.Flags().GetStringSlice("without")
		failures, _ := cmd.Flags().GetStringArray("fail")

		opts := simulator.Options{}
		if cfg != nil {
			opts.Keys = cfg.Sensors.Keys
		}
		if len(without) > 0 {
			opts.Modules = []string{}
			for _, module := range simulator.AllModules {
				if !slices.Contains(without, module) {
					opts.Modules = append(opts.Modules, module)
				}
			}
		}

		sim := simulator.New(opts)
		sim.SetLatency(latency)
		for _, failure := range failures {
			module, method, message, err := parseFailure(failure)
			if err != nil {
				return err
			}
			sim.Platform().FailMethod(module, method, message)
		}

		if err := sim.Listen(listen); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("Simulated robot running - Press Ctrl+C to stop", "modules", opts.Modules, "latency", latency)
		return sim.Serve(ctx)
	},
}

// parseFailure splits "Module.method=message".
func parseFailure(s string) (module, method, message string, err error) {
	target, message, ok := strings.Cut(s, "=")
	if !ok {
		message = "simulated failure"
	}
	module, method, ok = strings.Cut(target, ".")
	if !ok || module == "" || method == "" {
		return "", "", "", fmt.Errorf("invalid failure %q, expected Module.method[=message]", s)
	}
	return module, method, message, nil
}

func init() {
	simulateCmd.Flags().String("listen", "127.0.0.1:9559", "address to listen on")
	simulateCmd.Flags().Duration("latency", 0, "delay added to every response")
	simulateCmd.Flags().StringSlice("without", nil, "modules the platform does not offer, e.g. ALSonar")
	simulateCmd.Flags().StringArray("fail", nil, "make a call fail: Module.method[=message] (repeatable)")
}
