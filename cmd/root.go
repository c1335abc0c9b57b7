package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/robocapture/internal/config"
	"github.com/audiolibrelab/robocapture/internal/history"
	"github.com/audiolibrelab/robocapture/internal/service"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "robocapture",
	Short: "Synchronized video, audio and sensor recording on a NAO robot",
	Long: `robocapture drives recording sessions on a NAO-like robot.

A session records the selected camera and the microphones on the robot,
optionally logging sonar distances and hand touch sensors to local files.
Every artifact of a session shares one timestamp-based name.

Sessions can be driven from the command line, from a web page ('serve')
or from a terminal console ('console').`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		// The simulator runs without a config unless one is given
		if cmd.Name() == "simulate" && cfgFile == "" {
			return nil
		}

		// Use default config path if not specified, and only if it exists
		configPath := cfgFile
		if configPath == "" {
			configPath = os.ExpandEnv("$HOME/.config/robocapture.yaml")
			if _, err := os.Stat(configPath); err != nil {
				slog.Debug("No config file, using defaults", "path", configPath)
				configPath = ""
			}
		}

		var err error
		cfg, err = config.LoadWithProfile(configPath, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfgFile = configPath
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/robocapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=broker call tracing")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// newService builds the recorder service from the loaded config. The
// returned cleanup closes the history store.
func newService() (*service.RecorderService, func(), error) {
	opts := service.Options{Trace: verboseLevel >= 2}
	cleanup := func() {}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history: %w", err)
		}
		opts.History = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close history", "error", err)
			}
		}
	}

	svc, err := service.New(cfg, opts)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, cleanup, nil
}
