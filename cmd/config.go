package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/robocapture/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage robocapture configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Profile != "" {
			fmt.Printf("# profile: %s\n", cfg.Profile)
		}
		out, err := yaml.Marshal(cfg.Settings())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Select the active configuration profile",
	Long:  `Set active_config in the config file. Without an argument the base configuration is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("no config file found, create $HOME/.config/robocapture.yaml or pass --config")
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		if err := config.UpdateActiveConfig(cfgFile, name); err != nil {
			return err
		}
		if name == "" {
			fmt.Println("Using base configuration")
		} else {
			fmt.Printf("Using profile %s\n", name)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configUseCmd)
}
