package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/robocapture/internal/device"
	"github.com/audiolibrelab/robocapture/internal/sensor"
	"github.com/audiolibrelab/robocapture/internal/session"
)

// EnvPrefix prefixes environment overrides, e.g. ROBOCAPTURE_ROBOT_ADDRESS.
const EnvPrefix = "ROBOCAPTURE"

type RobotConfig struct {
	Address     string        `mapstructure:"address" yaml:"address"`
	Port        int           `mapstructure:"port" yaml:"port"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

type VideoConfig struct {
	Directory  string `mapstructure:"directory" yaml:"directory"`
	Resolution int    `mapstructure:"resolution" yaml:"resolution"`
	FrameRate  int    `mapstructure:"frame_rate" yaml:"frame_rate"`
	Format     string `mapstructure:"format" yaml:"format"`
}

type AudioConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type SensorsConfig struct {
	LogDirectory string        `mapstructure:"log_directory" yaml:"log_directory"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SonarTag     string        `mapstructure:"sonar_tag" yaml:"sonar_tag"`
	Keys         sensor.Keys   `mapstructure:"keys" yaml:"keys"`
}

// SessionConfig seeds the operator options at startup.
type SessionConfig struct {
	Camera       int    `mapstructure:"camera" yaml:"camera"`
	AudioFormat  string `mapstructure:"audio_format" yaml:"audio_format"`
	Label        string `mapstructure:"label" yaml:"label"`
	SonarLogging bool   `mapstructure:"sonar_logging" yaml:"sonar_logging"`
	TouchLogging bool   `mapstructure:"touch_logging" yaml:"touch_logging"`
}

type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Database string `mapstructure:"database" yaml:"database"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type Config struct {
	Robot   RobotConfig   `mapstructure:"robot" yaml:"robot"`
	Video   VideoConfig   `mapstructure:"video" yaml:"video"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Sensors SensorsConfig `mapstructure:"sensors" yaml:"sensors"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`

	// Profile is the name of the applied profile, empty for none.
	Profile string `mapstructure:"-" yaml:"-"`

	settings map[string]any
}

// Settings returns the resolved key/value tree, durations as written.
func (c *Config) Settings() map[string]any {
	return c.settings
}

// VideoSettings returns the one-time settings applied on connect.
func (c *Config) VideoSettings() device.VideoSettings {
	return device.VideoSettings{
		Resolution: c.Video.Resolution,
		FrameRate:  c.Video.FrameRate,
		Format:     c.Video.Format,
	}
}

// SessionDefaults converts the session section.
func (c *Config) SessionDefaults() (session.Config, error) {
	format, err := session.ParseAudioFormat(c.Session.AudioFormat)
	if err != nil {
		return session.Config{}, fmt.Errorf("session.audio_format: %w", err)
	}
	return session.Config{
		Camera:       c.Session.Camera,
		AudioFormat:  format,
		Label:        c.Session.Label,
		SonarLogging: c.Session.SonarLogging,
		TouchLogging: c.Session.TouchLogging,
	}, nil
}

// Paths returns where sessions write.
func (c *Config) Paths() session.Paths {
	return session.Paths{
		VideoDirectory: c.Video.Directory,
		AudioDirectory: c.Audio.Directory,
		LogDirectory:   c.Sensors.LogDirectory,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("robot.address", "nao.local")
	v.SetDefault("robot.port", 9559)
	v.SetDefault("robot.dial_timeout", "5s")
	v.SetDefault("robot.call_timeout", "2s")

	v.SetDefault("video.directory", "/home/nao/recordings/cameras")
	v.SetDefault("video.resolution", 2)
	v.SetDefault("video.frame_rate", 30)
	v.SetDefault("video.format", "MJPG")

	v.SetDefault("audio.directory", "/home/nao/recordings/microphones")

	v.SetDefault("sensors.log_directory", "~/robocapture/sensors")
	v.SetDefault("sensors.poll_interval", "10ms")
	v.SetDefault("sensors.sonar_tag", session.DefaultSonarTag)
	v.SetDefault("sensors.keys.sonar_left", sensor.DefaultKeys.SonarLeft)
	v.SetDefault("sensors.keys.sonar_right", sensor.DefaultKeys.SonarRight)
	v.SetDefault("sensors.keys.touch", sensor.DefaultKeys.Touch)

	v.SetDefault("session.camera", 0)
	v.SetDefault("session.audio_format", string(session.AudioWAV))
	v.SetDefault("session.label", "")
	v.SetDefault("session.sonar_logging", false)
	v.SetDefault("session.touch_logging", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.database", "~/robocapture/history.db")

	v.SetDefault("server.port", 8080)
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return LoadWithProfile("", "")
}

// LoadWithProfile reads configFile (defaults only when empty), applies the
// named profile, or active_config when profile is empty, then environment
// overrides, and validates the result.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// Profiles override sections of the base file, e.g. one per robot.
	name := profile
	if name == "" {
		name = v.GetString("active_config")
	}
	if name != "" {
		overrides := v.GetStringMap("configs." + name)
		if len(overrides) == 0 {
			return nil, fmt.Errorf("configuration profile '%s' not found", name)
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("error applying profile '%s': %w", name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	c.Profile = name

	c.settings = v.AllSettings()
	delete(c.settings, "configs")
	delete(c.settings, "active_config")

	c.Sensors.LogDirectory = expandPath(c.Sensors.LogDirectory)
	c.History.Database = expandPath(c.History.Database)

	if err := Validate(&c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	if newActiveConfig != "" && len(v.GetStringMap("configs."+newActiveConfig)) == 0 {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// Validate checks every section and reports the first offending field.
func Validate(c *Config) error {
	if strings.TrimSpace(c.Robot.Address) == "" {
		return fmt.Errorf("robot.address is required")
	}
	if c.Robot.Port <= 0 || c.Robot.Port > 65535 {
		return fmt.Errorf("robot.port must be between 1 and 65535, got: %d", c.Robot.Port)
	}
	if c.Robot.DialTimeout <= 0 {
		return fmt.Errorf("robot.dial_timeout must be > 0, got: %s", c.Robot.DialTimeout)
	}
	if c.Robot.CallTimeout <= 0 {
		return fmt.Errorf("robot.call_timeout must be > 0, got: %s", c.Robot.CallTimeout)
	}

	if c.Video.Directory == "" {
		return fmt.Errorf("video.directory is required")
	}
	if c.Video.Resolution < 0 || c.Video.Resolution > 4 {
		return fmt.Errorf("video.resolution must be between 0 and 4, got: %d", c.Video.Resolution)
	}
	if c.Video.FrameRate <= 0 || c.Video.FrameRate > 30 {
		return fmt.Errorf("video.frame_rate must be between 1 and 30, got: %d", c.Video.FrameRate)
	}
	if c.Video.Format == "" {
		return fmt.Errorf("video.format is required")
	}

	if c.Audio.Directory == "" {
		return fmt.Errorf("audio.directory is required")
	}

	if c.Sensors.LogDirectory == "" {
		return fmt.Errorf("sensors.log_directory is required")
	}
	if c.Sensors.PollInterval <= 0 {
		return fmt.Errorf("sensors.poll_interval must be > 0, got: %s", c.Sensors.PollInterval)
	}
	if c.Sensors.SonarTag == "" {
		return fmt.Errorf("sensors.sonar_tag is required")
	}
	if c.Sensors.Keys.SonarLeft == "" || c.Sensors.Keys.SonarRight == "" {
		return fmt.Errorf("sensors.keys: sonar_left and sonar_right are required")
	}
	if len(c.Sensors.Keys.Touch) != sensor.TouchChannels {
		return fmt.Errorf("sensors.keys.touch must list %d keys, got %d", sensor.TouchChannels, len(c.Sensors.Keys.Touch))
	}
	for i, key := range c.Sensors.Keys.Touch {
		if key == "" {
			return fmt.Errorf("sensors.keys.touch[%d] cannot be empty", i)
		}
	}

	if _, err := c.SessionDefaults(); err != nil {
		return err
	}
	if c.Session.Camera != 0 && c.Session.Camera != 1 {
		return fmt.Errorf("session.camera must be 0 or 1, got: %d", c.Session.Camera)
	}

	if c.History.Enabled && c.History.Database == "" {
		return fmt.Errorf("history.database is required when history is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	return nil
}

// RobotAddress returns host:port.
func (c *Config) RobotAddress() string {
	return net.JoinHostPort(c.Robot.Address, fmt.Sprint(c.Robot.Port))
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
