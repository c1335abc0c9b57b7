package session

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/robocapture/internal/device"
)

// AudioFormat selects the microphone recording format.
type AudioFormat string

const (
	// AudioWAV records all four microphones.
	AudioWAV AudioFormat = "wav"
	// AudioOGG records the front microphone only.
	AudioOGG AudioFormat = "ogg"
)

// Extension returns the file extension including the dot.
func (f AudioFormat) Extension() string {
	return "." + string(f)
}

// Toggle returns the other format.
func (f AudioFormat) Toggle() AudioFormat {
	if f == AudioOGG {
		return AudioWAV
	}
	return AudioOGG
}

// ParseAudioFormat accepts "wav", "ogg", with or without a leading dot and
// in any case.
func ParseAudioFormat(s string) (AudioFormat, error) {
	switch AudioFormat(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")) {
	case AudioWAV:
		return AudioWAV, nil
	case AudioOGG:
		return AudioOGG, nil
	}
	return "", fmt.Errorf("audio format must be 'wav' or 'ogg', got: %s", s)
}

// Config holds the options the operator can change between recordings.
type Config struct {
	Camera       int         `json:"camera"`
	AudioFormat  AudioFormat `json:"audio_format"`
	Label        string      `json:"label,omitempty"`
	SonarLogging bool        `json:"sonar_logging"`
	TouchLogging bool        `json:"touch_logging"`
}

// DefaultConfig selects the top camera and four-channel audio with sensor
// logging off.
func DefaultConfig() Config {
	return Config{
		Camera:      device.CameraTop,
		AudioFormat: AudioWAV,
	}
}

// Validate checks the camera index and audio format.
func (c Config) Validate() error {
	if c.Camera != device.CameraTop && c.Camera != device.CameraBottom {
		return fmt.Errorf("camera must be %d or %d, got: %d", device.CameraTop, device.CameraBottom, c.Camera)
	}
	if _, err := ParseAudioFormat(string(c.AudioFormat)); err != nil {
		return err
	}
	return nil
}
