package session

import (
	"context"
	"time"

	"github.com/audiolibrelab/robocapture/internal/sensor"
)

// Record describes one recording from start to stop.
type Record struct {
	ID          string      `json:"id"`
	Stem        string      `json:"stem"`
	Label       string      `json:"label,omitempty"`
	Camera      int         `json:"camera"`
	AudioFormat AudioFormat `json:"audio_format"`

	VideoDirectory string `json:"video_directory"`
	VideoFile      string `json:"video_file,omitempty"`
	VideoFrames    int    `json:"video_frames,omitempty"`
	AudioPath      string `json:"audio_path"`
	SonarLog       string `json:"sonar_log,omitempty"`
	TouchLog       string `json:"touch_log,omitempty"`

	StartedAt time.Time    `json:"started_at"`
	StoppedAt time.Time    `json:"stopped_at,omitempty"`
	Sensors   sensor.Stats `json:"sensors"`
	StopError string       `json:"stop_error,omitempty"`
}

// Duration returns how long the recording ran, or zero while it runs.
func (r Record) Duration() time.Duration {
	if r.StoppedAt.IsZero() {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// Journal persists session records. Failures are logged and never affect
// the recording.
type Journal interface {
	Started(ctx context.Context, r Record) error
	Stopped(ctx context.Context, r Record) error
}
