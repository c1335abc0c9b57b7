package device

import (
	"context"
	"fmt"
)

// Camera indices supported by the video backend.
const (
	CameraTop    = 0
	CameraBottom = 1
)

// CameraName returns the display name of a camera index.
func CameraName(index int) string {
	switch index {
	case CameraTop:
		return "Top camera"
	case CameraBottom:
		return "Bottom camera"
	default:
		return fmt.Sprintf("Camera %d", index)
	}
}

// RecordingInfo is what a backend reports when a recording stops.
type RecordingInfo struct {
	Path   string `json:"path"`
	Frames int    `json:"frames,omitempty"`
}

// VideoBackend records video on the platform.
type VideoBackend interface {
	SetCameraID(ctx context.Context, id int) error
	CameraID(ctx context.Context) (int, error)
	SetResolution(ctx context.Context, level int) error
	SetFrameRate(ctx context.Context, fps int) error
	SetVideoFormat(ctx context.Context, format string) error
	StartRecording(ctx context.Context, dir, stem string) error
	StopRecording(ctx context.Context) (RecordingInfo, error)
}

// AudioBackend records the platform microphones.
type AudioBackend interface {
	StartMicrophonesRecording(ctx context.Context, path string) error
	StopMicrophonesRecording(ctx context.Context) (RecordingInfo, error)
}

// SonarBackend switches the distance sensors on for a named client.
type SonarBackend interface {
	Subscribe(ctx context.Context, tag string) error
	Unsubscribe(ctx context.Context, tag string) error
}

// MemoryBackend reads values published by the platform under fixed keys.
type MemoryBackend interface {
	GetData(ctx context.Context, key string) (any, error)
}

// Broker is an open connection to the platform from which the capability
// proxies are acquired. Closing it invalidates every proxy it handed out.
type Broker interface {
	VideoRecorder(ctx context.Context) (VideoBackend, error)
	AudioDevice(ctx context.Context) (AudioBackend, error)
	Sonar(ctx context.Context) (SonarBackend, error)
	Memory(ctx context.Context) (MemoryBackend, error)
	Close() error
}

// Dialer opens a Broker to the platform at address:port.
type Dialer interface {
	Dial(ctx context.Context, address string, port int) (Broker, error)
}

// VideoSettings are applied to the video backend once per connection.
type VideoSettings struct {
	Resolution int
	FrameRate  int
	Format     string
}

// DefaultVideoSettings matches the platform's VGA/30fps/MJPG profile.
var DefaultVideoSettings = VideoSettings{
	Resolution: 2,
	FrameRate:  30,
	Format:     "MJPG",
}
