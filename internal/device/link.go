package device

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
)

// ConnectionState is the lifecycle state of a Link.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateReady        ConnectionState = "READY"
)

// handles groups everything acquired by one connect attempt. It is either
// fully populated or not stored at all.
type handles struct {
	broker Broker
	video  VideoBackend
	audio  AudioBackend
	sonar  SonarBackend
	memory MemoryBackend
}

// Link owns the connection to the platform and the four capability proxies.
type Link struct {
	dialer   Dialer
	settings VideoSettings

	// connectMu serializes Connect and Close so the network round trips
	// happen outside mu and State stays readable while connecting.
	connectMu sync.Mutex

	mu      sync.RWMutex
	state   ConnectionState
	address string
	h       *handles
}

// NewLink creates a disconnected link that dials through dialer.
func NewLink(dialer Dialer, settings VideoSettings) *Link {
	return &Link{
		dialer:   dialer,
		settings: settings,
		state:    StateDisconnected,
	}
}

// Connect makes a single attempt to reach the platform and acquire the
// video, audio, sonar and memory proxies, in that order. Any failure
// releases everything acquired so far and leaves the link Disconnected.
func (l *Link) Connect(ctx context.Context, address string, port int) error {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	target := net.JoinHostPort(address, strconv.Itoa(port))

	l.mu.Lock()
	previous := l.h
	l.h = nil
	l.state = StateConnecting
	l.address = target
	l.mu.Unlock()

	if previous != nil {
		slog.Debug("Releasing previous connection before reconnect")
		if err := previous.broker.Close(); err != nil {
			slog.Warn("Failed to release previous connection", "error", err)
		}
	}

	slog.Info("Connecting to platform", "address", target)

	h, err := l.acquire(ctx, address, port, target)
	if err != nil {
		l.mu.Lock()
		l.state = StateDisconnected
		l.mu.Unlock()
		slog.Error("Connection failed", "address", target, "error", err)
		return err
	}

	if err := l.configure(ctx, h.video); err != nil {
		if closeErr := h.broker.Close(); closeErr != nil {
			slog.Debug("Failed to close broker after configure failure", "error", closeErr)
		}
		l.mu.Lock()
		l.state = StateDisconnected
		l.mu.Unlock()
		connErr := &ConnectionError{Address: target, Step: "configure video", Err: err}
		slog.Error("Connection failed", "address", target, "error", connErr)
		return connErr
	}

	l.mu.Lock()
	l.h = h
	l.state = StateReady
	l.mu.Unlock()

	slog.Info("Platform ready", "address", target)
	return nil
}

// acquire dials and collects all four proxies. On failure the broker is
// closed and nothing is returned.
func (l *Link) acquire(ctx context.Context, address string, port int, target string) (*handles, error) {
	broker, err := l.dialer.Dial(ctx, address, port)
	if err != nil {
		return nil, &ConnectionError{Address: target, Step: "dial", Err: err}
	}

	h := &handles{broker: broker}
	fail := func(step string, err error) (*handles, error) {
		if closeErr := broker.Close(); closeErr != nil {
			slog.Debug("Failed to close broker after acquire failure", "error", closeErr)
		}
		return nil, &ConnectionError{Address: target, Step: step, Err: err}
	}

	if h.video, err = broker.VideoRecorder(ctx); err != nil {
		return fail("video recorder", err)
	}
	if h.audio, err = broker.AudioDevice(ctx); err != nil {
		return fail("audio device", err)
	}
	if h.sonar, err = broker.Sonar(ctx); err != nil {
		return fail("sonar", err)
	}
	if h.memory, err = broker.Memory(ctx); err != nil {
		return fail("memory", err)
	}

	return h, nil
}

// configure applies the one-time video settings and selects the top camera.
func (l *Link) configure(ctx context.Context, video VideoBackend) error {
	if err := video.SetResolution(ctx, l.settings.Resolution); err != nil {
		return fmt.Errorf("set resolution %d: %w", l.settings.Resolution, err)
	}
	if err := video.SetFrameRate(ctx, l.settings.FrameRate); err != nil {
		return fmt.Errorf("set frame rate %d: %w", l.settings.FrameRate, err)
	}
	if err := video.SetVideoFormat(ctx, l.settings.Format); err != nil {
		return fmt.Errorf("set video format %s: %w", l.settings.Format, err)
	}
	if err := video.SetCameraID(ctx, CameraTop); err != nil {
		return fmt.Errorf("select camera %d: %w", CameraTop, err)
	}
	return nil
}

// Close releases the connection. It is safe to call on a disconnected link.
func (l *Link) Close() error {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	l.mu.Lock()
	h := l.h
	l.h = nil
	l.state = StateDisconnected
	l.mu.Unlock()

	if h == nil {
		return nil
	}
	slog.Debug("Closing platform connection", "address", l.address)
	if err := h.broker.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// State returns the current connection state.
func (l *Link) State() ConnectionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsReady reports whether all proxies are available.
func (l *Link) IsReady() bool {
	return l.State() == StateReady
}

// Address returns host:port of the last connect attempt.
func (l *Link) Address() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.address
}

func (l *Link) ready() (*handles, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != StateReady || l.h == nil {
		return nil, ErrNotConnected
	}
	return l.h, nil
}

// Video returns the video proxy.
func (l *Link) Video() (VideoBackend, error) {
	h, err := l.ready()
	if err != nil {
		return nil, err
	}
	return h.video, nil
}

// Audio returns the audio proxy.
func (l *Link) Audio() (AudioBackend, error) {
	h, err := l.ready()
	if err != nil {
		return nil, err
	}
	return h.audio, nil
}

// Sonar returns the sonar proxy.
func (l *Link) Sonar() (SonarBackend, error) {
	h, err := l.ready()
	if err != nil {
		return nil, err
	}
	return h.sonar, nil
}

// Memory returns the memory proxy.
func (l *Link) Memory() (MemoryBackend, error) {
	h, err := l.ready()
	if err != nil {
		return nil, err
	}
	return h.memory, nil
}

// SwitchCamera toggles between the top and bottom camera and returns the
// index the backend reports afterwards. Callers must not switch while a
// recording is running.
func (l *Link) SwitchCamera(ctx context.Context) (int, error) {
	video, err := l.Video()
	if err != nil {
		return 0, err
	}

	current, err := video.CameraID(ctx)
	if err != nil {
		return 0, fmt.Errorf("read camera: %w", err)
	}

	next := CameraBottom
	if current == CameraBottom {
		next = CameraTop
	}
	if err := video.SetCameraID(ctx, next); err != nil {
		return current, fmt.Errorf("select camera %d: %w", next, err)
	}

	selected, err := video.CameraID(ctx)
	if err != nil {
		return next, fmt.Errorf("read camera: %w", err)
	}

	slog.Info("Camera switched", "camera", CameraName(selected))
	return selected, nil
}
