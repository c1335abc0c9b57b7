package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/robocapture/internal/broker"
	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/config"
	"github.com/audiolibrelab/robocapture/internal/device"
	"github.com/audiolibrelab/robocapture/internal/history"
	"github.com/audiolibrelab/robocapture/internal/sensor"
	"github.com/audiolibrelab/robocapture/internal/session"
)

// ErrHistoryDisabled is returned by History when no journal is configured.
var ErrHistoryDisabled = errors.New("session history is disabled")

// Service is the control API shared by the CLI, the HTTP server and the
// console.
type Service interface {
	// Connection
	Connect(ctx context.Context, address string, port int) error
	Close(ctx context.Context)

	// Recording
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Options
	SwitchCamera(ctx context.Context) (int, error)
	SwitchAudio() (session.AudioFormat, error)
	SetOptions(update OptionsUpdate) (session.Config, error)

	// Information
	Status() Status
	Info(label string) SessionInfo
	Probe(ctx context.Context) (*ProbeResult, error)
	History(ctx context.Context, limit int) ([]session.Record, error)
	GetConfig() *config.Config
	GetLastError() string
}

// DisplayStatus is the one-line status shown to the operator.
type DisplayStatus string

const (
	DisplayNotConnected     DisplayStatus = "Not connected"
	DisplayReady            DisplayStatus = "Ready"
	DisplayRecording        DisplayStatus = "Recording"
	DisplayRecordingStopped DisplayStatus = "Recording stopped"
)

// Status is a snapshot for display.
type Status struct {
	Display     DisplayStatus          `json:"status"`
	Connection  device.ConnectionState `json:"connection"`
	Address     string                 `json:"address,omitempty"`
	State       session.State          `json:"state"`
	Camera      string                 `json:"camera"`
	AudioFormat string                 `json:"audio_format"`
	Options     session.Config         `json:"options"`
	Elapsed     string                 `json:"elapsed,omitempty"`
	Current     *session.Record        `json:"current,omitempty"`
	Last        *session.Record        `json:"last,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
}

// OptionsUpdate changes the options applied to the next recording. Nil
// fields are left alone.
type OptionsUpdate struct {
	Label        *string `json:"label,omitempty"`
	SonarLogging *bool   `json:"sonar_logging,omitempty"`
	TouchLogging *bool   `json:"touch_logging,omitempty"`
}

// SessionInfo lists where a recording started now would be written.
type SessionInfo struct {
	Stem      string `json:"stem"`
	VideoFile string `json:"video_file"`
	AudioFile string `json:"audio_file"`
	SonarLog  string `json:"sonar_log"`
	TouchLog  string `json:"touch_log"`
}

// ProbeResult is one reading of every sensor.
type ProbeResult struct {
	Sonar sensor.SonarSample `json:"sonar"`
	Touch sensor.TouchSample `json:"touch"`
}

// Options are the collaborators of a RecorderService. Zero values select
// the TCP broker dialer, no history and the real clock.
type Options struct {
	Dialer  device.Dialer
	History *history.Store
	Clock   clock.Clock
	// Trace logs every broker call.
	Trace bool
}

// RecorderService is the Service implementation.
type RecorderService struct {
	cfg     *config.Config
	clock   clock.Clock
	link    *device.Link
	session *session.Session
	history *history.Store

	mu      sync.Mutex
	options session.Config
	display DisplayStatus

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a disconnected service.
func New(cfg *config.Config, opts Options) (*RecorderService, error) {
	defaults, err := cfg.SessionDefaults()
	if err != nil {
		return nil, err
	}
	defaults.Label = cleanFileName(defaults.Label)

	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Dialer == nil {
		opts.Dialer = broker.NewDialer(broker.Options{
			DialTimeout: cfg.Robot.DialTimeout,
			CallTimeout: cfg.Robot.CallTimeout,
			Trace:       opts.Trace,
		})
	}

	link := device.NewLink(opts.Dialer, cfg.VideoSettings())
	sessionOpts := session.Options{
		Paths:    cfg.Paths(),
		SonarTag: cfg.Sensors.SonarTag,
		Poller:   sensor.NewPoller(cfg.Sensors.PollInterval, cfg.Sensors.Keys, opts.Clock),
		Clock:    opts.Clock,
	}
	if opts.History != nil {
		sessionOpts.Journal = opts.History
	}

	return &RecorderService{
		cfg:     cfg,
		clock:   opts.Clock,
		link:    link,
		session: session.New(link, sessionOpts),
		history: opts.History,
		options: defaults,
		display: DisplayNotConnected,
	}, nil
}

// Connect reaches the platform at address:port; empty values fall back to
// the configured robot.
func (s *RecorderService) Connect(ctx context.Context, address string, port int) error {
	if address == "" {
		address = s.cfg.Robot.Address
	}
	if port == 0 {
		port = s.cfg.Robot.Port
	}

	if s.session.State() == session.StateRecording {
		s.setLastError("Cannot reconnect while recording")
		return session.ErrAlreadyRecording
	}

	s.clearLastError()
	if err := s.link.Connect(ctx, address, port); err != nil {
		s.setDisplay(DisplayNotConnected)
		s.setLastError(fmt.Sprintf("Failed to connect: %v", err))
		return err
	}

	s.mu.Lock()
	// The link selects the top camera on every connect.
	s.options.Camera = device.CameraTop
	s.display = DisplayReady
	s.mu.Unlock()

	if s.cfg.Session.Camera == device.CameraBottom {
		if _, err := s.SwitchCamera(ctx); err != nil {
			slog.Warn("Failed to select configured camera", "camera", device.CameraName(device.CameraBottom), "error", err)
		}
	}
	return nil
}

// Start records with the current options.
func (s *RecorderService) Start(ctx context.Context) error {
	s.mu.Lock()
	opts := s.options
	s.mu.Unlock()

	s.clearLastError()
	err := s.session.Start(ctx, opts)
	switch {
	case err == nil:
		s.setDisplay(DisplayRecording)
	case errors.Is(err, device.ErrNotConnected):
		s.setDisplay(DisplayNotConnected)
		s.setLastError("Not connected")
	case errors.Is(err, session.ErrAlreadyRecording):
		s.setLastError("Already recording")
	default:
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
	}
	return err
}

// Stop ends the recording. Without a connection it only reports so.
func (s *RecorderService) Stop(ctx context.Context) error {
	if s.session.State() != session.StateRecording {
		if !s.link.IsReady() {
			s.setDisplay(DisplayNotConnected)
		}
		return nil
	}

	err := s.session.Stop(ctx)
	s.setDisplay(DisplayRecordingStopped)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
	} else {
		s.clearLastError()
	}
	return err
}

// SwitchCamera toggles between the top and bottom camera.
func (s *RecorderService) SwitchCamera(ctx context.Context) (int, error) {
	s.mu.Lock()
	opts := s.options
	s.mu.Unlock()

	id, err := s.session.SwitchCamera(ctx, &opts)
	if err != nil {
		if !errors.Is(err, session.ErrRecordingInProgress) {
			s.setLastError(fmt.Sprintf("Failed to switch camera: %v", err))
		}
		return id, err
	}

	s.mu.Lock()
	s.options.Camera = opts.Camera
	s.mu.Unlock()
	return id, nil
}

// SwitchAudio toggles between wav and ogg.
func (s *RecorderService) SwitchAudio() (session.AudioFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.SwitchAudioFormat(&s.options)
}

// SetOptions applies update. Labels are reduced to letters, digits and
// underscores.
func (s *RecorderService) SetOptions(update OptionsUpdate) (session.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Label != nil {
		s.options.Label = cleanFileName(*update.Label)
	}
	if update.SonarLogging != nil {
		s.options.SonarLogging = *update.SonarLogging
	}
	if update.TouchLogging != nil {
		s.options.TouchLogging = *update.TouchLogging
	}
	slog.Debug("Options updated", "label", s.options.Label,
		"sonar", s.options.SonarLogging, "touch", s.options.TouchLogging)
	return s.options, nil
}

// Status returns a snapshot for display.
func (s *RecorderService) Status() Status {
	s.mu.Lock()
	opts := s.options
	display := s.display
	s.mu.Unlock()

	status := Status{
		Display:     display,
		Connection:  s.link.State(),
		Address:     s.link.Address(),
		State:       s.session.State(),
		Camera:      device.CameraName(opts.Camera),
		AudioFormat: opts.AudioFormat.Extension(),
		Options:     opts,
		LastError:   s.GetLastError(),
	}
	if current, ok := s.session.Current(); ok {
		status.Current = &current
		status.Elapsed = s.elapsed().String()
	}
	if last, ok := s.session.Last(); ok {
		status.Last = &last
	}
	return status
}

// Info resolves the artifact paths for a recording started now with label.
func (s *RecorderService) Info(label string) SessionInfo {
	s.mu.Lock()
	format := s.options.AudioFormat
	s.mu.Unlock()

	paths := s.session.Paths()
	stem := session.Stem(s.clock.Now(), cleanFileName(label))
	return SessionInfo{
		Stem:      stem,
		VideoFile: path.Join(paths.VideoDirectory, stem+".avi"),
		AudioFile: paths.AudioPath(stem, format),
		SonarLog:  paths.SonarLog(stem),
		TouchLog:  paths.TouchLog(stem),
	}
}

// Probe takes one sample of every sensor. The sonar is subscribed for the
// duration of the read unless a recording already holds it.
func (s *RecorderService) Probe(ctx context.Context) (*ProbeResult, error) {
	memory, err := s.link.Memory()
	if err != nil {
		return nil, err
	}

	if s.session.State() != session.StateRecording {
		sonar, err := s.link.Sonar()
		if err != nil {
			return nil, err
		}
		if err := sonar.Subscribe(ctx, s.cfg.Sensors.SonarTag); err != nil {
			return nil, fmt.Errorf("subscribe sonar: %w", err)
		}
		defer func() {
			if err := sonar.Unsubscribe(context.WithoutCancel(ctx), s.cfg.Sensors.SonarTag); err != nil {
				slog.Warn("Failed to unsubscribe sonar after probe", "error", err)
			}
		}()
	}

	reader := sensor.Reader{Memory: memory, Keys: s.cfg.Sensors.Keys}
	sonar, err := reader.Sonar(ctx, 0)
	if err != nil {
		return nil, err
	}
	touch, err := reader.Touch(ctx, 0)
	if err != nil {
		return nil, err
	}
	return &ProbeResult{Sonar: sonar, Touch: touch}, nil
}

// History returns recent sessions, newest first.
func (s *RecorderService) History(ctx context.Context, limit int) ([]session.Record, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, limit)
}

// Close stops any recording and disconnects. It is safe to call twice.
func (s *RecorderService) Close(ctx context.Context) {
	s.session.Shutdown(ctx)
	s.setDisplay(DisplayNotConnected)
}

// GetConfig returns the current configuration
func (s *RecorderService) GetConfig() *config.Config {
	return s.cfg
}

func (s *RecorderService) setDisplay(d DisplayStatus) {
	s.mu.Lock()
	s.display = d
	s.mu.Unlock()
}

// Helper functions

func cleanFileName(name string) string {
	// Keep letters, digits and spaces, then turn spaces into underscores
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

// GetLastError returns the last error message (thread-safe)
func (s *RecorderService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *RecorderService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *RecorderService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// elapsed returns how long the running recording has been going.
func (s *RecorderService) elapsed() time.Duration {
	started, ok := s.session.StartedAt()
	if !ok {
		return 0
	}
	return s.clock.Since(started).Truncate(time.Second)
}
