// Package session coordinates one recording across the platform's video,
// audio and sensor backends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/device"
	"github.com/audiolibrelab/robocapture/internal/sensor"
)

var (
	// ErrAlreadyRecording is returned by Start while a recording runs.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrRecordingInProgress is returned by option switches while a
	// recording runs.
	ErrRecordingInProgress = errors.New("recording in progress")
)

// State is the recording state.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
)

// StemLayout is the time layout of a filename stem.
const StemLayout = "20060102_150405"

// DefaultSonarTag names this client when subscribing to the sonar.
const DefaultSonarTag = "robocapture"

// Stem derives the shared filename base for a recording started at t.
func Stem(t time.Time, label string) string {
	stem := t.Format(StemLayout)
	if label != "" {
		stem += "_" + label
	}
	return stem
}

// Link is the part of device.Link a session drives.
type Link interface {
	IsReady() bool
	Video() (device.VideoBackend, error)
	Audio() (device.AudioBackend, error)
	Sonar() (device.SonarBackend, error)
	Memory() (device.MemoryBackend, error)
	SwitchCamera(ctx context.Context) (int, error)
	Close() error
}

// Paths locate the artifacts of a recording. VideoDirectory and
// AudioDirectory are on the platform; LogDirectory is local.
type Paths struct {
	VideoDirectory string
	AudioDirectory string
	LogDirectory   string
}

// AudioPath returns the remote microphone file for stem.
func (p Paths) AudioPath(stem string, format AudioFormat) string {
	return path.Join(p.AudioDirectory, stem+format.Extension())
}

// SonarLog returns the local sonar log for stem.
func (p Paths) SonarLog(stem string) string {
	return filepath.Join(p.LogDirectory, stem+"_sonar.txt")
}

// TouchLog returns the local tactile log for stem.
func (p Paths) TouchLog(stem string) string {
	return filepath.Join(p.LogDirectory, stem+"_tactile.txt")
}

// Options configure a Session.
type Options struct {
	Paths    Paths
	SonarTag string
	Poller   *sensor.Poller
	Clock    clock.Clock
	// Journal is optional.
	Journal Journal
}

// Session is the Idle/Recording state machine. All methods are safe for
// concurrent use; operations are serialized.
type Session struct {
	link     Link
	paths    Paths
	sonarTag string
	poller   *sensor.Poller
	clock    clock.Clock
	journal  Journal

	mu      sync.Mutex
	state   State
	current *recording
	last    *Record
}

// recording tracks what Start acquired so Stop and rollback release
// exactly that.
type recording struct {
	record   Record
	video    device.VideoBackend
	audio    device.AudioBackend
	videoOn  bool
	audioOn  bool
	sonar    device.SonarBackend
	sonarLog *sensor.Log
	touchLog *sensor.Log
}

// New creates an idle session.
func New(link Link, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Poller == nil {
		opts.Poller = sensor.NewPoller(sensor.DefaultInterval, sensor.DefaultKeys, opts.Clock)
	}
	if opts.SonarTag == "" {
		opts.SonarTag = DefaultSonarTag
	}
	return &Session{
		link:     link,
		paths:    opts.Paths,
		sonarTag: opts.SonarTag,
		poller:   opts.Poller,
		clock:    opts.Clock,
		journal:  opts.Journal,
		state:    StateIdle,
	}
}

// Start begins a recording with cfg. It fails with device.ErrNotConnected
// before touching any backend when the link is not ready. Any later
// failure undoes what was started and leaves the session idle.
func (s *Session) Start(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return ErrAlreadyRecording
	}
	if !s.link.IsReady() {
		return device.ErrNotConnected
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}

	video, err := s.link.Video()
	if err != nil {
		return err
	}
	audio, err := s.link.Audio()
	if err != nil {
		return err
	}
	memory, err := s.link.Memory()
	if err != nil {
		return err
	}
	var sonar device.SonarBackend
	if cfg.SonarLogging {
		if sonar, err = s.link.Sonar(); err != nil {
			return err
		}
	}

	stem := Stem(s.clock.Now(), cfg.Label)
	rec := &recording{
		video: video,
		audio: audio,
		record: Record{
			ID:             uuid.NewString(),
			Stem:           stem,
			Label:          cfg.Label,
			Camera:         cfg.Camera,
			AudioFormat:    cfg.AudioFormat,
			VideoDirectory: s.paths.VideoDirectory,
			AudioPath:      s.paths.AudioPath(stem, cfg.AudioFormat),
		},
	}

	slog.Info("Starting recording", "stem", stem, "camera", device.CameraName(cfg.Camera),
		"audio", cfg.AudioFormat.Extension(), "sonar", cfg.SonarLogging, "touch", cfg.TouchLogging)

	if err := video.StartRecording(ctx, s.paths.VideoDirectory, stem); err != nil {
		return fmt.Errorf("start video recording: %w", err)
	}
	rec.videoOn = true

	if err := audio.StartMicrophonesRecording(ctx, rec.record.AudioPath); err != nil {
		s.rollback(ctx, rec)
		return fmt.Errorf("start audio recording: %w", err)
	}
	rec.audioOn = true

	if cfg.SonarLogging {
		if rec.sonarLog, err = sensor.CreateLog(s.paths.SonarLog(stem)); err != nil {
			s.rollback(ctx, rec)
			return err
		}
		rec.record.SonarLog = rec.sonarLog.Path()

		if err := sonar.Subscribe(ctx, s.sonarTag); err != nil {
			s.rollback(ctx, rec)
			return fmt.Errorf("subscribe sonar: %w", err)
		}
		rec.sonar = sonar
	}

	if cfg.TouchLogging {
		if rec.touchLog, err = sensor.CreateLog(s.paths.TouchLog(stem)); err != nil {
			s.rollback(ctx, rec)
			return err
		}
		rec.record.TouchLog = rec.touchLog.Path()
	}

	rec.record.StartedAt = s.clock.Now()
	channels := sensor.Channels{Sonar: rec.sonarLog, Touch: rec.touchLog}
	if err := s.poller.Arm(memory, rec.record.StartedAt, channels); err != nil {
		s.rollback(ctx, rec)
		return fmt.Errorf("arm sensor poller: %w", err)
	}

	s.state = StateRecording
	s.current = rec

	if s.journal != nil {
		if err := s.journal.Started(ctx, rec.record); err != nil {
			slog.Warn("Failed to journal session start", "stem", stem, "error", err)
		}
	}

	slog.Info("Recording started", "stem", stem)
	return nil
}

// rollback releases whatever a failed Start acquired.
func (s *Session) rollback(ctx context.Context, rec *recording) {
	ctx = context.WithoutCancel(ctx)
	slog.Warn("Start failed, rolling back", "stem", rec.record.Stem)

	if rec.videoOn {
		if _, err := rec.video.StopRecording(ctx); err != nil {
			slog.Warn("Rollback: failed to stop video", "error", err)
		}
	}
	if rec.audioOn {
		if _, err := rec.audio.StopMicrophonesRecording(ctx); err != nil {
			slog.Warn("Rollback: failed to stop audio", "error", err)
		}
	}
	if rec.sonar != nil {
		if err := rec.sonar.Unsubscribe(ctx, s.sonarTag); err != nil {
			slog.Warn("Rollback: failed to unsubscribe sonar", "error", err)
		}
	}
	closeLogs(rec)
}

func closeLogs(rec *recording) error {
	var errs []error
	for _, l := range []*sensor.Log{rec.sonarLog, rec.touchLog} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			slog.Warn("Failed to close sensor log", "path", l.Path(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop ends the recording. Stopping an idle session does nothing. Every
// backend is asked to stop even when an earlier one fails; the failures
// are returned joined and the session is idle afterwards regardless.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}
	rec := s.current
	stem := rec.record.Stem

	// The poller must be quiet before its logs are closed.
	stats := s.poller.Disarm()

	var errs []error
	if info, err := rec.video.StopRecording(ctx); err != nil {
		slog.Error("Failed to stop video recording", "stem", stem, "error", err)
		errs = append(errs, fmt.Errorf("stop video recording: %w", err))
	} else {
		rec.record.VideoFile = info.Path
		rec.record.VideoFrames = info.Frames
	}

	if _, err := rec.audio.StopMicrophonesRecording(ctx); err != nil {
		slog.Error("Failed to stop audio recording", "stem", stem, "error", err)
		errs = append(errs, fmt.Errorf("stop audio recording: %w", err))
	}

	if rec.sonar != nil {
		if err := rec.sonar.Unsubscribe(ctx, s.sonarTag); err != nil {
			slog.Error("Failed to unsubscribe sonar", "stem", stem, "error", err)
			errs = append(errs, fmt.Errorf("unsubscribe sonar: %w", err))
		}
	}

	if err := closeLogs(rec); err != nil {
		errs = append(errs, err)
	}

	s.state = StateIdle
	s.current = nil

	err := errors.Join(errs...)
	rec.record.StoppedAt = s.clock.Now()
	rec.record.Sensors = stats
	if err != nil {
		rec.record.StopError = err.Error()
	}
	record := rec.record
	s.last = &record

	if s.journal != nil {
		if jerr := s.journal.Stopped(ctx, record); jerr != nil {
			slog.Warn("Failed to journal session stop", "stem", stem, "error", jerr)
		}
	}

	slog.Info("Recording stopped", "stem", stem, "duration", record.Duration(),
		"sonar_samples", stats.SonarSamples, "touch_samples", stats.TouchSamples)
	return err
}

// Shutdown stops any recording and releases the link. Failures are logged,
// never returned, and calling it twice is harmless.
func (s *Session) Shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Stop(ctx); err != nil {
		slog.Warn("Shutdown: stop reported errors", "error", err)
	}
	if err := s.link.Close(); err != nil {
		slog.Warn("Shutdown: failed to close connection", "error", err)
	}
}

// SwitchAudioFormat toggles cfg between wav and ogg. It is rejected while
// recording and leaves cfg untouched then.
func (s *Session) SwitchAudioFormat(cfg *Config) (AudioFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return cfg.AudioFormat, ErrRecordingInProgress
	}
	cfg.AudioFormat = cfg.AudioFormat.Toggle()
	slog.Info("Audio format switched", "format", cfg.AudioFormat.Extension())
	return cfg.AudioFormat, nil
}

// SwitchCamera toggles the platform camera and stores the index the
// platform reports in cfg. It requires a ready link and an idle session.
func (s *Session) SwitchCamera(ctx context.Context, cfg *Config) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return cfg.Camera, ErrRecordingInProgress
	}
	if !s.link.IsReady() {
		return cfg.Camera, device.ErrNotConnected
	}

	id, err := s.link.SwitchCamera(ctx)
	if err != nil {
		return cfg.Camera, err
	}
	cfg.Camera = id
	return id, nil
}

// State returns the recording state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stem returns the stem of the running recording, or "" when idle.
func (s *Session) Stem() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.record.Stem
}

// StartedAt returns when the running recording started.
func (s *Session) StartedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return time.Time{}, false
	}
	return s.current.record.StartedAt, true
}

// Current returns the running recording with live sensor counters.
func (s *Session) Current() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Record{}, false
	}
	record := s.current.record
	record.Sensors = s.poller.Stats()
	return record, true
}

// Last returns the most recently stopped recording.
func (s *Session) Last() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Record{}, false
	}
	return *s.last, true
}

// Paths returns where recordings are written.
func (s *Session) Paths() Paths {
	return s.paths
}
