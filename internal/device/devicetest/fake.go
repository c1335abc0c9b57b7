// Package devicetest provides an in-memory platform for exercising code
// that depends on the device capability interfaces.
package devicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/audiolibrelab/robocapture/internal/device"
)

// Broker is a scripted device.Broker. Failures are injected by call name,
// e.g. "acquire.Sonar", "video.StartRecording" or "memory.GetData:<key>".
type Broker struct {
	mu sync.Mutex

	calls       []string
	failures    map[string]error
	values      map[string]any
	cameraID    int
	closed      bool
	video       bool
	audio       bool
	audioPath   string
	videoStem   string
	subscribers map[string]bool
}

// NewBroker returns a broker with no failures and no memory values.
func NewBroker() *Broker {
	return &Broker{
		failures:    make(map[string]error),
		values:      make(map[string]any),
		subscribers: make(map[string]bool),
	}
}

// FailOn makes the named call return err.
func (b *Broker) FailOn(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[name] = err
}

// Clear removes an injected failure.
func (b *Broker) Clear(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, name)
}

// SetValue publishes a memory value.
func (b *Broker) SetValue(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Calls returns the names of all calls made so far, in order.
func (b *Broker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount returns how many times name was called.
func (b *Broker) CallCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (b *Broker) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Recording reports whether video and audio are currently recording.
func (b *Broker) Recording() (video, audio bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.video, b.audio
}

// AudioPath returns the path of the last microphone recording request.
func (b *Broker) AudioPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.audioPath
}

// VideoStem returns the stem of the last video recording request.
func (b *Broker) VideoStem() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.videoStem
}

// Subscribed reports whether tag holds a sonar subscription.
func (b *Broker) Subscribed(tag string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribers[tag]
}

// CameraID returns the selected camera without recording a call.
func (b *Broker) CameraID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cameraID
}

// call records name and returns any injected failure. Callers hold no lock.
func (b *Broker) call(name string, extra ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name)
	if err, ok := b.failures[name]; ok {
		return err
	}
	for _, e := range extra {
		if err, ok := b.failures[name+":"+e]; ok {
			return err
		}
	}
	return nil
}

func (b *Broker) VideoRecorder(context.Context) (device.VideoBackend, error) {
	if err := b.call("acquire.VideoRecorder"); err != nil {
		return nil, err
	}
	return &video{b}, nil
}

func (b *Broker) AudioDevice(context.Context) (device.AudioBackend, error) {
	if err := b.call("acquire.AudioDevice"); err != nil {
		return nil, err
	}
	return &audio{b}, nil
}

func (b *Broker) Sonar(context.Context) (device.SonarBackend, error) {
	if err := b.call("acquire.Sonar"); err != nil {
		return nil, err
	}
	return &sonar{b}, nil
}

func (b *Broker) Memory(context.Context) (device.MemoryBackend, error) {
	if err := b.call("acquire.Memory"); err != nil {
		return nil, err
	}
	return &memory{b}, nil
}

func (b *Broker) Close() error {
	err := b.call("broker.Close")
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return err
}

type video struct{ b *Broker }

func (v *video) SetCameraID(_ context.Context, id int) error {
	if err := v.b.call("video.SetCameraID"); err != nil {
		return err
	}
	v.b.mu.Lock()
	v.b.cameraID = id
	v.b.mu.Unlock()
	return nil
}

func (v *video) CameraID(context.Context) (int, error) {
	if err := v.b.call("video.CameraID"); err != nil {
		return 0, err
	}
	return v.b.CameraID(), nil
}

func (v *video) SetResolution(context.Context, int) error {
	return v.b.call("video.SetResolution")
}

func (v *video) SetFrameRate(context.Context, int) error {
	return v.b.call("video.SetFrameRate")
}

func (v *video) SetVideoFormat(context.Context, string) error {
	return v.b.call("video.SetVideoFormat")
}

func (v *video) StartRecording(_ context.Context, dir, stem string) error {
	if err := v.b.call("video.StartRecording"); err != nil {
		return err
	}
	v.b.mu.Lock()
	v.b.video = true
	v.b.videoStem = stem
	v.b.mu.Unlock()
	return nil
}

func (v *video) StopRecording(context.Context) (device.RecordingInfo, error) {
	if err := v.b.call("video.StopRecording"); err != nil {
		return device.RecordingInfo{}, err
	}
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	v.b.video = false
	return device.RecordingInfo{Path: v.b.videoStem + ".avi"}, nil
}

type audio struct{ b *Broker }

func (a *audio) StartMicrophonesRecording(_ context.Context, path string) error {
	if err := a.b.call("audio.StartMicrophonesRecording"); err != nil {
		return err
	}
	a.b.mu.Lock()
	a.b.audio = true
	a.b.audioPath = path
	a.b.mu.Unlock()
	return nil
}

func (a *audio) StopMicrophonesRecording(context.Context) (device.RecordingInfo, error) {
	if err := a.b.call("audio.StopMicrophonesRecording"); err != nil {
		return device.RecordingInfo{}, err
	}
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.b.audio = false
	return device.RecordingInfo{Path: a.b.audioPath}, nil
}

type sonar struct{ b *Broker }

func (s *sonar) Subscribe(_ context.Context, tag string) error {
	if err := s.b.call("sonar.Subscribe"); err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.subscribers[tag] = true
	s.b.mu.Unlock()
	return nil
}

func (s *sonar) Unsubscribe(_ context.Context, tag string) error {
	if err := s.b.call("sonar.Unsubscribe"); err != nil {
		return err
	}
	s.b.mu.Lock()
	delete(s.b.subscribers, tag)
	s.b.mu.Unlock()
	return nil
}

type memory struct{ b *Broker }

func (m *memory) GetData(_ context.Context, key string) (any, error) {
	if err := m.b.call("memory.GetData", key); err != nil {
		return nil, err
	}
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	v, ok := m.b.values[key]
	if !ok {
		return nil, fmt.Errorf("no value for key %q", key)
	}
	return v, nil
}

// Dialer hands out Broker on every dial unless Err is set.
type Dialer struct {
	Broker *Broker
	Err    error

	mu    sync.Mutex
	dials int
}

func (d *Dialer) Dial(context.Context, string, int) (device.Broker, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Broker, nil
}

// Dials returns how many dial attempts were made.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
