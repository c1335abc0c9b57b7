package simulator

import (
	"fmt"
	"math"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/audiolibrelab/robocapture/internal/broker"
	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/sensor"
)

// sonarIdle is what the distance sensors report while nobody subscribes.
const sonarIdle = 2.55

// Platform is the simulated robot behind the broker protocol.
type Platform struct {
	clock   clock.Clock
	booted  time.Time
	keys    sensor.Keys
	modules map[string]bool

	mu          sync.Mutex
	camera      int
	resolution  int
	frameRate   int
	format      string
	video       *videoRun
	audioPath   string
	audioOn     bool
	subscribers map[string]bool
	values      map[string]any
	failures    map[string]string
}

type videoRun struct {
	dir     string
	stem    string
	started time.Time
}

// State is a snapshot of the platform.
type State struct {
	Camera         int      `json:"camera"`
	Resolution     int      `json:"resolution"`
	FrameRate      int      `json:"frame_rate"`
	Format         string   `json:"format"`
	VideoRecording bool     `json:"video_recording"`
	VideoStem      string   `json:"video_stem,omitempty"`
	AudioRecording bool     `json:"audio_recording"`
	AudioPath      string   `json:"audio_path,omitempty"`
	Subscribers    []string `json:"subscribers,omitempty"`
}

func newPlatform(modules []string, keys sensor.Keys, clk clock.Clock) *Platform {
	offered := make(map[string]bool, len(modules))
	for _, m := range modules {
		offered[m] = true
	}
	return &Platform{
		clock:       clk,
		booted:      clk.Now(),
		keys:        keys,
		modules:     offered,
		subscribers: make(map[string]bool),
		values:      make(map[string]any),
		failures:    make(map[string]string),
	}
}

// SetValue pins a memory key to value, overriding the generated signal.
func (p *Platform) SetValue(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// FailMethod makes module.method answer with message until cleared.
func (p *Platform) FailMethod(module, method, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[module+"."+method] = message
}

// ClearFailure removes an injected failure.
func (p *Platform) ClearFailure(module, method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, module+"."+method)
}

// State returns a snapshot.
func (p *Platform) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := State{
		Camera:         p.camera,
		Resolution:     p.resolution,
		FrameRate:      p.frameRate,
		Format:         p.format,
		VideoRecording: p.video != nil,
		AudioRecording: p.audioOn,
		AudioPath:      p.audioPath,
	}
	if p.video != nil {
		s.VideoStem = p.video.stem
	}
	for tag := range p.subscribers {
		s.Subscribers = append(s.Subscribers, tag)
	}
	sort.Strings(s.Subscribers)
	return s
}

// Handle executes one call and returns the value to encode as result.
func (p *Platform) Handle(module, method string, args []any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg, ok := p.failures[module+"."+method]; ok {
		return nil, fmt.Errorf("%s", msg)
	}

	if module == broker.ModuleBroker {
		if method != broker.MethodService {
			return nil, fmt.Errorf("unknown method %s", method)
		}
		name, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		if !p.modules[name] {
			return nil, fmt.Errorf("service %s not found", name)
		}
		return nil, nil
	}

	if !p.modules[module] {
		return nil, fmt.Errorf("service %s not found", module)
	}

	switch module {
	case broker.ModuleVideoRecorder:
		return p.handleVideo(method, args)
	case broker.ModuleAudioDevice:
		return p.handleAudio(method, args)
	case broker.ModuleSonar:
		return p.handleSonar(method, args)
	case broker.ModuleMemory:
		return p.handleMemory(method, args)
	}
	return nil, fmt.Errorf("unknown module %s", module)
}

func (p *Platform) handleVideo(method string, args []any) (any, error) {
	switch method {
	case broker.MethodSetCameraID:
		id, err := argInt(args, 0)
		if err != nil {
			return nil, err
		}
		if id != 0 && id != 1 {
			return nil, fmt.Errorf("invalid camera id %d", id)
		}
		if p.video != nil {
			return nil, fmt.Errorf("cannot switch camera while recording")
		}
		p.camera = id
		return nil, nil

	case broker.MethodGetCameraID:
		return p.camera, nil

	case broker.MethodSetResolution:
		level, err := argInt(args, 0)
		if err != nil {
			return nil, err
		}
		p.resolution = level
		return nil, nil

	case broker.MethodSetFrameRate:
		fps, err := argInt(args, 0)
		if err != nil {
			return nil, err
		}
		if fps <= 0 || fps > 30 {
			return nil, fmt.Errorf("unsupported frame rate %d", fps)
		}
		p.frameRate = fps
		return nil, nil

	case broker.MethodSetVideoFormat:
		format, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		p.format = format
		return nil, nil

	case broker.MethodStartRecording:
		if p.video != nil {
			return nil, fmt.Errorf("already recording")
		}
		dir, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		stem, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		p.video = &videoRun{dir: dir, stem: stem, started: p.clock.Now()}
		return nil, nil

	case broker.MethodStopRecording:
		if p.video == nil {
			return nil, fmt.Errorf("not recording")
		}
		run := p.video
		p.video = nil
		frames := int(p.clock.Since(run.started).Seconds() * float64(p.frameRate))
		return broker.RecordingResult{Path: path.Join(run.dir, run.stem+".avi"), Frames: frames}, nil
	}
	return nil, fmt.Errorf("unknown method %s", method)
}

func (p *Platform) handleAudio(method string, args []any) (any, error) {
	switch method {
	case broker.MethodStartMicrophones:
		if p.audioOn {
			return nil, fmt.Errorf("already recording")
		}
		target, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		p.audioOn = true
		p.audioPath = target
		return nil, nil

	case broker.MethodStopMicrophones:
		if !p.audioOn {
			return nil, fmt.Errorf("not recording")
		}
		p.audioOn = false
		return broker.RecordingResult{Path: p.audioPath}, nil
	}
	return nil, fmt.Errorf("unknown method %s", method)
}

func (p *Platform) handleSonar(method string, args []any) (any, error) {
	tag, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	switch method {
	case broker.MethodSubscribe:
		p.subscribers[tag] = true
		return nil, nil
	case broker.MethodUnsubscribe:
		if !p.subscribers[tag] {
			return nil, fmt.Errorf("%s is not subscribed", tag)
		}
		delete(p.subscribers, tag)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown method %s", method)
}

func (p *Platform) handleMemory(method string, args []any) (any, error) {
	if method != broker.MethodGetData {
		return nil, fmt.Errorf("unknown method %s", method)
	}
	key, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	if v, ok := p.values[key]; ok {
		return v, nil
	}

	t := p.clock.Since(p.booted).Seconds()
	switch key {
	case p.keys.SonarLeft:
		return p.sonar(t, 0), nil
	case p.keys.SonarRight:
		return p.sonar(t, math.Pi/2), nil
	}
	for i, k := range p.keys.Touch {
		if k == key {
			return touch(t, i), nil
		}
	}
	return nil, fmt.Errorf("no data for key %s", key)
}

// sonar sweeps between 0.3 and 1.5 metres over four seconds while a
// client is subscribed.
func (p *Platform) sonar(t, phase float64) float64 {
	if len(p.subscribers) == 0 {
		return sonarIdle
	}
	v := 0.9 + 0.6*math.Sin(2*math.Pi*t/4+phase)
	return math.Round(v*1000) / 1000
}

// touch presses each channel for half a second in turn.
func touch(t float64, channel int) float64 {
	slot := int(t*2) % (sensor.TouchChannels * 2)
	if slot == channel*2 {
		return 1
	}
	return 0
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, args[i])
	}
	return s, nil
}

func argInt(args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	switch n := args[i].(type) {
	case uint64:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("argument %d: expected integer, got %T", i, args[i])
	}
}
