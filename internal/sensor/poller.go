package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/device"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 10 * time.Millisecond

// ErrArmed is returned by Arm while the poller is already running.
var ErrArmed = errors.New("poller already armed")

// Channels are the logs a run writes to. A nil log disables the channel.
type Channels struct {
	Sonar *Log
	Touch *Log
}

func (c Channels) empty() bool {
	return c.Sonar == nil && c.Touch == nil
}

// Stats counts what a run did.
type Stats struct {
	SonarSamples int `json:"sonar_samples"`
	TouchSamples int `json:"touch_samples"`
	SkippedTicks int `json:"skipped_ticks"`
	ReadFailures int `json:"read_failures"`
}

// Poller reads the enabled sensor channels on every tick and appends one
// line per channel. It runs only between Arm and Disarm.
type Poller struct {
	interval time.Duration
	keys     Keys
	clock    clock.Clock

	mu      sync.Mutex
	current *run
}

type run struct {
	reader   Reader
	channels Channels
	start    time.Time
	stop     chan struct{}
	done     chan struct{}

	sonarSamples atomic.Int64
	touchSamples atomic.Int64
	skipped      atomic.Int64
	failures     atomic.Int64

	sonarFailing bool
	touchFailing bool
}

// NewPoller creates a disarmed poller. A non-positive interval selects
// DefaultInterval.
func NewPoller(interval time.Duration, keys Keys, clk clock.Clock) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Poller{interval: interval, keys: keys, clock: clk}
}

// Interval returns the sampling period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Arm starts sampling. Elapsed times are measured from start. Arming with
// no enabled channel is a no-op.
func (p *Poller) Arm(memory device.MemoryBackend, start time.Time, channels Channels) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return ErrArmed
	}
	if channels.empty() {
		slog.Debug("No sensor channel enabled, poller stays idle")
		return nil
	}
	if channels.Touch != nil && len(p.keys.Touch) != TouchChannels {
		return fmt.Errorf("touch logging needs %d keys, got %d", TouchChannels, len(p.keys.Touch))
	}

	r := &run{
		reader:   Reader{Memory: memory, Keys: p.keys},
		channels: channels,
		start:    start,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.current = r
	go p.loop(r)

	slog.Debug("Sensor poller armed", "interval", p.interval,
		"sonar", channels.Sonar != nil, "touch", channels.Touch != nil)
	return nil
}

// Disarm stops sampling and waits for an in-flight tick to finish. Once it
// returns no further line is written. Disarming an idle poller returns
// zero stats.
func (p *Poller) Disarm() Stats {
	p.mu.Lock()
	r := p.current
	p.current = nil
	p.mu.Unlock()

	if r == nil {
		return Stats{}
	}

	close(r.stop)
	<-r.done

	stats := r.stats()
	slog.Debug("Sensor poller disarmed", "sonar_samples", stats.SonarSamples,
		"touch_samples", stats.TouchSamples, "skipped", stats.SkippedTicks,
		"read_failures", stats.ReadFailures)
	return stats
}

// Armed reports whether a run is active.
func (p *Poller) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Stats returns the counters of the active run.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()
	if r == nil {
		return Stats{}
	}
	return r.stats()
}

func (r *run) stats() Stats {
	return Stats{
		SonarSamples: int(r.sonarSamples.Load()),
		TouchSamples: int(r.touchSamples.Load()),
		SkippedTicks: int(r.skipped.Load()),
		ReadFailures: int(r.failures.Load()),
	}
}

func (p *Poller) loop(r *run) {
	defer close(r.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case scheduled := <-ticker.C:
			// A stop that raced with the tick wins.
			select {
			case <-r.stop:
				return
			default:
			}
			if time.Since(scheduled) > p.interval {
				r.skipped.Add(1)
				continue
			}
			p.tick(r)
		}
	}
}

func (p *Poller) tick(r *run) {
	ctx := context.Background()
	elapsed := p.clock.Since(r.start).Seconds()

	if r.channels.Sonar != nil {
		sample, err := r.reader.Sonar(ctx, elapsed)
		if err == nil {
			err = r.channels.Sonar.WriteLine(sample.Line())
		}
		if r.record("sonar", err, &r.sonarFailing) {
			r.sonarSamples.Add(1)
		}
	}

	if r.channels.Touch != nil {
		sample, err := r.reader.Touch(ctx, elapsed)
		if err == nil {
			err = r.channels.Touch.WriteLine(sample.Line())
		}
		if r.record("touch", err, &r.touchFailing) {
			r.touchSamples.Add(1)
		}
	}
}

// record reports whether the channel produced a line. Only the first
// failure of a streak is logged at warn level.
func (r *run) record(channel string, err error, failing *bool) bool {
	if err == nil {
		if *failing {
			slog.Info("Sensor channel recovered", "channel", channel)
			*failing = false
		}
		return true
	}

	r.failures.Add(1)
	if !*failing {
		slog.Warn("Sensor read failed, skipping", "channel", channel, "error", err)
		*failing = true
	} else {
		slog.Debug("Sensor read failed, skipping", "channel", channel, "error", err)
	}
	return false
}

