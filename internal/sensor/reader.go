package sensor

import (
	"context"
	"fmt"

	"github.com/audiolibrelab/robocapture/internal/device"
)

// Reader takes single samples from the memory backend.
type Reader struct {
	Memory device.MemoryBackend
	Keys   Keys
}

// Sonar reads both distances. elapsed is stamped on the sample as is.
func (r Reader) Sonar(ctx context.Context, elapsed float64) (SonarSample, error) {
	left, err := r.float(ctx, r.Keys.SonarLeft)
	if err != nil {
		return SonarSample{}, err
	}
	right, err := r.float(ctx, r.Keys.SonarRight)
	if err != nil {
		return SonarSample{}, err
	}
	return SonarSample{Elapsed: elapsed, Left: left, Right: right}, nil
}

// Touch reads the six hand sensors.
func (r Reader) Touch(ctx context.Context, elapsed float64) (TouchSample, error) {
	if len(r.Keys.Touch) != TouchChannels {
		return TouchSample{}, fmt.Errorf("touch needs %d keys, got %d", TouchChannels, len(r.Keys.Touch))
	}

	sample := TouchSample{Elapsed: elapsed}
	for i, key := range r.Keys.Touch {
		value, err := r.Memory.GetData(ctx, key)
		if err != nil {
			return TouchSample{}, fmt.Errorf("read %s: %w", key, err)
		}
		touched, err := toBool(value)
		if err != nil {
			return TouchSample{}, fmt.Errorf("read %s: %w", key, err)
		}
		sample.Channels[i] = touched
	}
	return sample, nil
}

func (r Reader) float(ctx context.Context, key string) (float64, error) {
	value, err := r.Memory.GetData(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	f, err := toFloat(value)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return f, nil
}
