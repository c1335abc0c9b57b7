package sensor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/robocapture/internal/sensor"
)

func TestReader(t *testing.T) {
	broker, memory := newMemory(t)
	r := sensor.Reader{Memory: memory, Keys: sensor.DefaultKeys}
	ctx := context.Background()

	sonar, err := r.Sonar(ctx, 0.25)
	require.NoError(t, err)
	assert.Equal(t, sensor.SonarSample{Elapsed: 0.25, Left: 0.52, Right: 1.25}, sonar)

	touch, err := r.Touch(ctx, 0.25)
	require.NoError(t, err)
	assert.Equal(t, [sensor.TouchChannels]bool{false, true, false, true, false, true}, touch.Channels)

	broker.FailOn("memory.GetData:"+sensor.DefaultKeys.Touch[4], errors.New("offline"))
	_, err = r.Touch(ctx, 0.5)
	assert.ErrorContains(t, err, sensor.DefaultKeys.Touch[4])

	broker.SetValue(sensor.DefaultKeys.SonarRight, "far")
	_, err = r.Sonar(ctx, 0.5)
	assert.Error(t, err)
}
