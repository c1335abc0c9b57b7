package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/robocapture/internal/broker"
	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/sensor"
)

func newTestPlatform(modules ...string) (*Platform, *clock.Fake) {
	if len(modules) == 0 {
		modules = AllModules
	}
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return newPlatform(modules, sensor.DefaultKeys, clk), clk
}

func TestPlatform_ServiceLookup(t *testing.T) {
	p, _ := newTestPlatform(broker.ModuleVideoRecorder)

	_, err := p.Handle(broker.ModuleBroker, broker.MethodService, []any{broker.ModuleVideoRecorder})
	assert.NoError(t, err)

	_, err = p.Handle(broker.ModuleBroker, broker.MethodService, []any{broker.ModuleSonar})
	assert.EqualError(t, err, "service ALSonar not found")

	_, err = p.Handle(broker.ModuleSonar, broker.MethodSubscribe, []any{"tag"})
	assert.Error(t, err, "calls on a missing module fail")
}

func TestPlatform_VideoRecording(t *testing.T) {
	p, clk := newTestPlatform()

	_, err := p.Handle(broker.ModuleVideoRecorder, broker.MethodSetFrameRate, []any{uint64(30)})
	require.NoError(t, err)
	_, err = p.Handle(broker.ModuleVideoRecorder, broker.MethodStartRecording, []any{"/rec/cameras", "20240501_090000"})
	require.NoError(t, err)

	_, err = p.Handle(broker.ModuleVideoRecorder, broker.MethodStartRecording, []any{"/rec/cameras", "x"})
	assert.EqualError(t, err, "already recording")

	_, err = p.Handle(broker.ModuleVideoRecorder, broker.MethodSetCameraID, []any{uint64(1)})
	assert.Error(t, err, "camera is locked while recording")

	clk.Advance(2 * time.Second)
	result, err := p.Handle(broker.ModuleVideoRecorder, broker.MethodStopRecording, nil)
	require.NoError(t, err)
	assert.Equal(t, broker.RecordingResult{Path: "/rec/cameras/20240501_090000.avi", Frames: 60}, result)

	_, err = p.Handle(broker.ModuleVideoRecorder, broker.MethodStopRecording, nil)
	assert.EqualError(t, err, "not recording")
}

func TestPlatform_Camera(t *testing.T) {
	p, _ := newTestPlatform()

	_, err := p.Handle(broker.ModuleVideoRecorder, broker.MethodSetCameraID, []any{uint64(1)})
	require.NoError(t, err)
	got, err := p.Handle(broker.ModuleVideoRecorder, broker.MethodGetCameraID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = p.Handle(broker.ModuleVideoRecorder, broker.MethodSetCameraID, []any{uint64(4)})
	assert.Error(t, err)

	_, err = p.Handle(broker.ModuleVideoRecorder, broker.MethodSetCameraID, []any{"1"})
	assert.Error(t, err)
}

func TestPlatform_Sonar(t *testing.T) {
	p, clk := newTestPlatform()
	keys := sensor.DefaultKeys

	v, err := p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{keys.SonarLeft})
	require.NoError(t, err)
	assert.Equal(t, sonarIdle, v, "idle value without subscribers")

	_, err = p.Handle(broker.ModuleSonar, broker.MethodSubscribe, []any{"robocapture"})
	require.NoError(t, err)
	assert.Equal(t, []string{"robocapture"}, p.State().Subscribers)

	clk.Advance(time.Second)
	v, err = p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{keys.SonarLeft})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 0.001)

	_, err = p.Handle(broker.ModuleSonar, broker.MethodUnsubscribe, []any{"robocapture"})
	require.NoError(t, err)
	_, err = p.Handle(broker.ModuleSonar, broker.MethodUnsubscribe, []any{"robocapture"})
	assert.Error(t, err)
}

func TestPlatform_TouchAndOverrides(t *testing.T) {
	p, clk := newTestPlatform()
	keys := sensor.DefaultKeys

	v, err := p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{keys.Touch[0]})
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	clk.Advance(time.Second)
	v, err = p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{keys.Touch[0]})
	require.NoError(t, err)
	assert.Equal(t, float64(0), v)
	v, err = p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{keys.Touch[1]})
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	p.SetValue(keys.Touch[1], 0.0)
	v, err = p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{keys.Touch[1]})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = p.Handle(broker.ModuleMemory, broker.MethodGetData, []any{"Unknown/Key"})
	assert.Error(t, err)
}

func TestPlatform_FailMethod(t *testing.T) {
	p, _ := newTestPlatform()

	p.FailMethod(broker.ModuleAudioDevice, broker.MethodStartMicrophones, "microphones busy")
	_, err := p.Handle(broker.ModuleAudioDevice, broker.MethodStartMicrophones, []any{"/rec/a.wav"})
	assert.EqualError(t, err, "microphones busy")

	p.ClearFailure(broker.ModuleAudioDevice, broker.MethodStartMicrophones)
	_, err = p.Handle(broker.ModuleAudioDevice, broker.MethodStartMicrophones, []any{"/rec/a.wav"})
	require.NoError(t, err)
	assert.True(t, p.State().AudioRecording)

	result, err := p.Handle(broker.ModuleAudioDevice, broker.MethodStopMicrophones, nil)
	require.NoError(t, err)
	assert.Equal(t, broker.RecordingResult{Path: "/rec/a.wav"}, result)
}
