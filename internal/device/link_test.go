package device_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/robocapture/internal/device"
	"github.com/audiolibrelab/robocapture/internal/device/devicetest"
)

func newLink(t *testing.T) (*device.Link, *devicetest.Broker, *devicetest.Dialer) {
	t.Helper()
	broker := devicetest.NewBroker()
	dialer := &devicetest.Dialer{Broker: broker}
	return device.NewLink(dialer, device.DefaultVideoSettings), broker, dialer
}

func TestConnect_Success(t *testing.T) {
	link, broker, _ := newLink(t)

	require.NoError(t, link.Connect(context.Background(), "127.0.0.1", 9559))

	assert.True(t, link.IsReady())
	assert.Equal(t, device.StateReady, link.State())
	assert.Equal(t, "127.0.0.1:9559", link.Address())
	assert.Equal(t, []string{
		"acquire.VideoRecorder",
		"acquire.AudioDevice",
		"acquire.Sonar",
		"acquire.Memory",
		"video.SetResolution",
		"video.SetFrameRate",
		"video.SetVideoFormat",
		"video.SetCameraID",
	}, broker.Calls())
	assert.Equal(t, device.CameraTop, broker.CameraID())

	for name, get := range map[string]func() (any, error){
		"video":  func() (any, error) { return link.Video() },
		"audio":  func() (any, error) { return link.Audio() },
		"sonar":  func() (any, error) { return link.Sonar() },
		"memory": func() (any, error) { return link.Memory() },
	} {
		h, err := get()
		assert.NoError(t, err, name)
		assert.NotNil(t, h, name)
	}
}

func TestConnect_AnyFailureLeavesNoHandles(t *testing.T) {
	steps := []string{
		"acquire.VideoRecorder",
		"acquire.AudioDevice",
		"acquire.Sonar",
		"acquire.Memory",
		"video.SetResolution",
		"video.SetFrameRate",
		"video.SetVideoFormat",
		"video.SetCameraID",
	}

	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			link, broker, _ := newLink(t)
			broker.FailOn(step, errors.New("boom"))

			err := link.Connect(context.Background(), "robot.local", 9559)
			require.Error(t, err)

			var connErr *device.ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, "robot.local:9559", connErr.Address)

			assert.False(t, link.IsReady())
			assert.Equal(t, device.StateDisconnected, link.State())
			assert.True(t, broker.Closed(), "broker must be released")

			_, err = link.Video()
			assert.ErrorIs(t, err, device.ErrNotConnected)
			_, err = link.Audio()
			assert.ErrorIs(t, err, device.ErrNotConnected)
			_, err = link.Sonar()
			assert.ErrorIs(t, err, device.ErrNotConnected)
			_, err = link.Memory()
			assert.ErrorIs(t, err, device.ErrNotConnected)
		})
	}
}

func TestConnect_ConfigureFailureWithCloseError(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	link, broker, _ := newLink(t)
	configureErr := errors.New("unsupported resolution")
	broker.FailOn("video.SetResolution", configureErr)
	broker.FailOn("broker.Close", errors.New("socket already gone"))

	err := link.Connect(context.Background(), "robot.local", 9559)

	var connErr *device.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "configure video", connErr.Step)
	assert.ErrorIs(t, err, configureErr)
	assert.NotContains(t, err.Error(), "socket already gone")
	assert.Equal(t, device.StateDisconnected, link.State())
	assert.Equal(t, 1, broker.CallCount("broker.Close"))
	assert.Contains(t, logs.String(), "Failed to close broker after configure failure")
	assert.Contains(t, logs.String(), "socket already gone")
}

func TestConnect_DialFailure(t *testing.T) {
	dialer := &devicetest.Dialer{Err: errors.New("connection refused")}
	link := device.NewLink(dialer, device.DefaultVideoSettings)

	err := link.Connect(context.Background(), "10.0.0.2", 9559)

	var connErr *device.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Step)
	assert.Equal(t, 1, dialer.Dials(), "a single attempt is made")
	assert.Equal(t, device.StateDisconnected, link.State())
}

func TestConnect_ReconnectReleasesPrevious(t *testing.T) {
	link, broker, dialer := newLink(t)
	ctx := context.Background()

	require.NoError(t, link.Connect(ctx, "127.0.0.1", 9559))
	require.NoError(t, link.Connect(ctx, "127.0.0.1", 9559))

	assert.Equal(t, 2, dialer.Dials())
	assert.Equal(t, 1, broker.CallCount("broker.Close"))
	assert.True(t, link.IsReady())
}

func TestClose(t *testing.T) {
	link, broker, _ := newLink(t)

	require.NoError(t, link.Close(), "closing a disconnected link is a no-op")

	require.NoError(t, link.Connect(context.Background(), "127.0.0.1", 9559))
	require.NoError(t, link.Close())

	assert.True(t, broker.Closed())
	assert.Equal(t, device.StateDisconnected, link.State())
	_, err := link.Memory()
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestSwitchCamera(t *testing.T) {
	link, _, _ := newLink(t)
	ctx := context.Background()

	_, err := link.SwitchCamera(ctx)
	require.ErrorIs(t, err, device.ErrNotConnected)

	require.NoError(t, link.Connect(ctx, "127.0.0.1", 9559))

	got, err := link.SwitchCamera(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.CameraBottom, got)

	got, err = link.SwitchCamera(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.CameraTop, got)
}

func TestCameraName(t *testing.T) {
	assert.Equal(t, "Top camera", device.CameraName(device.CameraTop))
	assert.Equal(t, "Bottom camera", device.CameraName(device.CameraBottom))
	assert.Equal(t, "Camera 7", device.CameraName(7))
}
