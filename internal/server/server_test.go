package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/config"
	"github.com/audiolibrelab/robocapture/internal/device/devicetest"
	"github.com/audiolibrelab/robocapture/internal/server"
	"github.com/audiolibrelab/robocapture/internal/service"
)

func newServer(t *testing.T) (*httptest.Server, *devicetest.Broker) {
	t.Helper()

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Sensors.LogDirectory = t.TempDir()

	b := devicetest.NewBroker()
	svc, err := service.New(cfg, service.Options{
		Dialer: &devicetest.Dialer{Broker: b},
		Clock:  clock.NewFake(time.Date(2024, 3, 1, 10, 20, 30, 0, time.Local)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close(context.Background()) })

	ts := httptest.NewServer(server.New(svc, 0).Handler())
	t.Cleanup(ts.Close)
	return ts, b
}

func post(t *testing.T, ts *httptest.Server, path string, form url.Values) (int, map[string]any) {
	t.Helper()
	resp, err := http.PostForm(ts.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func status(t *testing.T, ts *httptest.Server) service.Status {
	t.Helper()
	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s service.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func TestIndex(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))

	resp, err = http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newServer(t)

	code, body := post(t, ts, "/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, false, body["success"])

	resp, err := http.Get(ts.URL + "/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStartWithoutConnection(t *testing.T) {
	ts, b := newServer(t)

	code, body := post(t, ts, "/start", nil)

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "not connected")
	assert.Empty(t, b.Calls())
	assert.Equal(t, service.DisplayNotConnected, status(t, ts).Display)
}

func TestConnect_InvalidPort(t *testing.T) {
	ts, _ := newServer(t)

	code, body := post(t, ts, "/connect", url.Values{"address": {"10.0.0.2"}, "port": {"abc"}})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid port: abc", body["error"])
}

func TestRecordingFlow(t *testing.T) {
	ts, b := newServer(t)

	code, body := post(t, ts, "/connect", url.Values{"address": {"127.0.0.1"}, "port": {"9559"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, service.DisplayReady, status(t, ts).Display)

	code, body = post(t, ts, "/options", url.Values{"label": {"take one!"}, "sonar_logging": {"false"}})
	require.Equal(t, http.StatusOK, code, body)
	options := body["options"].(map[string]any)
	assert.Equal(t, "take_one", options["label"])

	code, body = post(t, ts, "/audio", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, ".ogg", body["audio_format"])

	code, body = post(t, ts, "/start", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "20240301_102030_take_one", body["stem"])
	assert.Equal(t, "/home/nao/recordings/microphones/20240301_102030_take_one.ogg", b.AudioPath())

	code, _ = post(t, ts, "/camera", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = post(t, ts, "/start", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = post(t, ts, "/stop", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Recording stopped", body["message"])

	code, body = post(t, ts, "/camera", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Bottom camera", body["camera"])
}

func TestOptions_InvalidFlag(t *testing.T) {
	ts, _ := newServer(t)

	code, body := post(t, ts, "/options", url.Values{"touch_logging": {"maybe"}})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid touch_logging: maybe", body["error"])
}

func TestInfo(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/info?label=demo")
	require.NoError(t, err)
	defer resp.Body.Close()

	var info service.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "20240301_102030_demo", info.Stem)
	assert.Equal(t, "/home/nao/recordings/cameras/20240301_102030_demo.avi", info.VideoFile)
}

func TestHistoryDisabled(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClose(t *testing.T) {
	ts, b := newServer(t)

	code, _ := post(t, ts, "/connect", nil)
	require.Equal(t, http.StatusOK, code)

	code, body := post(t, ts, "/close", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.True(t, b.Closed())
	assert.Equal(t, service.DisplayNotConnected, status(t, ts).Display)
}
