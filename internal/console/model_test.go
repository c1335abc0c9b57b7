package console

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/config"
	"github.com/audiolibrelab/robocapture/internal/device/devicetest"
	"github.com/audiolibrelab/robocapture/internal/service"
)

func newModel(t *testing.T) (Model, *devicetest.Broker) {
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

	return New(context.Background(), svc), b
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and, when it starts an action, drives the action and
// the following refresh to completion.
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(keyPress(s))
	m = next.(Model)
	if !m.busy || cmd == nil {
		return m
	}

	msg := cmd()
	require.IsType(t, actionMsg{}, msg)
	next, cmd = m.Update(msg)
	m = next.(Model)
	require.NotNil(t, cmd)

	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestConnectStartStop(t *testing.T) {
	m, b := newModel(t)
	assert.Equal(t, service.DisplayNotConnected, m.status.Display)

	m = press(t, m, "c")
	assert.Equal(t, service.DisplayReady, m.status.Display)
	assert.Equal(t, "Connect done", m.message)
	assert.False(t, m.busy)

	m = press(t, m, "s")
	assert.Equal(t, service.DisplayRecording, m.status.Display)
	video, audio := b.Recording()
	assert.True(t, video)
	assert.True(t, audio)

	m = press(t, m, "x")
	assert.Equal(t, service.DisplayRecordingStopped, m.status.Display)
	assert.Contains(t, m.View(), "Last: 20240301_102030")
}

func TestStartWithoutConnectionShowsError(t *testing.T) {
	m, _ := newModel(t)

	m = press(t, m, "s")

	assert.True(t, m.failed)
	assert.Equal(t, "Start failed: not connected", m.message)
	assert.Contains(t, m.View(), "Not connected")
}

func TestToggles(t *testing.T) {
	m, _ := newModel(t)

	m = press(t, m, "a")
	assert.Equal(t, ".ogg", m.status.AudioFormat)

	m = press(t, m, "o")
	assert.True(t, m.status.Options.SonarLogging)
	m = press(t, m, "p")
	assert.True(t, m.status.Options.TouchLogging)
	m = press(t, m, "o")
	assert.False(t, m.status.Options.SonarLogging)
}

func TestEditLabel(t *testing.T) {
	m, _ := newModel(t)

	m = press(t, m, "l")
	require.True(t, m.editing)

	for _, r := range "take 1" {
		m = press(t, m, string(r))
	}
	assert.True(t, m.editing, "keys go to the input while editing")

	m = press(t, m, "enter")
	assert.False(t, m.editing)
	assert.Equal(t, "take_1", m.status.Options.Label)

	m = press(t, m, "l")
	m = press(t, m, "z")
	m = press(t, m, "esc")
	assert.False(t, m.editing)
	assert.Equal(t, "take_1", m.status.Options.Label)
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m, b := newModel(t)

	next, cmd := m.Update(keyPress("c"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	next, second := m.Update(keyPress("c"))
	m = next.(Model)
	assert.Nil(t, second)
	assert.Equal(t, 0, len(b.Calls()))
}

func TestQuitCloses(t *testing.T) {
	m, b := newModel(t)
	m = press(t, m, "c")

	next, cmd := m.Update(keyPress("q"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.closing)

	msg := cmd()
	require.IsType(t, closedMsg{}, msg)
	assert.True(t, b.Closed())

	_, cmd = m.Update(msg)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpToggle(t *testing.T) {
	m, _ := newModel(t)

	short := m.View()
	m = press(t, m, "?")
	assert.True(t, m.help.ShowAll)
	full := m.View()

	assert.True(t, strings.Contains(full, "switch camera"))
	assert.False(t, strings.Contains(short, "switch camera"))
}
