package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/robocapture/internal/sensor"
	"github.com/audiolibrelab/robocapture/internal/session"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newRecord(started time.Time, label string) session.Record {
	stem := session.Stem(started, label)
	return session.Record{
		ID:             uuid.NewString(),
		Stem:           stem,
		Label:          label,
		Camera:         1,
		AudioFormat:    session.AudioOGG,
		VideoDirectory: "/home/nao/recordings/cameras",
		AudioPath:      "/home/nao/recordings/microphones/" + stem + ".ogg",
		SonarLog:       "/tmp/logs/" + stem + "_sonar.txt",
		StartedAt:      started,
	}
}

func TestStore_StartedThenStopped(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	r := newRecord(started, "walk")
	require.NoError(t, store.Started(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Stem, got.Stem)
	assert.True(t, got.StoppedAt.IsZero(), "running session has no stop time")

	r.StoppedAt = started.Add(90 * time.Second)
	r.VideoFile = "/home/nao/recordings/cameras/" + r.Stem + ".avi"
	r.VideoFrames = 2700
	r.Sensors = sensor.Stats{SonarSamples: 9000, SkippedTicks: 3}
	r.StopError = "stop audio recording: gone"
	require.NoError(t, store.Stopped(ctx, r))

	got, err = store.Get(ctx, r.Stem)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "walk", got.Label)
	assert.Equal(t, 1, got.Camera)
	assert.Equal(t, session.AudioOGG, got.AudioFormat)
	assert.Equal(t, r.SonarLog, got.SonarLog)
	assert.Empty(t, got.TouchLog)
	assert.Equal(t, 2700, got.VideoFrames)
	assert.Equal(t, r.Sensors, got.Sensors)
	assert.Equal(t, r.StopError, got.StopError)
	assert.Equal(t, 90*time.Second, got.Duration())
	assert.True(t, got.StartedAt.Equal(started))
}

func TestStore_StoppedWithoutStart(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	r := newRecord(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), "")
	r.StoppedAt = r.StartedAt.Add(time.Minute)
	require.NoError(t, store.Stopped(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, got.Duration())
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Started(ctx, newRecord(base.Add(time.Duration(i)*time.Minute), "")))
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	var stems []string
	for _, r := range all {
		stems = append(stems, r.Stem)
	}
	want := []string{"20240301_090200", "20240301_090100", "20240301_090000"}
	if diff := cmp.Diff(want, stems); diff != "" {
		t.Errorf("List() stems mismatch (-want +got):\n%s", diff)
	}

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_GetMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_IsJournal(t *testing.T) {
	var _ session.Journal = (*Store)(nil)
}
