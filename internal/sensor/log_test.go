package sensor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_WriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "stem_sonar.txt")

	l, err := CreateLog(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	require.NoError(t, l.WriteLine("0.010,0.5,0.6"))
	require.NoError(t, l.WriteLine("0.020,0.5,0.6"))
	assert.Equal(t, 2, l.Lines())

	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	assert.ErrorIs(t, l.WriteLine("0.030,0.5,0.6"), ErrLogClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.010,0.5,0.6\n0.020,0.5,0.6\n", string(data))
}

func TestCreateLog_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stem_tactile.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0644))

	l, err := CreateLog(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
