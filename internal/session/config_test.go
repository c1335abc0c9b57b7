package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAudioFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    AudioFormat
		wantErr bool
	}{
		{"wav", AudioWAV, false},
		{".ogg", AudioOGG, false},
		{" WAV ", AudioWAV, false},
		{"mp3", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAudioFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAudioFormat_ToggleAndExtension(t *testing.T) {
	assert.Equal(t, AudioOGG, AudioWAV.Toggle())
	assert.Equal(t, AudioWAV, AudioOGG.Toggle())
	assert.Equal(t, ".wav", AudioWAV.Extension())
	assert.Equal(t, ".ogg", AudioOGG.Extension())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Camera = 2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.AudioFormat = "flac"
	assert.Error(t, cfg.Validate())
}
