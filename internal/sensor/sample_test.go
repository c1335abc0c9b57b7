package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonarSampleLine(t *testing.T) {
	tests := []struct {
		name   string
		sample SonarSample
		want   string
	}{
		{"right before left", SonarSample{Elapsed: 1.5, Left: 0.3, Right: 0.42}, "1.500,0.42,0.3"},
		{"zero elapsed", SonarSample{Elapsed: 0, Left: 2.55, Right: 2.55}, "0.000,2.55,2.55"},
		{"millisecond rounding", SonarSample{Elapsed: 0.0104, Left: 1, Right: 0.25}, "0.010,0.25,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sample.Line())
		})
	}
}

func TestTouchSampleLine(t *testing.T) {
	sample := TouchSample{
		Elapsed:  2.25,
		Channels: [TouchChannels]bool{true, false, false, false, true, false},
	}
	assert.Equal(t, "2.250,1,0,0,0,1,0", sample.Line())

	assert.Equal(t, "0.000,0,0,0,0,0,0", TouchSample{}.Line())
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{float64(0.5), 0.5},
		{float32(0.25), 0.25},
		{int(3), 3},
		{int64(-2), -2},
		{uint64(7), 7},
	}
	for _, tt := range tests {
		got, err := toFloat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := toFloat("0.5")
	assert.Error(t, err)
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{float64(1), true},
		{float64(0), false},
		{uint64(1), true},
	}
	for _, tt := range tests {
		got, err := toBool(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := toBool(nil)
	assert.Error(t, err)
}
