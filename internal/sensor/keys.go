// Package sensor samples the platform's sonar and touch sensors at a fixed
// interval and appends the readings to per-session log files.
package sensor

// Keys are the memory keys the poller reads.
type Keys struct {
	SonarLeft  string `mapstructure:"sonar_left" yaml:"sonar_left"`
	SonarRight string `mapstructure:"sonar_right" yaml:"sonar_right"`
	// Touch is ordered right hand (left, back, right) then left hand
	// (left, back, right), matching the tactile log columns.
	Touch []string `mapstructure:"touch" yaml:"touch"`
}

// TouchChannels is the number of touch columns in a tactile log line.
const TouchChannels = 6

// DefaultKeys are the platform's published sonar and hand-touch values.
var DefaultKeys = Keys{
	SonarLeft:  "Device/SubDeviceList/US/Left/Sensor/Value",
	SonarRight: "Device/SubDeviceList/US/Right/Sensor/Value",
	Touch: []string{
		"HandRightLeftTouched",
		"HandRightBackTouched",
		"HandRightRightTouched",
		"HandLeftLeftTouched",
		"HandLeftBackTouched",
		"HandLeftRightTouched",
	},
}
