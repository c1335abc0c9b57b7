package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// SonarSample is one distance reading in metres.
type SonarSample struct {
	Elapsed float64
	Left    float64
	Right   float64
}

// Line renders the sample as "elapsed,right,left".
func (s SonarSample) Line() string {
	return formatElapsed(s.Elapsed) + "," + formatFloat(s.Right) + "," + formatFloat(s.Left)
}

// TouchSample holds the six hand-touch channels in log column order.
type TouchSample struct {
	Elapsed  float64
	Channels [TouchChannels]bool
}

// Line renders the sample as "elapsed,rH_left,rH_back,rH_right,lH_left,lH_back,lH_right"
// with each channel written as 0 or 1.
func (s TouchSample) Line() string {
	var b strings.Builder
	b.WriteString(formatElapsed(s.Elapsed))
	for _, touched := range s.Channels {
		if touched {
			b.WriteString(",1")
		} else {
			b.WriteString(",0")
		}
	}
	return b.String()
}

func formatElapsed(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// toFloat converts a decoded memory value to a float.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// toBool converts a decoded memory value to a touch state. The platform
// publishes touch sensors as 0.0/1.0.
func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return false, fmt.Errorf("expected a bool or number, got %T", v)
	}
	return f != 0, nil
}
