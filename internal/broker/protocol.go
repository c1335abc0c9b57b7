// Package broker implements the platform transport: one TCP connection
// carrying CBOR request/response pairs, one outstanding call at a time.
package broker

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Platform module names.
const (
	ModuleVideoRecorder = "ALVideoRecorder"
	ModuleAudioDevice   = "ALAudioDevice"
	ModuleSonar         = "ALSonar"
	ModuleMemory        = "ALMemory"

	// ModuleBroker answers service lookups; acquiring a proxy is a
	// successful MethodService call naming the module.
	ModuleBroker  = "broker"
	MethodService = "service"
)

// Module methods.
const (
	MethodSetCameraID    = "setCameraID"
	MethodGetCameraID    = "getCameraID"
	MethodSetResolution  = "setResolution"
	MethodSetFrameRate   = "setFrameRate"
	MethodSetVideoFormat = "setVideoFormat"
	MethodStartRecording = "startRecording"
	MethodStopRecording  = "stopRecording"

	MethodStartMicrophones = "startMicrophonesRecording"
	MethodStopMicrophones  = "stopMicrophonesRecording"

	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"

	MethodGetData = "getData"
)

// Request is a single call on a platform module.
type Request struct {
	ID     uint64 `cbor:"id"`
	Module string `cbor:"module"`
	Method string `cbor:"method"`
	Args   []any  `cbor:"args,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint64          `cbor:"id"`
	OK     bool            `cbor:"ok"`
	Error  string          `cbor:"error,omitempty"`
	Result cbor.RawMessage `cbor:"result,omitempty"`
}

// RecordingResult is returned by both stop-recording methods.
type RecordingResult struct {
	Path   string `cbor:"path"`
	Frames int    `cbor:"frames,omitempty"`
}

// RemoteError is a failure reported by the platform rather than the
// transport.
type RemoteError struct {
	Module  string
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Module, e.Method, e.Message)
}
