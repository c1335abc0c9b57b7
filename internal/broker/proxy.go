package broker

import (
	"context"

	"github.com/audiolibrelab/robocapture/internal/device"
)

type videoProxy struct{ c *Client }

func (p *videoProxy) SetCameraID(ctx context.Context, id int) error {
	return p.c.Call(ctx, ModuleVideoRecorder, MethodSetCameraID, nil, id)
}

func (p *videoProxy) CameraID(ctx context.Context) (int, error) {
	var id int
	if err := p.c.Call(ctx, ModuleVideoRecorder, MethodGetCameraID, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *videoProxy) SetResolution(ctx context.Context, level int) error {
	return p.c.Call(ctx, ModuleVideoRecorder, MethodSetResolution, nil, level)
}

func (p *videoProxy) SetFrameRate(ctx context.Context, fps int) error {
	return p.c.Call(ctx, ModuleVideoRecorder, MethodSetFrameRate, nil, fps)
}

func (p *videoProxy) SetVideoFormat(ctx context.Context, format string) error {
	return p.c.Call(ctx, ModuleVideoRecorder, MethodSetVideoFormat, nil, format)
}

func (p *videoProxy) StartRecording(ctx context.Context, dir, stem string) error {
	return p.c.Call(ctx, ModuleVideoRecorder, MethodStartRecording, nil, dir, stem)
}

func (p *videoProxy) StopRecording(ctx context.Context) (device.RecordingInfo, error) {
	var result RecordingResult
	if err := p.c.Call(ctx, ModuleVideoRecorder, MethodStopRecording, &result); err != nil {
		return device.RecordingInfo{}, err
	}
	return device.RecordingInfo{Path: result.Path, Frames: result.Frames}, nil
}

type audioProxy struct{ c *Client }

func (p *audioProxy) StartMicrophonesRecording(ctx context.Context, path string) error {
	return p.c.Call(ctx, ModuleAudioDevice, MethodStartMicrophones, nil, path)
}

func (p *audioProxy) StopMicrophonesRecording(ctx context.Context) (device.RecordingInfo, error) {
	var result RecordingResult
	if err := p.c.Call(ctx, ModuleAudioDevice, MethodStopMicrophones, &result); err != nil {
		return device.RecordingInfo{}, err
	}
	return device.RecordingInfo{Path: result.Path}, nil
}

type sonarProxy struct{ c *Client }

func (p *sonarProxy) Subscribe(ctx context.Context, tag string) error {
	return p.c.Call(ctx, ModuleSonar, MethodSubscribe, nil, tag)
}

func (p *sonarProxy) Unsubscribe(ctx context.Context, tag string) error {
	return p.c.Call(ctx, ModuleSonar, MethodUnsubscribe, nil, tag)
}

type memoryProxy struct{ c *Client }

func (p *memoryProxy) GetData(ctx context.Context, key string) (any, error) {
	var value any
	if err := p.c.Call(ctx, ModuleMemory, MethodGetData, &value, key); err != nil {
		return nil, err
	}
	return value, nil
}
