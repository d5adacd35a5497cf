package audio

import "github.com/decred/slog"

const (
	// channels is the number of captured channels. Pitch detection only
	// needs a mono signal.
	channels = 1

	// rawFormatSampleSize is the size in bytes of each captured sample.
	// This must match the malgo format used in initCapture().
	rawFormatSampleSize = 4
)

// DeviceID identifies a device within the audio backend. It is opaque and
// only valid for the backend that listed it.
type DeviceID string

// Device is a capture device as reported by the audio backend.
type Device struct {
	ID                DeviceID `json:"id"`
	Index             int      `json:"index"`
	Name              string   `json:"name"`
	IsDefault         bool     `json:"is_default"`
	MaxInputChannels  int      `json:"max_input_channels"`
	DefaultSampleRate uint32   `json:"default_sample_rate"`
}

// dataProc is the callback invoked by the backend with captured data.
type dataProc func(output, input []byte, frameCount uint32)

// captureDevice is a device initialized for capturing.
type captureDevice interface {
	Start() error
	Stop() error
	Uninit()
	SampleRate() uint32
}

// captureConfig are the parameters used to init a capture device.
type captureConfig struct {
	deviceID     DeviceID
	sampleRate   uint32
	periodFrames uint32

	// onStop is called by the backend when the device stops, either
	// because it was requested or because the device was lost.
	onStop func()
}

// audioContext abstracts the underlying audio library.
type audioContext interface {
	name() string
	captureDevices(log slog.Logger) ([]Device, error)
	initCapture(cfg captureConfig, cb dataProc) (captureDevice, error)
	free() error
}

// newAudioContext is set by the build-specific files.
var newAudioContext func(log slog.Logger) (audioContext, error)
