//go:build !cgo || noaudio

package audio

import (
	"errors"

	"github.com/decred/slog"
)

func init() {
	newAudioContext = func(slog.Logger) (audioContext, error) {
		return noAudioContext{}, nil
	}
}

var errNoAudioSupport = errors.New("built without audio capture support " +
	"(requires cgo and no 'noaudio' tag)")

// noAudioContext is used in builds without cgo. It lists no devices and fails
// to open any.
type noAudioContext struct{}

func (noAudioContext) name() string { return "noaudio" }

func (noAudioContext) captureDevices(slog.Logger) ([]Device, error) {
	return nil, errNoAudioSupport
}

func (noAudioContext) initCapture(captureConfig, dataProc) (captureDevice, error) {
	return nil, errNoAudioSupport
}

func (noAudioContext) free() error { return nil }
