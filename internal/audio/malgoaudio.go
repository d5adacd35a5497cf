//go:build cgo && !noaudio

package audio

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/decred/slog"

	"github.com/gen2brain/malgo"
)

// rawFormat needs to match rawFormatSampleSize.
var rawFormat = malgo.FormatF32

func init() {
	newAudioContext = newMalgoContext
}

// preferredBackends returns the malgo backends to try, in order. On Linux the
// sound server is preferred so that device names match the descriptions of
// the mixer sources.
func preferredBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux", "freebsd":
		return []malgo.Backend{malgo.BackendPulseaudio,
			malgo.BackendAlsa, malgo.BackendJack}
	default:
		return nil
	}
}

// malgoContext is the audioContext that captures through miniaudio.
type malgoContext struct {
	malgoCtx *malgo.AllocatedContext
}

func newMalgoContext(log slog.Logger) (audioContext, error) {
	logProc := func(msg string) {
		log.Debugf("miniaudio: %s", strings.TrimSpace(msg))
	}
	malgoCtx, err := malgo.InitContext(preferredBackends(),
		malgo.ContextConfig{}, logProc)
	if err != nil {
		return nil, err
	}

	return &malgoContext{malgoCtx: malgoCtx}, nil
}

func (mpc *malgoContext) name() string {
	return "malgo"
}

func (mpc *malgoContext) free() error {
	if err := mpc.malgoCtx.Uninit(); err != nil {
		return err
	}
	mpc.malgoCtx.Free()
	return nil
}

// deviceFormats returns the max channel count and the first native rate
// listed by the device. Zero counts mean the device accepts any value.
func deviceFormats(info *malgo.DeviceInfo) (maxChannels int, rate uint32) {
	n := min(int(info.FormatCount), len(info.Formats))
	for _, f := range info.Formats[:n] {
		maxChannels = max(maxChannels, int(f.Channels))
		if rate == 0 && f.SampleRate > 0 {
			rate = f.SampleRate
		}
	}
	if maxChannels == 0 {
		maxChannels = channels
	}
	return maxChannels, rate
}

func (mpc *malgoContext) captureDevices(log slog.Logger) ([]Device, error) {
	infos, err := mpc.malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}

	res := make([]Device, 0, len(infos))
	seen := make(map[DeviceID]struct{}, len(infos))
	for _, info := range infos {
		full, err := mpc.malgoCtx.DeviceInfo(malgo.Capture, info.ID, malgo.Shared)
		if err != nil {
			log.Warnf("Unable to query capture device %q: %v",
				info.Name(), err)
			continue
		}

		// Some backends list the same device more than once.
		id := DeviceID(full.ID[:])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		maxChannels, rate := deviceFormats(&full)
		log.Tracef("Capture device %q: %d channels, %d Hz, default %v",
			full.Name(), maxChannels, rate, full.IsDefault == 1)
		res = append(res, Device{
			ID:                id,
			Name:              full.Name(),
			IsDefault:         full.IsDefault == 1,
			MaxInputChannels:  maxChannels,
			DefaultSampleRate: rate,
		})
	}

	return res, nil
}

func (mpc *malgoContext) initCapture(cfg captureConfig, cb dataProc) (captureDevice, error) {
	if size := malgo.SampleSizeInBytes(rawFormat); size != rawFormatSampleSize {
		return nil, fmt.Errorf("malgo raw format has wrong sample size "+
			"(got %d, want %d)", size, rawFormatSampleSize)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = cfg.sampleRate
	deviceConfig.PeriodSizeInFrames = cfg.periodFrames
	deviceConfig.Capture.Format = rawFormat
	deviceConfig.Capture.Channels = channels
	deviceConfig.Alsa.NoMMap = 1
	if cfg.deviceID != "" {
		var id malgo.DeviceID
		copy(id[:], cfg.deviceID)
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	return malgo.InitDevice(mpc.malgoCtx.Context, deviceConfig,
		malgo.DeviceCallbacks{
			Data: malgo.DataProc(cb),
			Stop: cfg.onStop,
		})
}
