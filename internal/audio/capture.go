package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/decred/slog"
)

// ErrNoDevices is returned when the backend does not list any capture
// device.
var ErrNoDevices = errors.New("no capture devices")

// SamplesFunc receives captured mono samples. The samples slice is reused
// between calls and must not be retained after the function returns.
//
// This is called from the backend's audio thread, so it must return quickly
// and never block.
type SamplesFunc func(samples []float32)

// CaptureParams are the parameters used to open a capture stream.
type CaptureParams struct {
	// SampleRate is the requested rate. Zero uses the device's native
	// rate.
	SampleRate uint32

	// PeriodFrames is the requested number of frames per callback. Zero
	// uses the backend's default.
	PeriodFrames uint32
}

// Stream is a started capture stream bound to a single device.
type Stream interface {
	// SampleRate is the actual rate of the stream.
	SampleRate() uint32

	// Stopped is closed when the backend stops the device. This happens
	// after Close() or when the device is lost.
	Stopped() <-chan struct{}

	// Close stops and releases the underlying device. It is safe to call
	// multiple times.
	Close() error
}

// captureStream is the Stream implementation returned by Backend.
type captureStream struct {
	dev      captureDevice
	log      slog.Logger
	stopped  chan struct{}
	stopOnce sync.Once
	closeMtx sync.Mutex
	closed   bool
	scratch  []float32
	frames   uint64
}

func (cs *captureStream) SampleRate() uint32 {
	return cs.dev.SampleRate()
}

func (cs *captureStream) Stopped() <-chan struct{} {
	return cs.stopped
}

func (cs *captureStream) markStopped() {
	cs.stopOnce.Do(func() { close(cs.stopped) })
}

func (cs *captureStream) Close() error {
	cs.closeMtx.Lock()
	defer cs.closeMtx.Unlock()
	if cs.closed {
		return nil
	}
	cs.closed = true

	err := cs.dev.Stop()
	cs.dev.Uninit()
	cs.markStopped()
	return err
}

// Backend is the audio subsystem used to list and open capture devices.
type Backend struct {
	log slog.Logger

	mtx      sync.Mutex
	audioCtx audioContext
}

// NewBackend initializes the audio library.
func NewBackend(log slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Disabled
	}
	audioCtx, err := newAudioContext(log)
	if err != nil {
		return nil, err
	}

	if addDebugTrace {
		log.Infof("Initializing audio backend with driver %s WITH DEBUG TRACE",
			audioCtx.name())
	} else {
		log.Infof("Initializing audio backend with driver %s",
			audioCtx.name())
	}
	return &Backend{log: log, audioCtx: audioCtx}, nil
}

// Name is the name of the audio driver.
func (b *Backend) Name() string {
	return b.audioCtx.name()
}

// CaptureDevices lists the capture devices. The Index field of each device
// is its position in the returned slice.
func (b *Backend) CaptureDevices() ([]Device, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	devs, err := b.audioCtx.captureDevices(b.log)
	if err != nil {
		return nil, err
	}
	for i := range devs {
		devs[i].Index = i
	}
	return devs, nil
}

// DefaultDevice returns the backend's default capture device. If no device
// is flagged as default, the first device with input channels is returned.
func DefaultDevice(devs []Device) (Device, error) {
	for _, dev := range devs {
		if dev.IsDefault && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	for _, dev := range devs {
		if dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return Device{}, ErrNoDevices
}

// OpenCapture initializes and starts capturing from the given device. Every
// period of decoded samples is passed to fn.
func (b *Backend) OpenCapture(dev Device, params CaptureParams, fn SamplesFunc) (Stream, error) {
	cs := &captureStream{
		log:     b.log,
		stopped: make(chan struct{}),
		scratch: make([]float32, 0, params.PeriodFrames),
	}

	onRecvFrames := func(_, inSamples []byte, framecount uint32) {
		readSize := int(framecount) * rawFormatSampleSize * channels
		if len(inSamples) < readSize {
			cs.log.Warnf("inSamples buffer has len %d when expected %d",
				len(inSamples), readSize)
			readSize = len(inSamples) - len(inSamples)%rawFormatSampleSize
		}
		cs.scratch = bytesToLEF32Slice(inSamples[:readSize], cs.scratch[:0])
		cs.frames += uint64(framecount)
		if addDebugTrace {
			cs.log.Tracef("Captured %d frames (total %d)", framecount,
				cs.frames)
		}
		fn(cs.scratch)
	}

	cfg := captureConfig{
		deviceID:     dev.ID,
		sampleRate:   params.SampleRate,
		periodFrames: params.PeriodFrames,
		onStop:       cs.markStopped,
	}

	b.mtx.Lock()
	device, err := b.audioCtx.initCapture(cfg, onRecvFrames)
	b.mtx.Unlock()
	if err != nil {
		return nil, fmt.Errorf("unable to init capture device %q: %w",
			dev.Name, err)
	}
	cs.dev = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("unable to start capture device %q: %w",
			dev.Name, err)
	}

	b.log.Debugf("Started capture on %q at %d Hz", dev.Name, device.SampleRate())
	return cs, nil
}

// Close releases the audio library.
func (b *Backend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.audioCtx.free()
}
