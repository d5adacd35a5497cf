package audio

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/companyzero/chromatic/internal/assert"
	"github.com/companyzero/chromatic/internal/testutils"
	"github.com/decred/slog"
)

// testAudioContext is used to test the backend without a real audio library.
type testAudioContext struct {
	t testing.TB

	devices    []Device
	sampleRate uint32
	initErr    error

	mtx      sync.Mutex
	started  chan struct{}
	stopped  chan struct{}
	uninited chan struct{}
	cb       dataProc
	cfg      captureConfig
}

func newTestAudioContext(t testing.TB) *testAudioContext {
	return &testAudioContext{
		t:          t,
		sampleRate: 48000,
		devices: []Device{
			{ID: "hdmi", Name: "HDMI Output", MaxInputChannels: 0},
			{ID: "mic", Name: "Built-in Audio Analog Stereo", IsDefault: true, MaxInputChannels: 2, DefaultSampleRate: 48000},
			{ID: "usb", Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		},
		started:  make(chan struct{}, 5),
		stopped:  make(chan struct{}, 5),
		uninited: make(chan struct{}, 5),
	}
}

func (tac *testAudioContext) name() string {
	return "testaudio"
}

func (tac *testAudioContext) captureDevices(log slog.Logger) ([]Device, error) {
	return append([]Device(nil), tac.devices...), nil
}

func (tac *testAudioContext) initCapture(cfg captureConfig, cb dataProc) (captureDevice, error) {
	if tac.initErr != nil {
		return nil, tac.initErr
	}
	tac.mtx.Lock()
	tac.cb = cb
	tac.cfg = cfg
	tac.mtx.Unlock()
	return tac, nil
}

func (tac *testAudioContext) free() error {
	return nil
}

// These are part of the captureDevice interface.

func (tac *testAudioContext) Start() error {
	tac.started <- struct{}{}
	return nil
}
func (tac *testAudioContext) Stop() error {
	tac.stopped <- struct{}{}
	tac.mtx.Lock()
	onStop := tac.cfg.onStop
	tac.mtx.Unlock()
	if onStop != nil {
		onStop()
	}
	return nil
}
func (tac *testAudioContext) Uninit() {
	tac.uninited <- struct{}{}
}
func (tac *testAudioContext) SampleRate() uint32 {
	return tac.sampleRate
}

// capture simulates the backend calling the data callback.
func (tac *testAudioContext) capture(samples []float32) {
	tac.mtx.Lock()
	cb := tac.cb
	tac.mtx.Unlock()
	data := leF32SliceToBytes(samples, nil)
	cb(nil, data, uint32(len(samples)))
}

func newTestBackend(t testing.TB, tac *testAudioContext) *Backend {
	return &Backend{
		log:      testutils.TestLoggerSys(t, "AUDI"),
		audioCtx: tac,
	}
}

// TestCaptureDecodesSamples asserts the samples delivered by the backend are
// decoded and passed to the samples func.
func TestCaptureDecodesSamples(t *testing.T) {
	t.Parallel()

	tac := newTestAudioContext(t)
	b := newTestBackend(t, tac)

	devs, err := b.CaptureDevices()
	assert.NilErr(t, err)
	for i := range devs {
		assert.DeepEqual(t, devs[i].Index, i)
	}

	gotSamples := make(chan []float32, 5)
	fn := func(samples []float32) {
		gotSamples <- append([]float32(nil), samples...)
	}
	cs, err := b.OpenCapture(devs[1], CaptureParams{PeriodFrames: 4}, fn)
	assert.NilErr(t, err)
	assert.ChanWritten(t, tac.started)
	assert.DeepEqual(t, cs.SampleRate(), uint32(48000))

	want := []float32{0, 0.5, -0.25, 1}
	tac.capture(want)
	assert.DeepEqual(t, assert.ChanWritten(t, gotSamples), want)

	// Closing stops and uninits the device exactly once.
	assert.NilErr(t, cs.Close())
	assert.ChanWritten(t, tac.stopped)
	assert.ChanWritten(t, tac.uninited)
	assert.ChanClosed(t, cs.Stopped())
	assert.NilErr(t, cs.Close())
	assert.ChanNotWritten(t, tac.stopped, 50*time.Millisecond)
}

// TestCaptureDeviceLost asserts the stream signals Stopped() when the backend
// stops the device on its own.
func TestCaptureDeviceLost(t *testing.T) {
	t.Parallel()

	tac := newTestAudioContext(t)
	b := newTestBackend(t, tac)
	cs, err := b.OpenCapture(tac.devices[1], CaptureParams{}, func([]float32) {})
	assert.NilErr(t, err)

	tac.mtx.Lock()
	onStop := tac.cfg.onStop
	tac.mtx.Unlock()
	onStop()
	assert.ChanClosed(t, cs.Stopped())
}

// TestCaptureInitError asserts init errors are wrapped.
func TestCaptureInitError(t *testing.T) {
	t.Parallel()

	errTest := errors.New("test error")
	tac := newTestAudioContext(t)
	tac.initErr = errTest
	b := newTestBackend(t, tac)
	_, err := b.OpenCapture(tac.devices[1], CaptureParams{}, func([]float32) {})
	assert.ErrorIs(t, err, errTest)
}

func TestDefaultDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		devs    []Device
		wantID  DeviceID
		wantErr error
	}{{
		name:    "no devices",
		wantErr: ErrNoDevices,
	}, {
		name: "flagged default",
		devs: []Device{
			{ID: "a", MaxInputChannels: 1},
			{ID: "b", MaxInputChannels: 1, IsDefault: true},
		},
		wantID: "b",
	}, {
		name: "default without input channels",
		devs: []Device{
			{ID: "a", IsDefault: true},
			{ID: "b", MaxInputChannels: 2},
		},
		wantID: "b",
	}, {
		name:    "no input channels",
		devs:    []Device{{ID: "a"}},
		wantErr: ErrNoDevices,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dev, err := DefaultDevice(tc.devs)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.DeepEqual(t, dev.ID, tc.wantID)
		})
	}
}

func TestBytesToLEF32Slice(t *testing.T) {
	t.Parallel()

	src := []float32{0, 1, -1, float32(math.Pi), math.MaxFloat32}
	b := leF32SliceToBytes(src, nil)
	assert.DeepEqual(t, len(b), len(src)*rawFormatSampleSize)
	got := bytesToLEF32Slice(b, nil)
	assert.DeepEqual(t, got, src)

	// Trailing partial samples are ignored.
	got = bytesToLEF32Slice(b[:len(b)-1], got[:0])
	assert.DeepEqual(t, got, src[:len(src)-1])
}
