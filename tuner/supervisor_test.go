package tuner

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/companyzero/chromatic/internal/assert"
	"github.com/companyzero/chromatic/internal/audio"
	"github.com/companyzero/chromatic/internal/testutils"
	"github.com/companyzero/chromatic/pitch"
)

const testBufSize = 4

// fakeStream is a capture stream driven by the test.
type fakeStream struct {
	dev      audio.Device
	fn       audio.SamplesFunc
	rate     uint32
	stopped  chan struct{}
	stopOnce sync.Once
	closed   chan struct{}
}

func (fs *fakeStream) SampleRate() uint32       { return fs.rate }
func (fs *fakeStream) Stopped() <-chan struct{} { return fs.stopped }
func (fs *fakeStream) Close() error {
	fs.stopOnce.Do(func() {
		close(fs.stopped)
		fs.closed <- struct{}{}
	})
	return nil
}

// lose simulates the backend stopping the device on its own.
func (fs *fakeStream) lose() {
	fs.stopOnce.Do(func() { close(fs.stopped) })
}

// send delivers a full buffer filled with v.
func (fs *fakeStream) send(v float32) {
	buf := make([]float32, testBufSize)
	for i := range buf {
		buf[i] = v
	}
	fs.fn(buf)
}

type fakeBackend struct {
	mtx     sync.Mutex
	devs    []audio.Device
	listErr error
	openErr map[string]error
	opened  chan *fakeStream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		devs: []audio.Device{
			{Index: 0, ID: "hdmi", Name: "HDMI Output"},
			{Index: 1, ID: "mic", Name: "Built-in Audio Analog Stereo", IsDefault: true, MaxInputChannels: 2, DefaultSampleRate: 48000},
			{Index: 2, ID: "usb", Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		},
		openErr: make(map[string]error),
		opened:  make(chan *fakeStream, 10),
	}
}

func (fb *fakeBackend) CaptureDevices() ([]audio.Device, error) {
	fb.mtx.Lock()
	defer fb.mtx.Unlock()
	if fb.listErr != nil {
		return nil, fb.listErr
	}
	return append([]audio.Device(nil), fb.devs...), nil
}

func (fb *fakeBackend) OpenCapture(dev audio.Device, params audio.CaptureParams, fn audio.SamplesFunc) (audio.Stream, error) {
	fb.mtx.Lock()
	err := fb.openErr[dev.Name]
	fb.mtx.Unlock()
	if err != nil {
		return nil, err
	}
	fs := &fakeStream{
		dev:     dev,
		fn:      fn,
		rate:    params.SampleRate,
		stopped: make(chan struct{}),
		closed:  make(chan struct{}, 1),
	}
	fb.opened <- fs
	return fs, nil
}

type fakeMixer struct {
	names []string
	err   error
}

func (fm fakeMixer) RunningInputs(context.Context) ([]string, error) {
	return fm.names, fm.err
}

type fakeStore struct {
	saved chan string
}

func (fs fakeStore) SaveSelectedDevice(name string) error {
	fs.saved <- name
	return nil
}

// firstSampleEstimator returns the first sample of the buffer as the
// estimated frequency.
var firstSampleEstimator = pitch.EstimatorFunc(func(buf []float32, _ uint32) float64 {
	return float64(buf[0])
})

func newTestSupervisor(t testing.TB, fb *fakeBackend, mixer MixerSource, store DeviceStore) *Supervisor {
	t.Helper()
	s := NewSupervisor(SupervisorConfig{
		Backend:      fb,
		NewEstimator: func() pitch.Estimator { return firstSampleEstimator },
		Mixer:        mixer,
		Store:        store,
		BufferSize:   testBufSize,
		Log:          testutils.TestLoggerSys(t, "SUPV"),
		StreamLog:    testutils.TestLoggerSys(t, "STRM"),
	})
	t.Cleanup(func() {
		s.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Wait(ctx); err != nil {
			t.Errorf("Wait() failed: %v", err)
		}
	})
	return s
}

func activeCount(streams []StreamInfo) int {
	var n int
	for _, st := range streams {
		if st.State == StateActive {
			n++
		}
	}
	return n
}

// TestSupervisorPublishesInOrder asserts results of a single stream are
// published in the order buffers were captured.
func TestSupervisorPublishesInOrder(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs := assert.ChanWritten(t, fb.opened)
	assert.DeepEqual(t, fs.dev.Name, "Built-in Audio Analog Stereo")

	info, ok := s.Active()
	assert.BoolIs(t, ok, true)
	assert.DeepEqual(t, info.SampleRate, uint32(48000))
	assert.DeepEqual(t, info.BufferSize, testBufSize)
	assert.DeepEqual(t, info.State, StateActive)

	want := []float32{110, 220, 440}
	for _, v := range want {
		fs.send(v)
	}
	for _, v := range want {
		got := assert.RecvChan(t, s.Results())
		assert.DeepEqual(t, got.StreamID, info.ID)
		assert.DeepEqual(t, got.Frequency, float64(v))
		assert.BoolIs(t, got.Valid, true)
	}
}

// TestSupervisorFramesPartialBuffers asserts the capture callback only hands
// full buffers to the worker.
func TestSupervisorFramesPartialBuffers(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs := assert.ChanWritten(t, fb.opened)

	fs.fn([]float32{330, 0, 0})
	assert.RecvChanNotWritten(t, s.Results(), 100*time.Millisecond)

	// Completes the first buffer and starts the second.
	fs.fn([]float32{0, 660, 0})
	got := assert.RecvChan(t, s.Results())
	assert.DeepEqual(t, got.Frequency, 330.0)

	fs.fn([]float32{0, 0})
	got = assert.RecvChan(t, s.Results())
	assert.DeepEqual(t, got.Frequency, 660.0)
}

// TestSupervisorDiscardsInvalid asserts estimates that are not finite or are
// above the sanity ceiling are not published.
func TestSupervisorDiscardsInvalid(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs := assert.ChanWritten(t, fb.opened)

	fs.send(float32(math.NaN()))
	fs.send(float32(math.Inf(1)))
	fs.send(96000)
	fs.send(200000)
	fs.send(82.41)

	got := assert.RecvChan(t, s.Results())
	assert.InDelta(t, got.Frequency, 82.41, 0.001)
	assert.RecvChanNotWritten(t, s.Results(), 100*time.Millisecond)
}

// TestSupervisorDoubleSwitch asserts switching twice in rapid succession
// leaves a single active stream and only the last one publishes results.
func TestSupervisorDoubleSwitch(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs1 := assert.ChanWritten(t, fb.opened)

	assert.NilErr(t, s.Switch(2))
	fs2 := assert.ChanWritten(t, fb.opened)
	assert.NilErr(t, s.Switch(1))
	fs3 := assert.ChanWritten(t, fb.opened)

	assert.DeepEqual(t, activeCount(s.Streams()), 1)
	info, ok := s.Active()
	assert.BoolIs(t, ok, true)
	assert.DeepEqual(t, info.Device.Name, "Built-in Audio Analog Stereo")
	assert.DeepEqual(t, info.ID, uint64(3))
	assert.BoolIs(t, s.IsCurrent(1), false)
	assert.BoolIs(t, s.IsCurrent(2), false)
	assert.BoolIs(t, s.IsCurrent(3), true)

	// The replaced streams release their devices.
	assert.ChanWritten(t, fs1.closed)
	assert.ChanWritten(t, fs2.closed)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilErr(t, s.Wait(ctx))
	assert.DeepEqual(t, len(s.Streams()), 1)

	// Buffers delivered late by a replaced stream are not published.
	fs2.send(123)
	fs3.send(440)
	got := assert.RecvChan(t, s.Results())
	assert.DeepEqual(t, got.StreamID, uint64(3))
	assert.DeepEqual(t, got.Frequency, 440.0)
	assert.RecvChanNotWritten(t, s.Results(), 100*time.Millisecond)
}

// TestSupervisorConcurrentSwitches asserts concurrent switches never leave
// more than one active stream.
func TestSupervisorConcurrentSwitches(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.opened = make(chan *fakeStream, 100)
	s := newTestSupervisor(t, fb, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Switch(DeviceIndex(1 + i%2)); err != nil {
				t.Errorf("Switch() failed: %v", err)
			}
			if n := activeCount(s.Streams()); n > 1 {
				t.Errorf("found %d active streams", n)
			}
		}(i)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilErr(t, s.Wait(ctx))
	streams := s.Streams()
	assert.DeepEqual(t, len(streams), 1)
	assert.DeepEqual(t, streams[0].ID, uint64(20))
}

// TestSupervisorOpenFailureKeepsStream asserts a failure to open the new
// device leaves the previous stream active.
func TestSupervisorOpenFailureKeepsStream(t *testing.T) {
	t.Parallel()

	errOpen := errors.New("device busy")
	fb := newFakeBackend()
	fb.openErr["USB Mic"] = errOpen
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs := assert.ChanWritten(t, fb.opened)

	err := s.Switch(2)
	assert.ErrorIs(t, err, ErrStreamOpenFailed)
	var devErr DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("unexpected error type %T", err)
	}
	assert.DeepEqual(t, devErr.Name, "USB Mic")

	info, ok := s.Active()
	assert.BoolIs(t, ok, true)
	assert.DeepEqual(t, info.ID, uint64(1))
	assert.ChanNotWritten(t, fs.closed, 50*time.Millisecond)

	fs.send(440)
	got := assert.RecvChan(t, s.Results())
	assert.DeepEqual(t, got.StreamID, uint64(1))
}

func TestSupervisorDeviceErrors(t *testing.T) {
	t.Parallel()

	errList := errors.New("no server")
	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)

	assert.ErrorIs(t, s.Switch(0), ErrDeviceNotFound)
	assert.ErrorIs(t, s.Switch(7), ErrDeviceNotFound)

	fb.mtx.Lock()
	fb.listErr = errList
	fb.mtx.Unlock()
	err := s.Start(DefaultDevice)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	fb.mtx.Lock()
	fb.listErr = nil
	fb.devs = fb.devs[:1]
	fb.mtx.Unlock()
	assert.ErrorIs(t, s.Start(DefaultDevice), ErrDeviceNotFound)

	_, ok := s.Active()
	assert.BoolIs(t, ok, false)
}

// TestSupervisorDeviceLost asserts a stream whose device stops on its own is
// torn down and reported.
func TestSupervisorDeviceLost(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs := assert.ChanWritten(t, fb.opened)

	fs.lose()
	err := assert.RecvChan(t, s.Notices())
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	assert.Eventually(t, func() bool {
		_, ok := s.Active()
		return !ok
	})
}

func TestSupervisorStop(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	s := newTestSupervisor(t, fb, nil, nil)
	assert.NilErr(t, s.Start(DefaultDevice))
	fs := assert.ChanWritten(t, fb.opened)

	s.Stop()
	_, ok := s.Active()
	assert.BoolIs(t, ok, false)
	assert.ChanWritten(t, fs.closed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilErr(t, s.Wait(ctx))
	assert.DeepEqual(t, len(s.Streams()), 0)

	// Stopping without an active stream is a noop.
	assert.DoesNotBlock(t, s.Stop)
}

// TestSupervisorSetup tests the device fallback chain.
func TestSupervisorSetup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        DeviceOptions
		mixer       MixerSource
		noInputs    bool
		wantDevice  string
		wantNotices []error
		wantSaved   string
		wantErr     error
	}{{
		name:       "manual device",
		opts:       DeviceOptions{Manual: true, Name: "usb"},
		mixer:      fakeMixer{names: []string{"Built-in Audio Analog Stereo"}},
		wantDevice: "USB Mic",
	}, {
		name:       "manual name ignored when disabled",
		opts:       DeviceOptions{Name: "usb"},
		mixer:      fakeMixer{err: errors.New("no mixer")},
		wantDevice: "Built-in Audio Analog Stereo",
	}, {
		name:        "manual device not found falls back to running device",
		opts:        DeviceOptions{Manual: true, Name: "Scarlett 2i2"},
		mixer:       fakeMixer{names: []string{"USB Mic"}},
		wantDevice:  "USB Mic",
		wantNotices: []error{ErrDeviceNotFound},
		wantSaved:   "USB Mic",
	}, {
		name:       "mixer failure falls back to default",
		mixer:      fakeMixer{err: errors.New("sound server not running")},
		wantDevice: "Built-in Audio Analog Stereo",
	}, {
		name:       "no running input",
		mixer:      fakeMixer{},
		wantDevice: "Built-in Audio Analog Stereo",
	}, {
		name:       "no mixer",
		wantDevice: "Built-in Audio Analog Stereo",
	}, {
		name:        "running device not found falls back to default",
		mixer:       fakeMixer{names: []string{"Nonexistent Thing"}},
		wantDevice:  "Built-in Audio Analog Stereo",
		wantNotices: []error{ErrDeviceNotFound},
	}, {
		name:        "whole chain fails",
		opts:        DeviceOptions{Manual: true, Name: "Scarlett 2i2"},
		noInputs:    true,
		wantNotices: []error{ErrDeviceNotFound},
		wantErr:     ErrDeviceNotFound,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend()
			if tc.noInputs {
				fb.devs = fb.devs[:1]
			}
			store := fakeStore{saved: make(chan string, 5)}
			s := newTestSupervisor(t, fb, tc.mixer, store)

			err := s.Setup(context.Background(), tc.opts)
			assert.ErrorIs(t, err, tc.wantErr)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, ErrNoActiveStream)
			}

			info, ok := s.Active()
			assert.BoolIs(t, ok, tc.wantDevice != "")
			assert.DeepEqual(t, info.Device.Name, tc.wantDevice)

			for _, wantErr := range tc.wantNotices {
				assert.ErrorIs(t, assert.RecvChan(t, s.Notices()), wantErr)
			}
			assert.RecvChanNotWritten(t, s.Notices(), 50*time.Millisecond)

			if tc.wantSaved != "" {
				assert.ChanWrittenWithVal(t, store.saved, tc.wantSaved)
			}
			assert.ChanNotWritten(t, store.saved, 50*time.Millisecond)
		})
	}
}

func TestSupervisorSelectDevice(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	store := fakeStore{saved: make(chan string, 5)}
	s := newTestSupervisor(t, fb, nil, store)

	assert.NilErr(t, s.SelectDevice("USB Mic"))
	info, _ := s.Active()
	assert.DeepEqual(t, info.Device.Name, "USB Mic")
	assert.ChanWrittenWithVal(t, store.saved, "USB Mic")

	// Unresolvable names fall back to the default device and are not
	// saved.
	assert.NilErr(t, s.SelectDevice("Scarlett 2i2"))
	info, _ = s.Active()
	assert.DeepEqual(t, info.Device.Name, "Built-in Audio Analog Stereo")
	assert.ErrorIs(t, assert.RecvChan(t, s.Notices()), ErrDeviceNotFound)
	assert.ChanNotWritten(t, store.saved, 50*time.Millisecond)
}
