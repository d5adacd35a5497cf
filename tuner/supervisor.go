package tuner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/companyzero/chromatic/internal/audio"
	"github.com/companyzero/chromatic/internal/logutil"
	"github.com/companyzero/chromatic/pitch"
	"github.com/decred/slog"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/exp/slices"
)

const (
	// DefaultBufferSize is the number of frames fed to the estimator at
	// once.
	DefaultBufferSize = 6144

	// DefaultMaxFrequency is the sanity ceiling for estimates. Some
	// estimators emit spurious very large values that must be discarded.
	DefaultMaxFrequency = 95999.98

	defaultQueueLen   = 8
	resultsChanLen    = 32
	noticesChanLen    = 8
	errNoRunningInput = constErr("no running input source")
)

type constErr string

func (err constErr) Error() string { return string(err) }

// DeviceIndex selects a capture device by its Index in the backend's list.
type DeviceIndex int

// DefaultDevice selects the backend's default capture device.
const DefaultDevice DeviceIndex = -1

// Backend is the capture subsystem used by the supervisor.
type Backend interface {
	CaptureDevices() ([]audio.Device, error)
	OpenCapture(dev audio.Device, params audio.CaptureParams, fn audio.SamplesFunc) (audio.Stream, error)
}

// MixerSource lists the descriptions of the input sources the OS mixer
// reports as running.
type MixerSource interface {
	RunningInputs(ctx context.Context) ([]string, error)
}

// DeviceStore persists the name of the last device successfully selected by
// name.
type DeviceStore interface {
	SaveSelectedDevice(name string) error
}

// DeviceOptions are the configured device selection options.
type DeviceOptions struct {
	// Manual is true when the user chose to select the device by name.
	Manual bool

	// Name is the configured device name.
	Name string
}

// SupervisorConfig is the configuration of a Supervisor.
type SupervisorConfig struct {
	Backend Backend

	// NewEstimator creates the estimator used by each stream worker.
	// Defaults to the autocorrelation estimator.
	NewEstimator func() pitch.Estimator

	// Mixer is optional. When nil, Setup skips the running device step.
	Mixer MixerSource

	// Store is optional. When set, successfully selected device names
	// are saved to it.
	Store DeviceStore

	BufferSize   int
	MaxFrequency float64

	// QueueLen is the number of full buffers that may be queued for the
	// worker before the capture callback starts dropping them.
	QueueLen int

	Log       slog.Logger
	StreamLog slog.Logger
	Stats     *Stats
}

// Supervisor owns the single active capture stream and its worker.
type Supervisor struct {
	cfg   SupervisorConfig
	log   slog.Logger
	stats *Stats

	results chan PitchSample
	notices chan error

	// switchMtx serializes stream switches.
	switchMtx sync.Mutex

	mtx     sync.Mutex
	active  *stream
	nextID  uint64
	closing *xsync.MapOf[uint64, *stream]
}

// NewSupervisor creates a supervisor. No stream is started until Setup,
// Start or Switch is called.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.MaxFrequency <= 0 {
		cfg.MaxFrequency = DefaultMaxFrequency
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = defaultQueueLen
	}
	if cfg.NewEstimator == nil {
		cfg.NewEstimator = func() pitch.Estimator { return pitch.NewAutocorrelation() }
	}
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	if cfg.StreamLog == nil {
		cfg.StreamLog = cfg.Log
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}

	return &Supervisor{
		cfg:     cfg,
		log:     cfg.Log,
		stats:   cfg.Stats,
		results: make(chan PitchSample, resultsChanLen),
		notices: make(chan error, noticesChanLen),
		closing: xsync.NewMapOf[uint64, *stream](),
	}
}

// Results is the chan where every stream worker publishes its estimates.
// Results from streams that were replaced may still be received right after
// a switch; use IsCurrent to filter them.
func (s *Supervisor) Results() <-chan PitchSample {
	return s.results
}

// Notices receives recoverable errors that should be shown to the user.
func (s *Supervisor) Notices() <-chan error {
	return s.notices
}

func (s *Supervisor) notice(err error) {
	select {
	case s.notices <- err:
	default:
		s.log.Warnf("Dropping notice due to full queue: %v", err)
	}
}

// Active returns the active stream, if there is one.
func (s *Supervisor) Active() (StreamInfo, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.active == nil {
		return StreamInfo{}, false
	}
	return s.active.info(), true
}

// IsCurrent returns true if id is the id of the active stream.
func (s *Supervisor) IsCurrent(id uint64) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.active != nil && s.active.id == id
}

// Streams returns the active stream and every stream that is still closing,
// sorted by id.
func (s *Supervisor) Streams() []StreamInfo {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var res []StreamInfo
	if s.active != nil {
		res = append(res, s.active.info())
	}
	s.closing.Range(func(_ uint64, st *stream) bool {
		res = append(res, st.info())
		return true
	})
	slices.SortFunc(res, func(a, b StreamInfo) int {
		return int(a.ID) - int(b.ID)
	})
	return res
}

// SetBufferSize changes the buffer size used by streams opened after this
// call. The active stream is not affected.
func (s *Supervisor) SetBufferSize(frames int) {
	if frames <= 0 {
		frames = DefaultBufferSize
	}
	s.switchMtx.Lock()
	s.cfg.BufferSize = frames
	s.switchMtx.Unlock()
}

// inputDevices lists the backend devices that can capture.
func (s *Supervisor) inputDevices() ([]audio.Device, error) {
	devs, err := s.cfg.Backend.CaptureDevices()
	if err != nil {
		s.stats.openFailures.WithLabelValues("backend").Inc()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return slices.DeleteFunc(devs, func(dev audio.Device) bool {
		return dev.MaxInputChannels <= 0
	}), nil
}

// CaptureDevices lists the capture devices with at least one input channel.
func (s *Supervisor) CaptureDevices() ([]audio.Device, error) {
	return s.inputDevices()
}

// pickDevice returns the device selected by idx.
func pickDevice(devs []audio.Device, idx DeviceIndex) (audio.Device, error) {
	if idx == DefaultDevice {
		dev, err := audio.DefaultDevice(devs)
		if errors.Is(err, audio.ErrNoDevices) {
			return dev, makeDeviceError("default", ErrDeviceNotFound)
		}
		return dev, err
	}
	for _, dev := range devs {
		if dev.Index == int(idx) {
			return dev, nil
		}
	}
	return audio.Device{}, makeDeviceError(fmt.Sprintf("#%d", idx), ErrDeviceNotFound)
}

// Start opens a stream on the selected device. Any active stream is
// replaced.
func (s *Supervisor) Start(idx DeviceIndex) error {
	return s.Switch(idx)
}

// Switch replaces the active stream with a new one on the selected device.
//
// The new stream is opened first. Only once it is capturing is the old
// stream's worker signaled to stop, so a failure leaves the old stream
// active. Switch does not wait for the old worker to exit.
func (s *Supervisor) Switch(idx DeviceIndex) error {
	s.switchMtx.Lock()
	defer s.switchMtx.Unlock()
	return s.switchToIndex(idx)
}

func (s *Supervisor) switchToIndex(idx DeviceIndex) error {
	devs, err := s.inputDevices()
	if err != nil {
		return err
	}
	dev, err := pickDevice(devs, idx)
	if err != nil {
		return err
	}
	return s.switchTo(dev)
}

// switchToName resolves name against the capture devices and switches to
// the best match.
func (s *Supervisor) switchToName(name string) error {
	devs, err := s.inputDevices()
	if err != nil {
		return err
	}
	names := make([]string, len(devs))
	for i := range devs {
		names[i] = devs[i].Name
	}
	i, ok := Resolve(name, names)
	if !ok {
		return makeDeviceError(name, ErrDeviceNotFound)
	}
	s.log.Debugf("Resolved device %q to %q", name, devs[i].Name)
	return s.switchTo(devs[i])
}

// switchTo must be called with switchMtx held.
func (s *Supervisor) switchTo(dev audio.Device) error {
	s.mtx.Lock()
	s.nextID++
	id := s.nextID
	s.mtx.Unlock()

	log := logutil.PrefixLogger(s.cfg.StreamLog, fmt.Sprintf("[stream %d]", id))
	st := newStream(id, dev, s.cfg.BufferSize, s.cfg.QueueLen, log, s.stats)
	params := audio.CaptureParams{
		SampleRate:   dev.DefaultSampleRate,
		PeriodFrames: uint32(s.cfg.BufferSize),
	}
	capture, err := s.cfg.Backend.OpenCapture(dev, params, st.onSamples)
	if err != nil {
		s.stats.openFailures.WithLabelValues("open").Inc()
		return makeDeviceError(dev.Name, fmt.Errorf("%w: %v",
			ErrStreamOpenFailed, err))
	}
	st.capture = capture
	st.sampleRate = capture.SampleRate()

	s.mtx.Lock()
	old := s.active
	st.state = StateActive
	s.active = st
	if old != nil {
		old.state = StateClosing
		s.closing.Store(old.id, old)
		close(old.quit)
	}
	s.mtx.Unlock()

	s.stats.streamSwitches.Inc()
	s.stats.activeSampleRate.Set(float64(st.sampleRate))
	s.stats.closingStreams.Set(float64(s.closing.Size()))

	go s.runStream(st, s.cfg.NewEstimator())

	if old != nil {
		s.log.Infof("Switched capture from %q (stream %d) to %q (stream %d) at %d Hz",
			old.dev.Name, old.id, dev.Name, id, st.sampleRate)
	} else {
		s.log.Infof("Capturing from %q (stream %d) at %d Hz", dev.Name,
			id, st.sampleRate)
	}
	return nil
}

// persist saves name as the selected device.
func (s *Supervisor) persist(name string) {
	if s.cfg.Store == nil {
		return
	}
	if err := s.cfg.Store.SaveSelectedDevice(name); err != nil {
		s.log.Warnf("Unable to save selected device %q: %v", name, err)
	}
}

// runningDevice returns the description of the first input source the OS
// mixer reports as running.
func (s *Supervisor) runningDevice(ctx context.Context) (string, error) {
	if s.cfg.Mixer == nil {
		return "", errNoRunningInput
	}
	descs, err := s.cfg.Mixer.RunningInputs(ctx)
	if err != nil {
		return "", err
	}
	if len(descs) == 0 {
		return "", errNoRunningInput
	}
	return descs[0], nil
}

// Setup starts a stream following the device fallback chain: the manually
// chosen device (if enabled), then the input the OS mixer reports as running,
// then the backend's default device. Failures of intermediate steps are sent
// as notices. The returned error is the failure of the last step.
func (s *Supervisor) Setup(ctx context.Context, opts DeviceOptions) error {
	s.switchMtx.Lock()
	defer s.switchMtx.Unlock()

	if opts.Manual && opts.Name != "" {
		err := s.switchToName(opts.Name)
		if err == nil {
			s.log.Debugf("Using manually chosen device %q", opts.Name)
			return nil
		}
		s.log.Errorf("Unable to use device %q: %v", opts.Name, err)
		s.notice(err)
	}

	name, err := s.runningDevice(ctx)
	switch {
	case err != nil:
		s.log.Debugf("No running device (%v), trying the default device", err)
	default:
		s.log.Debugf("Mixer reports running input %q", name)
		err := s.switchToName(name)
		if err == nil {
			s.persist(name)
			return nil
		}
		s.log.Errorf("Unable to use running device %q: %v", name, err)
		s.notice(err)
	}

	return s.fallbackErr(s.switchToIndex(DefaultDevice))
}

// fallbackErr marks err as having left the supervisor without a stream.
// Must be called with switchMtx held.
func (s *Supervisor) fallbackErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := s.Active(); ok {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNoActiveStream, err)
}

// SelectDevice switches to the device that best matches name and saves name
// as the selected device. If the name cannot be used, a notice is sent and
// the default device is used instead.
func (s *Supervisor) SelectDevice(name string) error {
	s.switchMtx.Lock()
	defer s.switchMtx.Unlock()

	err := s.switchToName(name)
	if err == nil {
		s.persist(name)
		return nil
	}
	s.log.Errorf("Unable to use device %q: %v", name, err)
	s.notice(err)
	return s.fallbackErr(s.switchToIndex(DefaultDevice))
}

// Stop signals the active stream's worker to stop. It does not wait for the
// worker to exit.
func (s *Supervisor) Stop() {
	s.mtx.Lock()
	st := s.active
	if st != nil {
		s.active = nil
		st.state = StateClosing
		s.closing.Store(st.id, st)
		close(st.quit)
	}
	s.mtx.Unlock()

	if st != nil {
		s.stats.activeSampleRate.Set(0)
		s.log.Debugf("Stopping stream %d", st.id)
	}
}

// Wait blocks until every stream that was signaled to stop has released its
// device or until ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	var dones []chan struct{}
	s.closing.Range(func(_ uint64, st *stream) bool {
		dones = append(dones, st.done)
		return true
	})
	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// validFrequency returns false for estimates that must be discarded.
func validFrequency(f, maxFreq float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f < maxFreq
}

// process runs the estimator on buf and publishes the result. It returns
// false if the stream was signaled to stop.
func (s *Supervisor) process(st *stream, est pitch.Estimator, buf []float32) bool {
	start := time.Now()
	freq := est.Estimate(buf, st.sampleRate)
	s.stats.estimated(time.Since(start))
	st.putBuffer(buf)

	if !validFrequency(freq, s.cfg.MaxFrequency) {
		s.stats.estimateInvalid()
		st.log.Tracef("Discarding invalid estimate %f", freq)
		return true
	}

	select {
	case <-st.quit:
		return false
	default:
	}

	sample := PitchSample{StreamID: st.id, Frequency: freq, Valid: true}
	select {
	case s.results <- sample:
		s.stats.resultPublished()
	default:
		s.stats.resultDropped()
	}
	return true
}

// runStream is the worker goroutine of a stream.
func (s *Supervisor) runStream(st *stream, est pitch.Estimator) {
	defer s.streamDone(st)

	st.log.Debugf("Starting worker for %q", st.dev.Name)
	for {
		select {
		case <-st.quit:
			return

		case <-st.capture.Stopped():
			st.log.Warnf("Capture device %q stopped", st.dev.Name)
			s.notice(makeDeviceError(st.dev.Name,
				fmt.Errorf("%w: capture stopped", ErrDeviceNotFound)))
			return

		case buf := <-st.buffers:
			if !s.process(st, est, buf) {
				return
			}

			// Drain every buffer already queued before polling
			// the control chan again.
			for drained := false; !drained; {
				select {
				case buf := <-st.buffers:
					if !s.process(st, est, buf) {
						return
					}
				default:
					drained = true
				}
			}
		}
	}
}

// streamDone releases the stream's device after its worker exits.
func (s *Supervisor) streamDone(st *stream) {
	if err := st.capture.Close(); err != nil {
		st.log.Warnf("Unable to close capture device: %v", err)
	}

	s.mtx.Lock()
	st.state = StateStopped
	wasActive := s.active == st
	if wasActive {
		s.active = nil
	}
	s.mtx.Unlock()
	if wasActive {
		s.stats.activeSampleRate.Set(0)
	}

	s.closing.Delete(st.id)
	s.stats.closingStreams.Set(float64(s.closing.Size()))
	close(st.done)
	st.log.Debugf("Worker exited")
}
