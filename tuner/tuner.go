package tuner

import (
	"context"
	"time"

	"github.com/companyzero/chromatic/gauge"
	"github.com/decred/slog"
	"github.com/jonboulle/clockwork"
)

// shutdownTimeout is how long Run waits for workers to release their devices
// after its context is canceled.
const shutdownTimeout = 5 * time.Second

// Options are the user configurable options of the tuner.
type Options struct {
	Device     DeviceOptions
	BufferSize int

	// Hover is how long the needle hovers over a reading before retreating
	// to Rest.
	Hover time.Duration
	Tick  time.Duration
	Rest  int

	// Hang is how long the last reading is held after the signal is lost.
	Hang time.Duration
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		BufferSize: DefaultBufferSize,
		Hover:      gauge.DefaultHover,
		Tick:       gauge.DefaultTick,
		Rest:       gauge.DefaultRest,
		Hang:       DefaultHangDuration,
	}
}

func (o Options) gaugeConfig() (hoverTicks int, tick time.Duration, rest int) {
	tick = o.Tick
	if tick <= 0 {
		tick = gauge.DefaultTick
	}
	return gauge.HoverTicks(o.Hover, tick), tick, o.Rest
}

// Sink receives what must be rendered. Its methods are called from the
// goroutine running Tuner.Run and must not block.
type Sink interface {
	NoteChanged(d Display)
	NeedleMoved(pos float64)
	Notice(err error)
}

// Config is the configuration of a Tuner.
type Config struct {
	Supervisor *Supervisor
	Sink       Sink
	Options    Options

	// Updates receives new options while the tuner is running.
	Updates <-chan Options

	Clock    clockwork.Clock
	Log      slog.Logger
	GaugeLog slog.Logger
	Stats    *Stats
}

// Tuner is the application context. It owns the stream supervisor and the
// needle animator and converts pitch samples into what is displayed.
type Tuner struct {
	cfg   Config
	log   slog.Logger
	sup   *Supervisor
	sink  Sink
	stats *Stats

	// The following fields are only accessed by Run.
	opts    Options
	silence *SilenceTracker
	anim    *gauge.Animator
	display Display
}

// New creates a new tuner. Streams are only started by Run.
func New(cfg Config) *Tuner {
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	if cfg.GaugeLog == nil {
		cfg.GaugeLog = cfg.Log
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Stats == nil {
		cfg.Stats = cfg.Supervisor.stats
	}
	return &Tuner{
		cfg:     cfg,
		log:     cfg.Log,
		sup:     cfg.Supervisor,
		sink:    cfg.Sink,
		stats:   cfg.Stats,
		opts:    cfg.Options,
		silence: NewSilenceTracker(cfg.Options.Hang, cfg.Clock),
		display: SilentDisplay,
	}
}

// Supervisor returns the tuner's stream supervisor.
func (t *Tuner) Supervisor() *Supervisor {
	return t.sup
}

func (t *Tuner) startAnimator(start gauge.State) {
	hoverTicks, tick, rest := t.opts.gaugeConfig()
	t.anim = gauge.NewAnimator(gauge.Config{
		Tick:       tick,
		HoverTicks: hoverTicks,
		Rest:       rest,
		Start:      start.Reconfigured(hoverTicks, rest),
		Clock:      t.cfg.Clock,
		Log:        t.cfg.GaugeLog,
	})
}

// setupStream runs the supervisor's device fallback chain.
func (t *Tuner) setupStream(ctx context.Context) {
	t.sup.SetBufferSize(t.opts.BufferSize)
	if err := t.sup.Setup(ctx, t.opts.Device); err != nil {
		t.log.Errorf("Unable to start capture: %v", err)
		t.sink.Notice(err)
	}
}

// handleSample updates the display and the needle target with a sample from
// the active stream.
func (t *Tuner) handleSample(sample PitchSample) {
	switch t.silence.Observe(sample.Frequency) {
	case ActionUpdate:
		nr := MapFrequency(sample.Frequency)
		nr.LastUpdate = t.silence.Now()
		t.display = DisplayFor(nr)
		t.sink.NoteChanged(t.display)
		t.anim.SetTarget(nr.Cents)

	case ActionClear:
		t.display = SilentDisplay
		t.sink.NoteChanged(t.display)
	}
}

// applyOptions reconfigures the running components that depend on changed
// options.
func (t *Tuner) applyOptions(ctx context.Context, opts Options) {
	old := t.opts
	t.opts = opts

	if old.Hang != opts.Hang {
		t.log.Debugf("Changing hang duration to %s", opts.Hang)
		t.silence.SetHangDuration(opts.Hang)
	}

	if old.Hover != opts.Hover || old.Tick != opts.Tick || old.Rest != opts.Rest {
		t.log.Debugf("Restarting needle animation")
		t.startAnimator(t.anim.Stop())
	}

	if old.Device != opts.Device || old.BufferSize != opts.BufferSize {
		t.log.Infof("Device options changed, restarting capture")
		t.setupStream(ctx)
	}
}

// Run runs the tuner until ctx is canceled. On return every stream has been
// stopped.
func (t *Tuner) Run(ctx context.Context) error {
	t.startAnimator(gauge.State{})
	t.sink.NoteChanged(t.display)
	t.setupStream(ctx)

	for {
		select {
		case sample := <-t.sup.Results():
			if !t.sup.IsCurrent(sample.StreamID) {
				t.stats.resultsStale.Inc()
				continue
			}
			t.handleSample(sample)

		case pos := <-t.anim.Positions():
			t.sink.NeedleMoved(pos)

		case err := <-t.sup.Notices():
			t.sink.Notice(err)

		case opts := <-t.cfg.Updates:
			t.applyOptions(ctx, opts)

		case <-ctx.Done():
			t.anim.Stop()
			t.sup.Stop()
			waitCtx, cancel := context.WithTimeout(context.Background(),
				shutdownTimeout)
			err := t.sup.Wait(waitCtx)
			cancel()
			if err != nil {
				t.log.Warnf("Timeout waiting for streams to close")
			}
			return ctx.Err()
		}
	}
}
