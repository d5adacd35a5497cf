package gauge

import (
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTick is the interval between animation ticks.
	DefaultTick = 8 * time.Millisecond

	// DefaultHover is how long the needle hovers over a reading.
	DefaultHover = time.Second

	// DefaultRest is the off-scale rest position.
	DefaultRest = -45
)

// HoverTicks converts a hover duration to a number of ticks.
func HoverTicks(hover, tick time.Duration) int {
	if tick <= 0 || hover <= 0 {
		return 0
	}
	return int(hover / tick)
}

// Config is the configuration of an Animator. Changing it requires replacing
// the animator.
type Config struct {
	Tick       time.Duration
	HoverTicks int
	Rest       int

	// Start is the initial state of the needle. The zero value starts at
	// position 0 approaching target 0.
	Start State

	Clock clockwork.Clock
	Log   slog.Logger
}

// Animator runs the needle animation loop in its own goroutine.
type Animator struct {
	cfg   Config
	log   slog.Logger
	clock clockwork.Clock

	ticker    clockwork.Ticker
	targets   chan int
	positions chan float64
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	// state is only accessed by run() until done is closed.
	state State
}

// NewAnimator starts a new animation loop from cfg.Start.
func NewAnimator(cfg Config) *Animator {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.HoverTicks < 0 {
		cfg.HoverTicks = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}

	a := &Animator{
		cfg:       cfg,
		log:       cfg.Log,
		clock:     cfg.Clock,
		ticker:    cfg.Clock.NewTicker(cfg.Tick),
		targets:   make(chan int, 1),
		positions: make(chan float64, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     cfg.Start,
	}
	go a.run()
	return a
}

// SetTarget sets a new target for the needle. A target that was not yet
// picked up by the loop is replaced.
func (a *Animator) SetTarget(cents int) {
	for {
		select {
		case a.targets <- cents:
			return
		default:
		}

		select {
		case <-a.targets:
		default:
		}
	}
}

// Positions receives the needle position after every tick. Only the latest
// position is kept when the receiver falls behind.
func (a *Animator) Positions() <-chan float64 {
	return a.positions
}

func (a *Animator) publish(pos float64) {
	for {
		select {
		case a.positions <- pos:
			return
		default:
		}

		select {
		case <-a.positions:
		default:
		}
	}
}

// Stop signals the loop to exit and waits until it does. It returns the final
// state of the needle. It is safe to call multiple times.
func (a *Animator) Stop() State {
	a.stopOnce.Do(func() { close(a.quit) })
	<-a.done
	return a.state
}

func (a *Animator) run() {
	defer close(a.done)
	defer a.ticker.Stop()

	a.log.Debugf("Starting needle animation (tick %s, hover %d ticks, rest %d)",
		a.cfg.Tick, a.cfg.HoverTicks, a.cfg.Rest)

	for {
		if a.state.Mode == ModeRestWaiting {
			a.log.Tracef("Needle at rest")
			select {
			case <-a.quit:
				return
			case target := <-a.targets:
				a.state.Retarget(target, a.cfg.HoverTicks)
			}
		}

		select {
		case <-a.quit:
			return
		case <-a.ticker.Chan():
		}

		select {
		case target := <-a.targets:
			a.state.Retarget(target, a.cfg.HoverTicks)
		default:
		}

		a.state.Step(a.cfg.HoverTicks, a.cfg.Rest)
		a.publish(a.state.Position)
	}
}
