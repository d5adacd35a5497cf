package tuner

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultHangDuration is how long the last reading is held after the signal
// is lost.
const DefaultHangDuration = 3 * time.Second

// SilenceState is the state of a SilenceTracker.
type SilenceState int

const (
	// SilenceSilent means the display shows the placeholder.
	SilenceSilent SilenceState = iota

	// SilenceSignaled means the last sample had a pitch.
	SilenceSignaled

	// SilenceHanging means the signal was lost but the last reading is
	// still being displayed.
	SilenceHanging
)

func (s SilenceState) String() string {
	switch s {
	case SilenceSilent:
		return "silent"
	case SilenceSignaled:
		return "signaled"
	case SilenceHanging:
		return "hanging"
	default:
		return "unknown"
	}
}

// SilenceAction is what the display should do after a sample is observed.
type SilenceAction int

const (
	// ActionHold keeps the displayed reading unchanged.
	ActionHold SilenceAction = iota

	// ActionUpdate displays the sample's reading.
	ActionUpdate

	// ActionClear replaces the displayed reading with the placeholder.
	ActionClear
)

// SilenceTracker decides when a lost signal clears the display. It is not
// safe for concurrent use; it is owned by the goroutine consuming pitch
// samples.
type SilenceTracker struct {
	clock     clockwork.Clock
	hang      time.Duration
	state     SilenceState
	hangStart time.Time
	hanging   bool
}

// NewSilenceTracker returns a tracker in the silent state. A nil clock uses
// the real clock.
func NewSilenceTracker(hang time.Duration, clock clockwork.Clock) *SilenceTracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SilenceTracker{clock: clock, hang: hang}
}

// Observe processes the frequency of a new sample.
func (st *SilenceTracker) Observe(freq float64) SilenceAction {
	if freq > 0 {
		st.state = SilenceSignaled
		st.hanging = false
		return ActionUpdate
	}

	now := st.clock.Now()
	switch {
	case !st.hanging:
		st.state = SilenceHanging
		st.hanging = true
		st.hangStart = now
		return ActionHold

	case now.Sub(st.hangStart) >= st.hang:
		st.state = SilenceSilent
		st.hanging = false
		return ActionClear

	default:
		return ActionHold
	}
}

// State returns the current state.
func (st *SilenceTracker) State() SilenceState {
	return st.state
}

// HangStart returns when the hang timer was started. The bool is false when
// the timer is unset.
func (st *SilenceTracker) HangStart() (time.Time, bool) {
	return st.hangStart, st.hanging
}

// SetHangDuration changes the hang duration. A running hang timer is kept.
func (st *SilenceTracker) SetHangDuration(d time.Duration) {
	st.hang = d
}

// Now returns the current time according to the tracker's clock.
func (st *SilenceTracker) Now() time.Time {
	return st.clock.Now()
}
