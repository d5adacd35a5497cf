// Package gauge animates the tuner needle.
//
// The needle eases toward the last cents deviation it was given, hovers there
// for a while and then retreats to an off-scale rest position, where the
// animation loop sleeps until a new target arrives.
package gauge

import "math"

// Mode is the mode of the needle.
type Mode int

const (
	// ModeApproaching moves the needle one unit per tick toward the target.
	ModeApproaching Mode = iota

	// ModeHovering holds the needle on the target.
	ModeHovering

	// ModeRestWaiting means the needle is at rest and the loop is waiting
	// for a new target.
	ModeRestWaiting
)

func (m Mode) String() string {
	switch m {
	case ModeApproaching:
		return "approaching"
	case ModeHovering:
		return "hovering"
	case ModeRestWaiting:
		return "rest"
	default:
		return "unknown"
	}
}

// State is the state of the needle. It is only modified by the animation
// loop.
type State struct {
	Position            float64
	Target              int
	Mode                Mode
	HoverTicksRemaining int

	// Resting is true when Target is the rest position rather than a
	// reading.
	Resting bool
}

// Retarget makes the needle approach target, interrupting any hover.
func (s *State) Retarget(target, hoverTicks int) {
	s.Target = target
	s.Resting = false
	s.Mode = ModeApproaching
	s.HoverTicksRemaining = hoverTicks
}

// Step advances the needle by one tick.
//
// After the tick that snaps the needle onto a target, exactly hoverTicks
// further ticks hold it there before it starts moving toward rest.
func (s *State) Step(hoverTicks, rest int) {
	switch s.Mode {
	case ModeRestWaiting:
		return

	case ModeHovering:
		if s.HoverTicksRemaining > 0 {
			s.HoverTicksRemaining--
			return
		}
		s.Target = rest
		s.Resting = true
		s.Mode = ModeApproaching
	}

	diff := float64(s.Target) - s.Position
	if math.Abs(diff) >= 2 {
		if diff > 0 {
			s.Position++
		} else {
			s.Position--
		}
		return
	}

	s.Position = float64(s.Target)
	if s.Resting {
		s.Mode = ModeRestWaiting
		return
	}
	s.Mode = ModeHovering
	s.HoverTicksRemaining = hoverTicks
}

// Reconfigured returns a copy of the state adjusted to a new configuration.
// A needle at or moving to rest moves to the new rest position.
func (s State) Reconfigured(hoverTicks, rest int) State {
	s.HoverTicksRemaining = min(s.HoverTicksRemaining, hoverTicks)
	if s.Resting {
		s.Target = rest
		if s.Position != float64(rest) {
			s.Mode = ModeApproaching
		}
	}
	return s
}
