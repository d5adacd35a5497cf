package tuner

import (
	"fmt"
	"math"
	"time"
)

const (
	// ReferenceA4 is the frequency of A4 used as tuning reference.
	ReferenceA4 = 440.0

	// midiA4 is the MIDI note number of A4.
	midiA4 = 69
)

// Letter is one of the 12 equal-tempered pitch classes.
type Letter int

const (
	LetterC Letter = iota
	LetterCSharp
	LetterD
	LetterDSharp
	LetterE
	LetterF
	LetterFSharp
	LetterG
	LetterGSharp
	LetterA
	LetterASharp
	LetterB
)

var letterNames = [12]string{"C", "C♯", "D", "D♯", "E", "F", "F♯", "G", "G♯", "A", "A♯", "B"}

func (l Letter) String() string {
	if l < 0 || int(l) >= len(letterNames) {
		return fmt.Sprintf("Letter(%d)", int(l))
	}
	return letterNames[l]
}

// NoteReading is a frequency mapped to the nearest equal-tempered pitch.
type NoteReading struct {
	Letter Letter
	Octave int

	// Cents is the deviation from the reference frequency of the pitch.
	// Positive values are sharp, negative are flat.
	Cents int

	// Frequency is the input frequency.
	Frequency float64

	// LastUpdate is when the reading was taken. MapFrequency leaves it
	// unset.
	LastUpdate time.Time
}

// Name returns the letter and octave of the reading (e.g. "A4").
func (nr NoteReading) Name() string {
	return fmt.Sprintf("%s%d", nr.Letter, nr.Octave)
}

// semitone returns the number of semitones of the reading relative to A4.
func (nr NoteReading) semitone() int {
	midi := (nr.Octave+1)*12 + int(nr.Letter)
	return midi - midiA4
}

// ReferenceFrequency is the exact frequency of the reading's pitch.
func (nr NoteReading) ReferenceFrequency() float64 {
	return ReferenceA4 * math.Pow(2, float64(nr.semitone())/12)
}

// floorDiv returns a/b rounded towards negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// MapFrequency maps f to the nearest equal-tempered pitch, using A4 = 440 Hz
// as reference. f must be positive; callers route non-positive values to a
// SilenceTracker instead.
func MapFrequency(f float64) NoteReading {
	n := int(math.Round(12 * math.Log2(f/ReferenceA4)))
	midi := n + midiA4
	letter := Letter(midi - floorDiv(midi, 12)*12)
	octave := floorDiv(midi, 12) - 1

	ref := ReferenceA4 * math.Pow(2, float64(n)/12)
	cents := int(math.Round(1200 * math.Log2(f/ref)))

	return NoteReading{
		Letter:    letter,
		Octave:    octave,
		Cents:     cents,
		Frequency: f,
	}
}
