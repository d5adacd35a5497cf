package tuner

import (
	"math"
	"testing"

	"github.com/companyzero/chromatic/internal/assert"
)

func TestMapFrequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		freq   float64
		name   string
		letter Letter
		octave int
		cents  int
	}{
		{freq: 440, name: "A4", letter: LetterA, octave: 4},
		{freq: 261.6256, name: "C4", letter: LetterC, octave: 4},
		{freq: 82.41, name: "E2", letter: LetterE, octave: 2},
		{freq: 27.5, name: "A0", letter: LetterA, octave: 0},
		{freq: 16.3516, name: "C0", letter: LetterC, octave: 0},
		{freq: 8.1758, name: "C-1", letter: LetterC, octave: -1},
		{freq: 4186.01, name: "C8", letter: LetterC, octave: 8},
		{freq: 466.16, name: "A♯4", letter: LetterASharp, octave: 4},
		{freq: 445, name: "A4", letter: LetterA, octave: 4, cents: 20},
		{freq: 435, name: "A4", letter: LetterA, octave: 4, cents: -20},

		// Close to the midpoint between semitones.
		{freq: 452, name: "A4", letter: LetterA, octave: 4, cents: 47},
		{freq: 246.94, name: "B3", letter: LetterB, octave: 3},
		{freq: 254, name: "B3", letter: LetterB, octave: 3, cents: 49},
		{freq: 455, name: "A♯4", letter: LetterASharp, octave: 4, cents: -42},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			nr := MapFrequency(tc.freq)
			assert.DeepEqual(t, nr.Letter, tc.letter)
			assert.DeepEqual(t, nr.Octave, tc.octave)
			assert.DeepEqual(t, nr.Cents, tc.cents)
			assert.DeepEqual(t, nr.Name(), tc.name)
			assert.DeepEqual(t, nr.Frequency, tc.freq)
		})
	}
}

// TestMapFrequencyReference asserts mapping the reference frequency of any
// reading yields a reading with zero cents on the same pitch.
func TestMapFrequencyReference(t *testing.T) {
	t.Parallel()

	for f := 10.0; f < 20000; f *= 1.0137 {
		nr := MapFrequency(f)
		ref := MapFrequency(nr.ReferenceFrequency())
		if ref.Cents != 0 || ref.Letter != nr.Letter || ref.Octave != nr.Octave {
			t.Fatalf("unexpected reference reading for %f: got %s%+d, want %s+0",
				f, ref.Name(), ref.Cents, nr.Name())
		}
		if nr.Cents < -50 || nr.Cents > 50 {
			t.Fatalf("cents out of range for %f: %d", f, nr.Cents)
		}
	}
}

// TestMapFrequencyCentsSign asserts sharp frequencies have positive cents
// and flat frequencies have negative cents.
func TestMapFrequencyCentsSign(t *testing.T) {
	t.Parallel()

	for semitone := -48; semitone <= 39; semitone++ {
		ref := ReferenceA4 * math.Pow(2, float64(semitone)/12)
		sharp := MapFrequency(ref * math.Pow(2, 5.0/1200))
		flat := MapFrequency(ref * math.Pow(2, -5.0/1200))
		exact := MapFrequency(ref)

		assert.DeepEqual(t, sharp.Cents, 5)
		assert.DeepEqual(t, flat.Cents, -5)
		assert.DeepEqual(t, exact.Cents, 0)
		assert.DeepEqual(t, sharp.Name(), exact.Name())
		assert.DeepEqual(t, flat.Name(), exact.Name())
		assert.InDelta(t, exact.ReferenceFrequency(), ref, 1e-9*ref)
	}
}

func TestFloorDiv(t *testing.T) {
	t.Parallel()

	tests := []struct{ a, b, want int }{
		{0, 12, 0},
		{11, 12, 0},
		{12, 12, 1},
		{-1, 12, -1},
		{-12, 12, -1},
		{-13, 12, -2},
	}
	for _, tc := range tests {
		assert.DeepEqual(t, floorDiv(tc.a, tc.b), tc.want)
	}
}
