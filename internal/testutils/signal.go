package testutils

import "math"

// SineWave returns n samples of a sine wave with the given frequency and
// amplitude, sampled at rate.
func SineWave(freq, amplitude float64, rate uint32, n int) []float32 {
	res := make([]float32, n)
	w := 2 * math.Pi * freq / float64(rate)
	for i := range res {
		res[i] = float32(amplitude * math.Sin(w*float64(i)))
	}
	return res
}

// HarmonicWave returns n samples of a wave with the given fundamental and
// decaying overtones (1/k amplitude for the k-th harmonic), which is closer
// to what a plucked string produces than a pure sine.
func HarmonicWave(freq float64, harmonics int, rate uint32, n int) []float32 {
	res := make([]float32, n)
	for k := 1; k <= harmonics; k++ {
		w := 2 * math.Pi * freq * float64(k) / float64(rate)
		amp := 0.5 / float64(k)
		for i := range res {
			res[i] += float32(amp * math.Sin(w*float64(i)))
		}
	}
	return res
}
