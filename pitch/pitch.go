// Package pitch estimates the fundamental frequency of mono audio buffers.
package pitch

import (
	"fmt"
	"math"
)

// Estimator estimates the fundamental frequency of a buffer of samples.
//
// Implementations return the frequency in Hz or 0 when no pitch could be
// detected (silence, noise or an unvoiced signal). Estimators may keep
// internal scratch buffers, so a single Estimator must not be used by
// concurrent goroutines.
type Estimator interface {
	Estimate(buf []float32, sampleRate uint32) float64
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func(buf []float32, sampleRate uint32) float64

// Estimate is part of the Estimator interface.
func (f EstimatorFunc) Estimate(buf []float32, sampleRate uint32) float64 {
	return f(buf, sampleRate)
}

// Names of the available estimators.
const (
	NameAutocorrelation = "autocorrelation"
	NameYIN             = "yin"
)

// DefaultName is the estimator used when none is configured.
const DefaultName = NameAutocorrelation

// ByName returns a constructor for the named estimator.
func ByName(name string) (func() Estimator, error) {
	switch name {
	case NameAutocorrelation:
		return func() Estimator { return NewAutocorrelation() }, nil
	case NameYIN:
		return func() Estimator { return NewYIN() }, nil
	default:
		return nil, fmt.Errorf("unknown pitch estimator %q", name)
	}
}

// levelDB returns the mean power of buf in dBFS.
func levelDB(buf []float32) float64 {
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	if sum == 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(sum/float64(len(buf)))
}
