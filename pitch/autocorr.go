package pitch

import (
	"math"

	"github.com/andrepxx/go-dsp-guitar/tuner"
)

// Autocorrelation estimates pitch with the FFT autocorrelation tuner of
// go-dsp-guitar. The tuner analyzes a sliding window that spans several
// buffers, so each stream needs its own Autocorrelation.
type Autocorrelation struct {
	// SilenceDB is the mean power (in dBFS) of the latest buffer below
	// which no pitch is reported.
	SilenceDB float64

	tn  tuner.Tuner
	buf []float64
}

// NewAutocorrelation returns an autocorrelation estimator with the default
// silence gate.
func NewAutocorrelation() *Autocorrelation {
	return &Autocorrelation{
		SilenceDB: DefaultSilenceDB,
		tn:        tuner.Create(),
	}
}

// Estimate is part of the Estimator interface.
func (a *Autocorrelation) Estimate(buf []float32, sampleRate uint32) float64 {
	if sampleRate == 0 || len(buf) == 0 {
		return 0
	}

	// Silent buffers still go into the window so it stays contiguous.
	a.buf = a.buf[:0]
	for _, s := range buf {
		a.buf = append(a.buf, float64(s))
	}
	a.tn.Process(a.buf, sampleRate)
	if levelDB(buf) < a.SilenceDB {
		return 0
	}

	res, err := a.tn.Analyze()
	if err != nil {
		return 0
	}
	f := res.Frequency()
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return f
}
