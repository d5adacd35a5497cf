package pitch

const (
	// DefaultThreshold is the default YIN tolerance for the cumulative
	// mean normalized difference.
	DefaultThreshold = 0.15

	// DefaultSilenceDB is the level below which a buffer is considered
	// silent.
	DefaultSilenceDB = -50.0

	// DefaultMinFrequency is the lowest frequency searched for.
	DefaultMinFrequency = 20.0
)

// YIN is a YIN pitch estimator with a silence gate.
type YIN struct {
	// Threshold is the tolerance used to pick the first dip of the
	// normalized difference function.
	Threshold float64

	// SilenceDB is the mean power (in dBFS) below which the buffer is
	// reported as having no pitch.
	SilenceDB float64

	// MinFrequency bounds the largest lag searched.
	MinFrequency float64

	diff []float64
}

// NewYIN returns a YIN estimator with the default parameters.
func NewYIN() *YIN {
	return &YIN{
		Threshold:    DefaultThreshold,
		SilenceDB:    DefaultSilenceDB,
		MinFrequency: DefaultMinFrequency,
	}
}

// Estimate is part of the Estimator interface.
func (y *YIN) Estimate(buf []float32, sampleRate uint32) float64 {
	if sampleRate == 0 || len(buf) < 8 {
		return 0
	}
	if levelDB(buf) < y.SilenceDB {
		return 0
	}

	w := len(buf) / 2
	maxTau := w
	if y.MinFrequency > 0 {
		if lim := int(float64(sampleRate)/y.MinFrequency) + 2; lim < maxTau {
			maxTau = lim
		}
	}

	if cap(y.diff) < maxTau {
		y.diff = make([]float64, maxTau)
	}
	d := y.diff[:maxTau]

	// Difference function.
	d[0] = 0
	for tau := 1; tau < maxTau; tau++ {
		var sum float64
		for j := 0; j < w; j++ {
			delta := float64(buf[j]) - float64(buf[j+tau])
			sum += delta * delta
		}
		d[tau] = sum
	}

	// Cumulative mean normalized difference.
	d[0] = 1
	var running float64
	for tau := 1; tau < maxTau; tau++ {
		running += d[tau]
		if running == 0 {
			d[tau] = 1
		} else {
			d[tau] *= float64(tau) / running
		}
	}

	// First dip below the threshold, followed down to its local minimum.
	tau := -1
	for i := 2; i < maxTau; i++ {
		if d[i] < y.Threshold {
			for i+1 < maxTau && d[i+1] < d[i] {
				i++
			}
			tau = i
			break
		}
	}
	if tau < 0 {
		return 0
	}

	// Parabolic interpolation of the dip.
	better := float64(tau)
	if tau > 0 && tau+1 < maxTau {
		s0, s1, s2 := d[tau-1], d[tau], d[tau+1]
		denom := 2 * (s0 - 2*s1 + s2)
		if denom != 0 {
			better += (s0 - s2) / denom
		}
	}
	if better <= 0 {
		return 0
	}

	return float64(sampleRate) / better
}
