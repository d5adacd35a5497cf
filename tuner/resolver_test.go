package tuner

import (
	"testing"

	"github.com/companyzero/chromatic/internal/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		candidates []string
		want       int
		wantOK     bool
	}{{
		name:       "mixer description",
		target:     "Built-in Microphone",
		candidates: []string{"Built-in Audio Analog Stereo", "HDMI Output"},
		want:       0,
		wantOK:     true,
	}, {
		name:       "later candidate",
		target:     "USB Mic",
		candidates: []string{"Built-in Audio Analog Stereo", "HDMI Output", "USB Mic"},
		want:       2,
		wantOK:     true,
	}, {
		name:   "case insensitive",
		target: "scarlett",
		candidates: []string{
			"Built-in Audio Analog Stereo",
			"Focusrite Scarlett 2i2 USB",
		},
		want:   1,
		wantOK: true,
	}, {
		name:       "ties go to first",
		target:     "Webcam",
		candidates: []string{"Webcam Mono", "Webcam Stereo"},
		want:       0,
		wantOK:     true,
	}, {
		name:       "no match",
		target:     "Scarlett 2i2",
		candidates: []string{"HDMI Output"},
		want:       -1,
	}, {
		name:       "empty target",
		target:     "  ",
		candidates: []string{"HDMI Output"},
		want:       -1,
	}, {
		name:   "no candidates",
		target: "HDMI",
		want:   -1,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tc.target, tc.candidates)
			assert.DeepEqual(t, got, tc.want)
			assert.BoolIs(t, ok, tc.wantOK)
		})
	}
}

func TestScoreDevices(t *testing.T) {
	t.Parallel()

	scores := ScoreDevices("Built-in Microphone",
		[]string{"Built-in Audio Analog Stereo", "HDMI Output"})
	if scores[0] <= 0 {
		t.Fatalf("unexpected score for first candidate: %d", scores[0])
	}
	assert.DeepEqual(t, scores[1], 0)
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := tokenize("Monitor of Built-in Audio (Analog Stereo) / a")
	want := []string{"monitor", "of", "built-in", "audio", "analog", "stereo"}
	assert.DeepEqual(t, got, want)
}
