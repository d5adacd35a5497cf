package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/companyzero/chromatic/internal/assert"
)

func TestScaleColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cents float64
		width int
		want  int
	}{
		{cents: -50, width: 21, want: 0},
		{cents: 0, width: 21, want: 10},
		{cents: 50, width: 21, want: 20},
		{cents: 20, width: 21, want: 14},
		{cents: -45, width: 21, want: 1},
		{cents: -80, width: 21, want: 0},
		{cents: 120, width: 21, want: 20},
		{cents: 10, width: 101, want: 60},
	}
	for _, tc := range tests {
		got := scaleColumn(tc.cents, tc.width)
		if got != tc.want {
			t.Errorf("scaleColumn(%v, %d): got %d, want %d", tc.cents,
				tc.width, got, tc.want)
		}
	}
}

func TestScaleWidth(t *testing.T) {
	t.Parallel()

	assert.DeepEqual(t, scaleWidth(80), 71)
	assert.DeepEqual(t, scaleWidth(200), 101)
	assert.DeepEqual(t, scaleWidth(10), minScaleWidth)
	for w := 0; w < 150; w++ {
		if (scaleWidth(w)-1)%10 != 0 {
			t.Fatalf("major ticks not aligned for window width %d", w)
		}
	}
}

func TestRenderNeedle(t *testing.T) {
	t.Parallel()

	needle, scale, labels := renderNeedle(20, 21)
	assert.DeepEqual(t, needle, strings.Repeat(" ", 14)+"┃"+strings.Repeat(" ", 6))
	assert.DeepEqual(t, scale, "┼─┼─┼─┼─┼─┼─┼─┼─┼─┼─┼")
	assert.DeepEqual(t, labels, "-50       0       +50")
	assert.DeepEqual(t, utf8.RuneCountInString(needle), 21)

	// Positions beyond the scale are drawn at its limits.
	needle, _, _ = renderNeedle(-100, 21)
	assert.DeepEqual(t, needle, "┃"+strings.Repeat(" ", 20))
}
