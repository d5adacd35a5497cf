package timestats

import (
	"sort"
	"sync"
	"time"
)

// Tracker tracks the latest durations of an event source in a concurrent safe
// manner. Tracking is done at the microsecond resolution.
//
// This is useful only for low numbers of events.
type Tracker struct {
	mtx    sync.Mutex
	i, n   int
	events []int64
}

// Add records a new event duration, replacing the oldest one if the tracker is
// full.
func (t *Tracker) Add(d time.Duration) {
	us := d.Microseconds()

	t.mtx.Lock()
	t.events[t.i] = us
	t.i = (t.i + 1) % len(t.events)
	t.n += 1
	t.mtx.Unlock()
}

// Quantile is the maximum duration among the N fastest tracked events.
type Quantile struct {
	N   int64
	Max time.Duration
	Rel string
}

// Quantiles returns the quantiles of the tracked events, sorted by Max.
func (t *Tracker) Quantiles() []Quantile {
	t.mtx.Lock()
	n := int64(t.n)
	if n > int64(len(t.events)) {
		n = int64(len(t.events))
	}
	if n == 0 {
		t.mtx.Unlock()
		return []Quantile{}
	}

	// Sort.
	sorted := make([]int64, n)
	copy(sorted[:], t.events[:n])
	t.mtx.Unlock()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	percs := []struct {
		n int64
		d int64
		r string
	}{
		{n: 10, d: 100, r: "10%"},
		{n: 1, d: 4, r: "25%"},
		{n: 1, d: 2, r: "50%"},
		{n: 3, d: 4, r: "75%"},
		{n: 9, d: 10, r: "90%"},
		{n: 99, d: 100, r: "99%"},
	}
	us := time.Microsecond
	res := make([]Quantile, 1, len(percs)+1)
	res[0] = Quantile{Rel: "100%", N: n, Max: time.Duration(sorted[len(sorted)-1]) * us}
	lastIdx := int64(len(sorted) - 1)
	for i := len(percs) - 1; i >= 0; i-- {
		idx := n * percs[i].n / percs[i].d
		if idx == lastIdx {
			continue
		}
		max := time.Duration(sorted[idx]) * us
		if max == res[len(res)-1].Max {
			continue
		}
		res = append(res, Quantile{
			Rel: percs[i].r,
			Max: max,
			N:   idx + 1,
		})
		lastIdx = idx
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Max < res[j].Max })

	return res
}

// Percentile returns the Max of the quantile named rel (e.g. "50%"). When
// that quantile was merged into a slower one, the next slower quantile is
// returned.
func Percentile(qs []Quantile, rel string) time.Duration {
	order := []string{"10%", "25%", "50%", "75%", "90%", "99%", "100%"}
	want := -1
	for i, r := range order {
		if r == rel {
			want = i
		}
	}
	if want < 0 {
		return 0
	}
	for _, r := range order[want:] {
		for _, q := range qs {
			if q.Rel == r {
				return q.Max
			}
		}
	}
	return 0
}

// NewTracker returns a tracker that keeps the last n events.
func NewTracker(n int) *Tracker {
	return &Tracker{
		events: make([]int64, n),
	}
}
