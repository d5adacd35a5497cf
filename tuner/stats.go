package tuner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/companyzero/chromatic/internal/timestats"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats holds pipeline statistics.
type Stats struct {
	reg *prometheus.Registry

	buffersCaptured   prometheus.Counter
	buffersDropped    prometheus.Counter
	estimatesInvalid  prometheus.Counter
	resultsPublished  prometheus.Counter
	resultsDropped    prometheus.Counter
	resultsStale      prometheus.Counter
	streamSwitches    prometheus.Counter
	openFailures      *prometheus.CounterVec
	activeSampleRate  prometheus.Gauge
	closingStreams    prometheus.Gauge
	estimateDuration  prometheus.Histogram
	estimateTimes     *timestats.Tracker
	buffersAtomic     atomic.Uint64
	droppedAtomic     atomic.Uint64
	publishedAtomic   atomic.Uint64
	invalidAtomic     atomic.Uint64
	resultDropsAtomic atomic.Uint64
}

// NewStats creates the stats with a private registry.
func NewStats() *Stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &Stats{
		reg: reg,

		buffersCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_buffers_captured",
			Help: "Total number of full buffers assembled from the capture callback",
		}),
		buffersDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_buffers_dropped",
			Help: "Buffers dropped because the worker queue was full",
		}),
		estimatesInvalid: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_estimates_invalid",
			Help: "Pitch estimates discarded for being above the sanity ceiling or not finite",
		}),
		resultsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_results_published",
			Help: "Pitch samples published to the application",
		}),
		resultsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_results_dropped",
			Help: "Pitch samples dropped because the results queue was full",
		}),
		resultsStale: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_results_stale",
			Help: "Pitch samples ignored because their stream was replaced",
		}),
		streamSwitches: f.NewCounter(prometheus.CounterOpts{
			Name: "tuner_stream_switches",
			Help: "Number of times a new stream became active",
		}),
		openFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tuner_open_failures",
			Help: "Failures to open a stream, by reason",
		}, []string{"reason"}),
		activeSampleRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "tuner_active_sample_rate",
			Help: "Sample rate of the active stream (0 when none)",
		}),
		closingStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "tuner_closing_streams",
			Help: "Streams signaled to stop whose worker has not exited yet",
		}),
		estimateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "tuner_estimate_duration_microseconds",
			Help: "Histogram of how long each pitch estimation takes",
			Buckets: []float64{
				50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000, 25_000, 50_000, 100_000,
			},
		}),
		estimateTimes: timestats.NewTracker(250),
	}
}

// Registry is the prometheus registry holding the stats.
func (s *Stats) Registry() *prometheus.Registry {
	return s.reg
}

func (s *Stats) bufferCaptured() {
	s.buffersCaptured.Inc()
	s.buffersAtomic.Add(1)
}

func (s *Stats) bufferDropped() {
	s.buffersDropped.Inc()
	s.droppedAtomic.Add(1)
}

func (s *Stats) estimateInvalid() {
	s.estimatesInvalid.Inc()
	s.invalidAtomic.Add(1)
}

func (s *Stats) resultPublished() {
	s.resultsPublished.Inc()
	s.publishedAtomic.Add(1)
}

func (s *Stats) resultDropped() {
	s.resultsDropped.Inc()
	s.resultDropsAtomic.Add(1)
}

func (s *Stats) estimated(d time.Duration) {
	s.estimateDuration.Observe(float64(d.Microseconds()))
	s.estimateTimes.Add(d)
}

// StatsSnapshot are the counters accumulated since the last report.
type StatsSnapshot struct {
	Buffers        uint64
	Dropped        uint64
	Published      uint64
	Invalid        uint64
	ResultsDropped uint64
	EstimateTimes  []timestats.Quantile
}

// swap returns the counters accumulated since the last call and resets them.
func (s *Stats) swap() StatsSnapshot {
	return StatsSnapshot{
		Buffers:        s.buffersAtomic.Swap(0),
		Dropped:        s.droppedAtomic.Swap(0),
		Published:      s.publishedAtomic.Swap(0),
		Invalid:        s.invalidAtomic.Swap(0),
		ResultsDropped: s.resultDropsAtomic.Swap(0),
		EstimateTimes:  s.estimateTimes.Quantiles(),
	}
}

// RunReportStatsLoop logs a summary of the stats every reportInterval.
func (s *Stats) RunReportStatsLoop(ctx context.Context, reportInterval time.Duration, log slog.Logger) error {
	if reportInterval <= 0 {
		log.Infof("Logging of stats is disabled")
		return nil
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	var tickTime, lastTick time.Time
	tickTime = time.Now()

	log.Infof("Running report stats loop with interval %s", reportInterval)

	for {
		lastTick = tickTime

		select {
		case <-ctx.Done():
			return ctx.Err()
		case tickTime = <-ticker.C:
		}

		snap := s.swap()
		if snap.Buffers|snap.Published|snap.Invalid == 0 {
			// Skip if there are no stats.
			continue
		}

		dt := tickTime.Sub(lastTick)
		log.Infof("Stats for the last %s - buffers %d (%d dropped), "+
			"published %d (%d dropped), invalid %d, estimate p50 %s max %s",
			dt.Round(time.Millisecond), snap.Buffers, snap.Dropped,
			snap.Published, snap.ResultsDropped, snap.Invalid,
			timestats.Percentile(snap.EstimateTimes, "50%"),
			timestats.Percentile(snap.EstimateTimes, "100%"))
	}
}
