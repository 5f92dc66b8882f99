package engine

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bearing-monitor/station/internal/metric"
	"github.com/bearing-monitor/station/internal/worker"
)

// Stats counts engine decisions. Suppressed, Coalesced and Deferred are
// triggers that did not start a run.
type Stats struct {
	Started    int64        `json:"started"`
	Succeeded  int64        `json:"succeeded"`
	Failed     int64        `json:"failed"`
	Suppressed int64        `json:"suppressed"`
	Coalesced  int64        `json:"coalesced"`
	Deferred   int64        `json:"deferred"`
	Pool       worker.Stats `json:"pool"`
}

type stats struct {
	nStarted, nSucceeded, nFailed      atomic.Int64
	nSuppressed, nCoalesced, nDeferred atomic.Int64

	runs     *prometheus.CounterVec
	triggers *prometheus.CounterVec
	duration prometheus.Histogram
}

func newStats(reg *metric.Registry) (*stats, error) {
	s := &stats{}
	if reg == nil {
		return s, nil
	}
	s.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_engine_runs_total",
		Help: "Algorithm runs by outcome",
	}, []string{"outcome"})
	s.triggers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_engine_held_triggers_total",
		Help: "Triggers that recorded pending demand instead of starting a run",
	}, []string{"reason"})
	s.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "station_engine_solve_duration_seconds",
		Help:    "Duration of successful algorithm runs",
		Buckets: prometheus.DefBuckets,
	})
	for name, c := range map[string]prometheus.Collector{
		"runs":     s.runs,
		"triggers": s.triggers,
		"duration": s.duration,
	} {
		if err := reg.Register("engine", name, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *stats) started() {
	s.nStarted.Add(1)
	inc(s.runs, "started")
}

func (s *stats) succeeded(d time.Duration) {
	s.nSucceeded.Add(1)
	inc(s.runs, "succeeded")
	if s.duration != nil {
		s.duration.Observe(d.Seconds())
	}
}

func (s *stats) failed() {
	s.nFailed.Add(1)
	inc(s.runs, "failed")
}

func (s *stats) suppressed() {
	s.nSuppressed.Add(1)
	inc(s.triggers, "suppressed")
}

func (s *stats) coalesced() {
	s.nCoalesced.Add(1)
	inc(s.triggers, "coalesced")
}

func (s *stats) deferred() {
	s.nDeferred.Add(1)
	inc(s.triggers, "queue_full")
}

func (s *stats) snapshot() Stats {
	return Stats{
		Started:    s.nStarted.Load(),
		Succeeded:  s.nSucceeded.Load(),
		Failed:     s.nFailed.Load(),
		Suppressed: s.nSuppressed.Load(),
		Coalesced:  s.nCoalesced.Load(),
		Deferred:   s.nDeferred.Load(),
	}
}

func inc(v *prometheus.CounterVec, label string) {
	if v != nil {
		v.WithLabelValues(label).Inc()
	}
}
