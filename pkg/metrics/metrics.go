// Package metrics exports cell lifecycle events as prometheus metrics.
package metrics

import (
	"github.com/olimci/lazycell/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lazycell"

// Handler is an events.Handler that records events in prometheus collectors.
type Handler struct {
	initializations *prometheus.CounterVec
	contended       *prometheus.CounterVec
	raceLost        *prometheus.CounterVec
	poisoned        *prometheus.CounterVec
	releases        *prometheus.CounterVec
	initDuration    *prometheus.HistogramVec
	spins           *prometheus.HistogramVec
}

// New creates a Handler and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Handler, error) {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"cell"})
	}

	h := &Handler{
		initializations: counter("initializations_total", "Completed initializations."),
		contended:       counter("contended_total", "Accesses that had to wait for the initialization guard."),
		raceLost:        counter("race_lost_total", "Accesses that took the guard after another goroutine had initialized the value."),
		poisoned:        counter("poisoned_total", "Initializers that panicked or exited early."),
		releases:        counter("releases_total", "Initialized values released on close."),
		initDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "init_duration_seconds",
			Help:      "Time spent in the initializer.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}, []string{"cell"}),
		spins: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spins",
			Help:      "Failed guard acquisitions per contended access.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"cell"}),
	}

	for _, c := range []prometheus.Collector{
		h.initializations, h.contended, h.raceLost, h.poisoned, h.releases, h.initDuration, h.spins,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return h, nil
}

func (h *Handler) Handle(event events.Event) {
	cell := event.Cell
	switch event.Kind {
	case events.InitDone:
		h.initializations.WithLabelValues(cell).Inc()
		h.initDuration.WithLabelValues(cell).Observe(event.Duration.Seconds())
	case events.Contended:
		h.contended.WithLabelValues(cell).Inc()
		h.spins.WithLabelValues(cell).Observe(float64(event.Spins))
	case events.RaceLost:
		h.raceLost.WithLabelValues(cell).Inc()
	case events.Poisoned:
		h.poisoned.WithLabelValues(cell).Inc()
		h.initDuration.WithLabelValues(cell).Observe(event.Duration.Seconds())
	case events.Released:
		h.releases.WithLabelValues(cell).Inc()
	}
}
