package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcerie/affut/internal/pkg/config"
)

type prometheusStats struct {
	cyclesStarted     *prometheus.CounterVec
	cyclesFinished    *prometheus.CounterVec
	cycleEnds         *prometheus.CounterVec
	itemsSeen         *prometheus.CounterVec
	itemsAccepted     *prometheus.CounterVec
	itemsDuplicate    *prometheus.CounterVec
	lateDuplicates    *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	restrictions      *prometheus.CounterVec
	selectorExhausted *prometheus.CounterVec
	quotaReached      *prometheus.CounterVec
	alertsDropped     *prometheus.CounterVec
	paused            *prometheus.GaugeVec
}

func prefix() string {
	if c := config.Get(); c != nil {
		return c.PrometheusPrefix
	}
	return ""
}

func newPrometheusStats() *prometheusStats {
	return &prometheusStats{
		cyclesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "cycles_started", Help: "Total number of collection cycles started"},
			[]string{"job", "hostname", "version"},
		),
		cyclesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "cycles_finished", Help: "Total number of collection cycles finished"},
			[]string{"job", "hostname", "version"},
		),
		cycleEnds: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "cycle_end_reasons", Help: "Cycle terminations by end reason"},
			[]string{"job", "hostname", "version", "reason"},
		),
		itemsSeen: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "items_seen", Help: "Total number of candidate items seen"},
			[]string{"job", "hostname", "version"},
		),
		itemsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "items_accepted", Help: "Total number of items accepted"},
			[]string{"job", "hostname", "version"},
		),
		itemsDuplicate: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "items_duplicate", Help: "Total number of items skipped as in-cycle duplicates"},
			[]string{"job", "hostname", "version"},
		),
		lateDuplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "late_duplicates", Help: "Accepted items the durable store already held"},
			[]string{"job", "hostname", "version"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "rejections", Help: "Qualification rejections by reason code"},
			[]string{"job", "hostname", "version", "reason"},
		),
		restrictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "restrictions_detected", Help: "Platform restrictions detected"},
			[]string{"job", "hostname", "version"},
		),
		selectorExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "selector_exhausted", Help: "Elements whose selector strategies all failed in a cycle"},
			[]string{"job", "hostname", "version"},
		),
		quotaReached: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "quota_reached", Help: "Times the daily quota stopped further accepts"},
			[]string{"job", "hostname", "version"},
		),
		alertsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix() + "alerts_dropped", Help: "Operator alerts dropped because the queue was full"},
			[]string{"job", "hostname", "version"},
		),
		paused: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: prefix() + "paused", Help: "Is the agent paused"},
			[]string{"job", "hostname", "version"},
		),
	}
}

func registerPrometheusMetrics() {
	prometheus.MustRegister(globalPromStats.cyclesStarted)
	prometheus.MustRegister(globalPromStats.cyclesFinished)
	prometheus.MustRegister(globalPromStats.cycleEnds)
	prometheus.MustRegister(globalPromStats.itemsSeen)
	prometheus.MustRegister(globalPromStats.itemsAccepted)
	prometheus.MustRegister(globalPromStats.itemsDuplicate)
	prometheus.MustRegister(globalPromStats.lateDuplicates)
	prometheus.MustRegister(globalPromStats.rejections)
	prometheus.MustRegister(globalPromStats.restrictions)
	prometheus.MustRegister(globalPromStats.selectorExhausted)
	prometheus.MustRegister(globalPromStats.quotaReached)
	prometheus.MustRegister(globalPromStats.alertsDropped)
	prometheus.MustRegister(globalPromStats.paused)
}

func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
