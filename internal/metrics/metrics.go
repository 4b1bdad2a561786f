package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reservo"

var (
	once sync.Once

	workerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_runs_total",
			Help:      "Scheduled worker runs by worker and outcome.",
		},
		[]string{"worker", "outcome"},
	)

	workerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_run_duration_seconds",
			Help:      "Time spent in one worker run.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"worker"},
	)

	workerItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_items_total",
			Help:      "Rows handled by workers by result (applied, skipped, failed).",
		},
		[]string{"worker", "result"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Lifecycle events published on the event bus.",
		},
		[]string{"event"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by type and result.",
		},
		[]string{"type", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(workerRuns, workerDuration, workerItems, bookingEvents, notifications)
	})
}

// ObserveRun records one worker run.
func ObserveRun(worker string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	workerRuns.WithLabelValues(worker, outcome).Inc()
	workerDuration.WithLabelValues(worker).Observe(took.Seconds())
}

// AddItems counts rows a worker applied, skipped or failed.
func AddItems(worker, result string, n int) {
	if n <= 0 {
		return
	}
	workerItems.WithLabelValues(worker, result).Add(float64(n))
}

func IncEvent(event string) {
	bookingEvents.WithLabelValues(event).Inc()
}

func IncNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}
