package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the eligibility batch pass and the hours verification task.
var (
	RecordsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eligibility",
		Name:      "records_created_total",
		Help:      "Eligibility records created during discovery.",
	})

	Updates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eligibility",
		Name:      "updates_total",
		Help:      "Eligibility records recomputed and saved.",
	})

	UpdateSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eligibility",
		Name:      "update_skips_total",
		Help:      "Records skipped because the controller identity no longer exists.",
	})

	TasksEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eligibility",
		Name:      "tasks_enqueued_total",
		Help:      "Hours-verification tasks handed to the queue.",
	})

	HoursChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eligibility",
		Name:      "hours_checks_total",
		Help:      "Hours-verification outcomes by result.",
	}, []string{"result"})

	HoursRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eligibility",
		Name:      "hours_retries_total",
		Help:      "Failed or empty hours-service responses that triggered a retry wait.",
	})
)
