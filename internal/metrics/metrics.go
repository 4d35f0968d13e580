package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
	)

	ScheduleExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_executions_total",
			Help: "Scheduled batch executions by result",
		},
		[]string{"result"},
	)

	ScheduledJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduled_jobs",
			Help: "Jobs currently registered with the scheduler",
		},
	)

	FiringsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_firings_dropped_total",
			Help: "Firings dropped because the dispatch queue was full or the schedule was still running",
		},
	)

	AutoReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auto_replies_total",
			Help: "Total auto-replies sent by the inbox monitor",
		},
	)
)

// Execution results.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(ScheduleExecutions)
	prometheus.MustRegister(ScheduledJobs)
	prometheus.MustRegister(FiringsDropped)
	prometheus.MustRegister(AutoReplies)
}
