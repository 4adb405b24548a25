package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by kind.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegedesk_notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"kind"},
	)

	// EmailsSent counts outbound emails by template and result (sent|failed).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegedesk_emails_total",
			Help: "Total number of outbound email attempts",
		},
		[]string{"template", "result"},
	)

	// RemindersSent counts reminder scheduler sends by phase (reminder|warning).
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegedesk_reminders_sent_total",
			Help: "Total number of due-date reminder emails sent",
		},
		[]string{"phase"},
	)

	// AttendanceMarks counts attendance attempts by outcome (accepted|duplicate|outside_window).
	AttendanceMarks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegedesk_attendance_marks_total",
			Help: "Total number of attendance mark attempts",
		},
		[]string{"outcome"},
	)

	// RealtimeClients tracks currently connected websocket clients.
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collegedesk_realtime_clients",
			Help: "Number of connected realtime clients",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collegedesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
