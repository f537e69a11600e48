package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LLMProviderErrors counts Chat failures per provider, labeled by
// whether the error triggered fail-over, §4.9.
var LLMProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "meetingd_llm_provider_errors_total",
	Help: "Total LLM provider call failures by provider and classification",
}, []string{"provider", "classification"})

// LLMBatchDuration tracks how long each C8 live-insight batch call took.
var LLMBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "meetingd_insight_batch_duration_seconds",
	Help:    "Duration of live-insight LLM batch calls",
	Buckets: prometheus.DefBuckets,
}, []string{"meeting_id", "outcome"})

// InsightNotesTotal counts InsightNotes created by kind.
var InsightNotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "meetingd_insight_notes_total",
	Help: "Total InsightNotes created, by kind",
}, []string{"kind"})

// TasksCreatedTotal counts Tasks promoted from action-item candidates.
var TasksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "meetingd_tasks_created_total",
	Help: "Total Tasks created from action-item insight candidates",
})
