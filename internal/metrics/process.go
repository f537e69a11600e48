package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetingd_worker_terminate_total",
		Help: "Signals sent to worker subprocess groups by signal and outcome",
	}, []string{"signal", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetingd_worker_wait_total",
		Help: "Worker subprocess wait outcomes",
	}, []string{"outcome"})
)

// IncProcTerminate records a signal delivery attempt against a worker
// process group, by signal name and outcome (sent|esrch|error).
func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records how a worker subprocess's Wait() resolved.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}
