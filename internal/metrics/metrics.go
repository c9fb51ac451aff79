// Package metrics exposes Prometheus counters for tracker activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memolog"

// Recorder collects counters on its own registry so tests and multiple
// instances never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	checkins        prometheus.Counter
	goalCompletions prometheus.Counter
	goalUnits       prometheus.Counter
	memoWrites      *prometheus.CounterVec
	taskChanges     *prometheus.CounterVec
	reminders       prometheus.Counter
	failures        *prometheus.CounterVec
}

// New registers all collectors, including the Go runtime and process
// collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		checkins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Check-in records created.",
		}),
		goalCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_completions_total",
			Help:      "Goal completion records created.",
		}),
		goalUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_progress_units_total",
			Help:      "Units of goal progress applied after clamping to the target.",
		}),
		memoWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_writes_total",
			Help:      "Memo writes by operation.",
		}, []string{"op"}),
		taskChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_changes_total",
			Help:      "Task edits by kind (toggle, priority, subtask).",
		}, []string{"kind"}),
		reminders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_reminders_total",
			Help:      "Schedule reminders published.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_failures_total",
			Help:      "Tracker actions that returned an error.",
		}, []string{"action"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.checkins, r.goalCompletions, r.goalUnits,
		r.memoWrites, r.taskChanges, r.reminders, r.failures,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) CheckinRecorded() { r.checkins.Inc() }

// GoalProgressed counts one completion worth units of progress.
func (r *Recorder) GoalProgressed(units int) {
	r.goalCompletions.Inc()
	if units > 0 {
		r.goalUnits.Add(float64(units))
	}
}

func (r *Recorder) MemoWritten(op string) { r.memoWrites.WithLabelValues(op).Inc() }

func (r *Recorder) TaskChanged(kind string) { r.taskChanges.WithLabelValues(kind).Inc() }

func (r *Recorder) ReminderSent() { r.reminders.Inc() }

func (r *Recorder) Failed(action string) { r.failures.WithLabelValues(action).Inc() }
