// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "care_keeper"

// Conflict winners used as label values.
const (
	WinnerLocal  = "local"
	WinnerServer = "server"
)

// Cycle results used as label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// SyncMetrics records sync engine activity.
type SyncMetrics interface {
	MutationEnqueued(action string)
	MutationAcknowledged()
	Conflict(winner string)
	TransientFailure()
	PermanentFailure()
	EntitiesPulled(n int)
	CycleFinished(result string)
	SetPending(n int)
	SetFailed(n int)
}

// Sync holds the Prometheus collectors behind [SyncMetrics].
type Sync struct {
	enqueued     *prometheus.CounterVec
	acknowledged prometheus.Counter
	conflicts    *prometheus.CounterVec
	transient    prometheus.Counter
	permanent    prometheus.Counter
	pulled       prometheus.Counter
	cycles       *prometheus.CounterVec
	pending      prometheus.Gauge
	failed       prometheus.Gauge
}

// NewSync creates the sync collectors and registers them with reg.
func NewSync(reg prometheus.Registerer) *Sync {
	m := &Sync{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "mutations_enqueued_total",
			Help:      "Local mutations added to the sync queue",
		}, []string{"action"}),
		acknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "mutations_acknowledged_total",
			Help:      "Mutations acknowledged by the remote authority",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "conflicts_total",
			Help:      "Conflicts resolved by last-write-wins",
		}, []string{"winner"}),
		transient: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "transient_failures_total",
			Help:      "Failed mutation sends",
		}),
		permanent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "permanent_failures_total",
			Help:      "Mutations that exhausted their retries",
		}),
		pulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "entities_pulled_total",
			Help:      "Remote changes applied locally",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Completed sync cycles",
		}, []string{"result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pending_mutations",
			Help:      "Queued mutations still eligible for sending",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "failed_mutations",
			Help:      "Queued mutations that exhausted their retries",
		}),
	}

	reg.MustRegister(
		m.enqueued,
		m.acknowledged,
		m.conflicts,
		m.transient,
		m.permanent,
		m.pulled,
		m.cycles,
		m.pending,
		m.failed,
	)

	return m
}

func (m *Sync) MutationEnqueued(action string) { m.enqueued.WithLabelValues(action).Inc() }
func (m *Sync) MutationAcknowledged()          { m.acknowledged.Inc() }
func (m *Sync) Conflict(winner string)         { m.conflicts.WithLabelValues(winner).Inc() }
func (m *Sync) TransientFailure()              { m.transient.Inc() }
func (m *Sync) PermanentFailure()              { m.permanent.Inc() }
func (m *Sync) EntitiesPulled(n int)           { m.pulled.Add(float64(n)) }
func (m *Sync) CycleFinished(result string)    { m.cycles.WithLabelValues(result).Inc() }
func (m *Sync) SetPending(n int)               { m.pending.Set(float64(n)) }
func (m *Sync) SetFailed(n int)                { m.failed.Set(float64(n)) }

type nop struct{}

// Nop returns a [SyncMetrics] that records nothing.
func Nop() SyncMetrics { return nop{} }

func (nop) MutationEnqueued(string) {}
func (nop) MutationAcknowledged()   {}
func (nop) Conflict(string)         {}
func (nop) TransientFailure()       {}
func (nop) PermanentFailure()       {}
func (nop) EntitiesPulled(int)      {}
func (nop) CycleFinished(string)    {}
func (nop) SetPending(int)          {}
func (nop) SetFailed(int)           {}
