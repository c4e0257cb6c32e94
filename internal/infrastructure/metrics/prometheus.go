package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/binary_mg_bot/internal/domain"
)

const namespace = "mgbot"

// Recorder exports orchestrator activity to Prometheus on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	sequences      *prometheus.CounterVec
	levels         *prometheus.CounterVec
	gateBlocks     *prometheus.CounterVec
	verifierReject *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	profit         prometheus.Gauge
	balance        prometheus.Gauge
	lossStreak     prometheus.Gauge
	// one labeled series per state, the active one set to 1
	state *prometheus.GaugeVec

	mu        sync.Mutex
	lastState string
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_total",
			Help:      "Recorded sequences by outcome.",
		}, []string{"outcome"}),
		levels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "levels_total",
			Help:      "Resolved levels by outcome.",
		}, []string{"outcome"}),
		gateBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_blocks_total",
			Help:      "Protection gate blocks by reason.",
		}, []string{"reason"}),
		verifierReject: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifier_rejects_total",
			Help:      "Signals rejected before staking, by check.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Broker reconnects by result.",
		}, []string{"result"}),
		profit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_profit",
			Help:      "Session profit.",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_balance",
			Help:      "Current balance derived from the ledger.",
		}),
		lossStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_losses",
			Help:      "Current losing streak.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orchestrator_state",
			Help:      "Orchestrator state indicator.",
		}, []string{"state"}),
	}
	r.registry.MustRegister(
		r.sequences, r.levels, r.gateBlocks, r.verifierReject, r.reconnects,
		r.profit, r.balance, r.lossStreak, r.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) StateChanged(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastState != "" {
		r.state.WithLabelValues(r.lastState).Set(0)
	}
	r.state.WithLabelValues(state).Set(1)
	r.lastState = state
}

func (r *Recorder) LevelResolved(outcome domain.Outcome) {
	r.levels.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) SequenceRecorded(seq *domain.Sequence, agg domain.SessionAggregates) {
	r.sequences.WithLabelValues(string(seq.Outcome)).Inc()
	r.profit.Set(agg.TotalProfit)
	r.balance.Set(agg.CurrentBalance)
	r.lossStreak.Set(float64(agg.ConsecutiveLosses))
}

func (r *Recorder) GateBlocked(reason domain.GateReason) {
	r.gateBlocks.WithLabelValues(string(reason)).Inc()
}

func (r *Recorder) SignalRejected(check string) {
	r.verifierReject.WithLabelValues(check).Inc()
}

func (r *Recorder) Reconnect(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	r.reconnects.WithLabelValues(result).Inc()
}
