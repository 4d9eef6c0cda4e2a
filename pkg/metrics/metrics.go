package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transaction results.
const (
	ResultCommitted    = "committed"
	ResultInvalid      = "invalid"
	ResultPrecondition = "precondition_failed"
	ResultFailed       = "failed"
)

// Metrics holds the collectors exported by the ref store and the graph
// resolver. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transactions     *prometheus.CounterVec
	refEdits         prometheus.Counter
	mergeBaseQueries *prometheus.CounterVec
	walkSteps        prometheus.Histogram
}

// New creates an unregistered set of collectors.
func New() *Metrics {
	return &Metrics{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "refgraph",
				Subsystem: "refs",
				Name:      "transactions_total",
				Help:      "Total number of reference transactions by result",
			},
			[]string{"result"},
		),
		refEdits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "refgraph",
				Subsystem: "refs",
				Name:      "edits_committed_total",
				Help:      "Total number of reference edits made durable",
			},
		),
		mergeBaseQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "refgraph",
				Subsystem: "graph",
				Name:      "merge_base_queries_total",
				Help:      "Total number of merge-base queries by kind and result",
			},
			[]string{"kind", "result"},
		),
		walkSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "refgraph",
				Subsystem: "graph",
				Name:      "walk_steps",
				Help:      "Number of commits dequeued per graph traversal",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
	}
}

// Register registers all collectors with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.transactions, m.refEdits, m.mergeBaseQueries, m.walkSteps} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveTransaction records the outcome of one transaction.
func (m *Metrics) ObserveTransaction(result string, edits int) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(result).Inc()
	if result == ResultCommitted {
		m.refEdits.Add(float64(edits))
	}
}

// ObserveMergeBase records one merge-base query.
func (m *Metrics) ObserveMergeBase(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mergeBaseQueries.WithLabelValues(kind, result).Inc()
}

// ObserveWalk records how many commits one traversal dequeued.
func (m *Metrics) ObserveWalk(steps int) {
	if m == nil {
		return
	}
	m.walkSteps.Observe(float64(steps))
}

// Transactions exposes the transaction counter, mainly for tests.
func (m *Metrics) Transactions() *prometheus.CounterVec { return m.transactions }

// MergeBaseQueries exposes the merge-base query counter.
func (m *Metrics) MergeBaseQueries() *prometheus.CounterVec { return m.mergeBaseQueries }
