package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notebooklm-mcp-server/internal/rpc"
)

// Outcome labels for RPC requests.
const (
	OutcomeOK           = "ok"
	OutcomeEmpty        = "empty"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebooklm_rpc_requests_total",
		Help: "RPC requests sent to NotebookLM grouped by logical method and outcome",
	}, []string{"method", "outcome"})

	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebooklm_rpc_duration_seconds",
		Help:    "Round-trip latency of NotebookLM RPC requests",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method"})

	researchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebooklm_research_duration_seconds",
		Help:    "End-to-end duration of research workflows",
		Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
	}, []string{"strategy", "outcome"})

	pollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notebooklm_poll_attempts",
		Help:    "Status checks needed before a research task settled",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 60},
	})
)

// Classify maps an exchange to its outcome label.
func Classify(ex rpc.Exchange) string {
	switch {
	case ex.StatusCode == 0 && ex.Err != nil:
		return OutcomeNetworkError
	case ex.StatusCode >= 400 || ex.Err != nil:
		return OutcomeHTTPError
	case !ex.Decoded:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}

// RPCObserver feeds transport exchanges into the RPC metrics.
type RPCObserver struct{}

func (RPCObserver) ObserveExchange(ex rpc.Exchange) {
	method := string(ex.Method)
	if method == "" {
		method = "unknown"
	}
	rpcRequests.WithLabelValues(method, Classify(ex)).Inc()
	rpcDuration.WithLabelValues(method).Observe(ex.Duration.Seconds())
}

// ObserveResearch records one finished research workflow.
func ObserveResearch(strategy, outcome string, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	researchDuration.WithLabelValues(strategy, outcome).Observe(duration.Seconds())
}

// ObservePollAttempts records how many status checks a task needed.
func ObservePollAttempts(n int) {
	pollAttempts.Observe(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
