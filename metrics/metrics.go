package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fallenleaves"

// Generation results.
const (
	ResultSuccess      = "success"
	ResultParseError   = "parse_error"
	ResultServiceError = "service_error"
	ResultMissingKey   = "missing_key"
	ResultStoreError   = "store_error"
)

var (
	entriesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_recorded_total",
		Help:      "Habit entries appended.",
	})
	goalCrossings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "insight_goal_crossings_total",
		Help:      "Active insights completed because progress reached the suggested goal.",
	})
	generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "insight_generations_total",
		Help:      "Insight generation attempts by result.",
	}, []string{"result"})
	completionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completion_requests_total",
		Help:      "HTTP calls to the completion service by response status.",
	}, []string{"status"})
	completionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completion_retries_total",
		Help:      "Completion calls retried after a rate-limit response.",
	})
	completionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "completion_request_duration_seconds",
		Help:      "Latency of single completion service calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	})
)

// EntryRecorded counts one appended entry.
func EntryRecorded() { entriesRecorded.Inc() }

// GoalCrossed counts one completed insight.
func GoalCrossed() { goalCrossings.Inc() }

// Generation counts one generation attempt with its result.
func Generation(result string) { generations.WithLabelValues(result).Inc() }

// CompletionRequest records one HTTP call to the completion service.
// status is 0 when no response was received.
func CompletionRequest(status int, seconds float64) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	completionRequests.WithLabelValues(label).Inc()
	completionLatency.Observe(seconds)
}

// CompletionRetry counts one rate-limit retry.
func CompletionRetry() { completionRetries.Inc() }

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
