package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_bot_messages_received_total",
		Help: "Total number of messages received",
	}, []string{"kind"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_bot_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_bot_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	verificationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_bot_verification_attempts_total",
		Help: "Total number of password verification attempts",
	}, []string{"result"})

	completionRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qa_bot_completion_request_duration_seconds",
		Help:    "Duration of completion requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	completionRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_bot_completion_requests_total",
		Help: "Total number of completion requests",
	}, []string{"status"})

	historyOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_bot_history_operations_total",
		Help: "Total number of history storage operations",
	}, []string{"operation", "status"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qa_bot_cache_hits_total",
		Help: "Total number of answer cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qa_bot_cache_misses_total",
		Help: "Total number of answer cache misses",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message or callback
func (m *Metrics) RecordMessageReceived(kind string) {
	messagesReceived.WithLabelValues(kind).Inc()
}

// RecordMessageProcessed records a processed message
func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

// RecordCommandExecuted records an executed command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordVerificationAttempt records a password check outcome
func (m *Metrics) RecordVerificationAttempt(result string) {
	verificationAttempts.WithLabelValues(result).Inc()
}

// RecordCompletionRequest records a completion request
func (m *Metrics) RecordCompletionRequest(status string, duration time.Duration) {
	completionRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
	completionRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHistoryOperation records a history storage operation
func (m *Metrics) RecordHistoryOperation(operation, status string) {
	historyOperations.WithLabelValues(operation, status).Inc()
}

// RecordCacheHit records an answer cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records an answer cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
