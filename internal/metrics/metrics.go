package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/adityak74/weatherweave/internal/core/services"
)

// Metrics bundles the prometheus collectors for the pipeline and the API.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSec     *prometheus.HistogramVec
	GenerationSec      *prometheus.HistogramVec
	StrategyFailures   *prometheus.CounterVec
	WeatherFetches     *prometheus.CounterVec
	HistorySize        prometheus.Gauge
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	RateLimitDropped   prometheus.Counter
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherweave_pipeline_runs_total",
			Help: "Total number of pipeline runs by trigger and status.",
		}, []string{"trigger", "status"}),
		RunDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weatherweave_pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		GenerationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weatherweave_generation_duration_seconds",
			Help:    "Duration of each render strategy attempt in seconds.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"strategy", "result"}),
		StrategyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherweave_strategy_failures_total",
			Help: "Total number of failed render attempts by strategy and reason.",
		}, []string{"strategy", "reason"}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherweave_weather_fetches_total",
			Help: "Total number of upstream weather fetches by result.",
		}, []string{"result"}),
		HistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weatherweave_history_size",
			Help: "Number of wallpapers currently kept in history.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherweave_http_requests_total",
			Help: "Total number of API requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weatherweave_http_request_duration_seconds",
			Help:    "API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherweave_http_ratelimit_dropped_total",
			Help: "Total number of generate requests rejected by the rate limiter.",
		}),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDurationSec,
		m.GenerationSec,
		m.StrategyFailures,
		m.WeatherFetches,
		m.HistorySize,
		m.RequestsTotal,
		m.RequestDurationSec,
		m.RateLimitDropped,
	)

	return m
}

// ObserveRun implements services.RunObserver.
func (m *Metrics) ObserveRun(trigger domain.RunTrigger, status domain.RunStatus, d time.Duration) {
	m.RunsTotal.WithLabelValues(string(trigger), string(status)).Inc()
	m.RunDurationSec.WithLabelValues(string(status)).Observe(d.Seconds())
}

// ObserveAttempt is registered with GenerationOrchestrator.Observe.
func (m *Metrics) ObserveAttempt(a services.Attempt) {
	result := "ok"
	if a.Err != nil {
		result = "error"
		m.StrategyFailures.WithLabelValues(a.Strategy, FailureReason(a.Err)).Inc()
	}
	m.GenerationSec.WithLabelValues(a.Strategy, result).Observe(a.Duration.Seconds())
}

// ObserveWeatherFetch is registered with WeatherCache.OnFetch.
func (m *Metrics) ObserveWeatherFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.WeatherFetches.WithLabelValues(result).Inc()
}

// SetHistorySize is registered with ArtifactStore.OnChange.
func (m *Metrics) SetHistorySize(n int) {
	m.HistorySize.Set(float64(n))
}

// FailureReason buckets a strategy error into a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrArtifactNotProduced):
		return "no_artifact"
	case errors.Is(err, domain.ErrGenerationWorkerFailed):
		return "worker_failed"
	default:
		return "error"
	}
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute collapses ids so label cardinality stays bounded.
func normalizeRoute(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		if path == "/metrics" {
			return path
		}
		return "other"
	}
	switch parts[1] {
	case "wallpapers", "runs":
		if len(parts) >= 3 && parts[2] != "current" && parts[2] != "prune" {
			parts[2] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps streaming behavior for the SSE endpoint.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
