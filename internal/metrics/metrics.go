package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - коллекторы Prometheus, общие для всего сервиса
type Metrics struct {
	JobsProcessed   *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	CreditsCharged  *prometheus.CounterVec
	CreditsRejected prometheus.Counter
	OTPIssued       *prometheus.CounterVec
	OpenAIRequests  *prometheus.CounterVec
	OpenAILatency   *prometheus.HistogramVec
	Errors          *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry создает и регистрирует синглтон метрик.
// Повторные вызовы возвращают тот же экземпляр.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_processed_total",
				Help:      "Total generation jobs processed by file type and outcome.",
			}, []string{"file_type", "status"}),
			JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_processing_duration_seconds",
				Help:      "Latency distribution for generation jobs.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			}, []string{"file_type"}),
			CreditsCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_charged_total",
				Help:      "Total credits charged by action.",
			}, []string{"action"}),
			CreditsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_rejected_total",
				Help:      "Total generation attempts rejected by the daily credit limit.",
			}),
			OTPIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "otp_issued_total",
				Help:      "Total one-time codes issued by type.",
			}, []string{"type"}),
			OpenAIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "openai_requests_total",
				Help:      "Total OpenAI API requests by operation and outcome.",
			}, []string{"operation", "status"}),
			OpenAILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "openai_request_duration_seconds",
				Help:      "Latency distribution for OpenAI API calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.JobsProcessed,
			metricsInstance.JobDuration,
			metricsInstance.CreditsCharged,
			metricsInstance.CreditsRejected,
			metricsInstance.OTPIssued,
			metricsInstance.OpenAIRequests,
			metricsInstance.OpenAILatency,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
