package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors exported by emovec.
type Metrics struct {
	// Inference metrics
	InferenceRequests *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	InputSamples      prometheus.Histogram
	StageDuration     *prometheus.HistogramVec

	// API metrics
	APIRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InferenceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emovec_inference_requests_total",
			Help: "Total number of inference calls by outcome",
		}, []string{"outcome", "stage", "kind"}),
		InferenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emovec_inference_duration_seconds",
			Help:    "Latency of both engine invocations for successful inferences",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		InputSamples: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emovec_input_samples",
			Help:    "Number of audio samples per successful inference",
			Buckets: prometheus.ExponentialBuckets(1600, 2, 10), // 0.1s to ~51s at 16kHz
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emovec_stage_duration_seconds",
			Help:    "Latency of a single engine invocation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emovec_api_requests_total",
			Help: "Total number of API requests by transport and result",
		}, []string{"transport", "result"}),
	}
}
