// Package telemetry records inference metrics for logs and Prometheus.
package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekisa-team/emovec/internal/pipeline"
	"github.com/ekisa-team/emovec/internal/tensor"
)

// Recorder implements pipeline.Observer. It keeps cumulative counters for
// shutdown summaries and mirrors every event into Prometheus collectors.
type Recorder struct {
	log     *slog.Logger
	metrics *Metrics

	totalInferences atomic.Uint64
	totalFailures   atomic.Uint64
	totalSamples    atomic.Uint64
	totalLatency    atomic.Int64
	maxLatency      atomic.Int64
}

var _ pipeline.Observer = (*Recorder)(nil)

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalInferences uint64
	TotalFailures   uint64
	TotalSamples    uint64
	TotalLatency    time.Duration
	MaxLatency      time.Duration
}

// MeanLatency returns the average latency of successful inferences.
func (s Snapshot) MeanLatency() time.Duration {
	if s.TotalInferences == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.TotalInferences)
}

// NewRecorder constructs a Recorder whose collectors are registered with reg.
// A nil reg keeps the collectors private.
func NewRecorder(logger *slog.Logger, reg prometheus.Registerer) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Recorder{
		log:     logger.With("component", "telemetry.Recorder"),
		metrics: NewMetrics(reg),
	}
}

// Metrics returns the Prometheus collectors.
func (r *Recorder) Metrics() *Metrics {
	return r.metrics
}

// StageCompleted implements pipeline.Observer.
func (r *Recorder) StageCompleted(stage pipeline.Stage, elapsed time.Duration, output tensor.Shape) {
	r.metrics.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	r.log.Debug("Stage completed",
		"stage", stage,
		"elapsed_ms", elapsed.Milliseconds(),
		"output_shape", output.String(),
	)
}

// InferenceCompleted implements pipeline.Observer.
func (r *Recorder) InferenceCompleted(samples int, elapsed time.Duration, classes int) {
	r.totalInferences.Add(1)
	r.totalSamples.Add(uint64(samples))
	r.totalLatency.Add(int64(elapsed))
	for {
		current := r.maxLatency.Load()
		if int64(elapsed) <= current || r.maxLatency.CompareAndSwap(current, int64(elapsed)) {
			break
		}
	}

	r.metrics.InferenceRequests.WithLabelValues("success", "", "").Inc()
	r.metrics.InferenceDuration.Observe(elapsed.Seconds())
	r.metrics.InputSamples.Observe(float64(samples))

	r.log.Debug("Inference recorded",
		"samples", samples,
		"classes", classes,
		"latency_ms", elapsed.Milliseconds(),
	)
}

// InferenceFailed implements pipeline.Observer.
func (r *Recorder) InferenceFailed(err *pipeline.StageError) {
	r.totalFailures.Add(1)
	r.metrics.InferenceRequests.WithLabelValues("failure", string(err.Stage), string(err.Kind)).Inc()
}

// RecordRequest counts an API request.
func (r *Recorder) RecordRequest(transport string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.metrics.APIRequests.WithLabelValues(transport, result).Inc()
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalInferences: r.totalInferences.Load(),
		TotalFailures:   r.totalFailures.Load(),
		TotalSamples:    r.totalSamples.Load(),
		TotalLatency:    time.Duration(r.totalLatency.Load()),
		MaxLatency:      time.Duration(r.maxLatency.Load()),
	}
}

// LogSummary writes the totals at info level.
func (r *Recorder) LogSummary() {
	s := r.Snapshot()
	r.log.Info("Telemetry summary",
		"inferences", s.TotalInferences,
		"failures", s.TotalFailures,
		"samples", s.TotalSamples,
		"mean_latency_ms", s.MeanLatency().Milliseconds(),
		"max_latency_ms", s.MaxLatency.Milliseconds(),
	)
}
