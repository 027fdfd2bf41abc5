package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/platform/envutil"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

// Metrics owns a private registry so tests can build as many as they like.
// Every method is nil-safe; a nil *Metrics means metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	apiInflight    prometheus.Gauge
	genRequests    *prometheus.CounterVec
	genLatency     *prometheus.HistogramVec
	genTokens      *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobLatency     *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
	planTransition *prometheus.CounterVec
	notifications  *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide instance when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			return
		}
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("Prometheus metrics enabled")
		}
	})
	return instance
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peai_api_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peai_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "peai_api_inflight_requests",
			Help: "HTTP requests currently being served",
		}),
		genRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peai_generation_requests_total",
			Help: "Generative backend calls by kind, provider and outcome",
		}, []string{"kind", "provider", "outcome"}),
		genLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peai_generation_duration_seconds",
			Help:    "Generative backend call latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"kind", "provider"}),
		genTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peai_generation_tokens_total",
			Help: "Estimated prompt and completion tokens",
		}, []string{"provider", "type"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peai_job_runs_total",
			Help: "Finished job runs by type and status",
		}, []string{"job_type", "status"}),
		jobLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peai_job_duration_seconds",
			Help:    "Job run latency",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job_type"}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "peai_job_queue_depth",
			Help: "Job rows by status",
		}, []string{"status"}),
		planTransition: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peai_plan_transitions_total",
			Help: "PEI status transitions by target status",
		}, []string{"to"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peai_notifications_total",
			Help: "Composed notifications by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveGeneration records one generative backend call. kind is "plan" or
// "adaptation"; outcome is "ok", "error" or "timeout".
func (m *Metrics) ObserveGeneration(kind, provider, outcome string, dur time.Duration, promptTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.genRequests.WithLabelValues(kind, provider, outcome).Inc()
	m.genLatency.WithLabelValues(kind, provider).Observe(dur.Seconds())
	if promptTokens > 0 {
		m.genTokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if outputTokens > 0 {
		m.genTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(jobType, status).Inc()
	m.jobLatency.WithLabelValues(jobType).Observe(dur.Seconds())
}

func (m *Metrics) IncPlanTransition(to string) {
	if m == nil {
		return
	}
	m.planTransition.WithLabelValues(to).Inc()
}

func (m *Metrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// StartJobQueueCollector refreshes peai_job_queue_depth until ctx is done.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{"queued", "running", "succeeded", "failed", "canceled"}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectQueueDepth(ctx, log, db, statuses)
			}
		}
	}()
}

func (m *Metrics) collectQueueDepth(ctx context.Context, log *logger.Logger, db *gorm.DB, statuses []string) {
	for _, s := range statuses {
		m.queueDepth.WithLabelValues(s).Set(0)
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		if log != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
		}
		return
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.WithLabelValues(status).Set(float64(row.Count))
	}
}
