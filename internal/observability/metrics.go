package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors on a private registry so several
// instances can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	Errors            *prometheus.CounterVec
	DemandaEvents     *prometheus.CounterVec
	SequenceFailures  prometheus.Counter
	ReportDuration    prometheus.Histogram
	ReportImages      *prometheus.CounterVec
	ReportsGenerated  prometheus.Counter
	ReportsNoDataHits prometheus.Counter
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demandas_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"route", "method", "code"}),
		DemandaEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_events_total",
			Help: "Demanda lifecycle events by type",
		}, []string{"event"}),
		SequenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "demandas_sequence_failures_total",
			Help: "Failed number allocations",
		}),
		ReportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "demandas_report_render_duration_seconds",
			Help:    "Duration of monthly report rendering",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ReportImages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_report_images_total",
			Help: "Images considered for reports by outcome",
		}, []string{"outcome"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "demandas_reports_generated_total",
			Help: "Reports rendered successfully",
		}),
		ReportsNoDataHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "demandas_reports_no_data_total",
			Help: "Report requests for periods without demandas",
		}),
	}
}

// RecordRequest observes one handled request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(route, method, code).Inc()
}

// RecordEvent counts a demanda lifecycle event.
func (m *Metrics) RecordEvent(event string) {
	if m == nil {
		return
	}
	m.DemandaEvents.WithLabelValues(event).Inc()
}

// IncrementSequenceFailure records an allocator error.
func (m *Metrics) IncrementSequenceFailure() {
	if m == nil {
		return
	}
	m.SequenceFailures.Inc()
}

// ObserveReport records the duration of a render.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReport(start time.Time) {
	if m == nil {
		return
	}
	m.ReportDuration.Observe(time.Since(start).Seconds())
}

// IncrementReportImage counts an image by outcome ("embedded" or "skipped").
func (m *Metrics) IncrementReportImage(outcome string) {
	if m == nil {
		return
	}
	m.ReportImages.WithLabelValues(outcome).Inc()
}

// IncrementReportGenerated records a delivered report.
func (m *Metrics) IncrementReportGenerated() {
	if m == nil {
		return
	}
	m.ReportsGenerated.Inc()
}

// IncrementReportNoData records a request for an empty period.
func (m *Metrics) IncrementReportNoData() {
	if m == nil {
		return
	}
	m.ReportsNoDataHits.Inc()
}
