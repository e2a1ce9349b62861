package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

var _ inventory.Recorder = (*Metrics)(nil)

// Metrics recolecta métricas Prometheus del libro y del borde HTTP.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	lockWait           prometheus.Histogram
	persistRetries     *prometheus.CounterVec
	degraded           *prometheus.GaugeVec
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics inicializa el registry y las métricas.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_submissions_total",
			Help: "Transacciones enviadas al libro por tipo y resultado.",
		}, []string{"kind", "outcome"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_submission_duration_seconds",
			Help:    "Duración de Submit, incluida la espera del lock y la persistencia.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_lock_wait_seconds",
			Help:    "Espera por el lock del par producto/bodega.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		}),
		persistRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_persist_retries_total",
			Help: "Reintentos de lectura/escritura de colecciones.",
		}, []string{"collection", "op"}),
		degraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_collection_degraded",
			Help: "1 si la colección arrancó en modo degradado.",
		}, []string{"collection"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Peticiones HTTP por ruta, método y código.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duración de peticiones HTTP por ruta.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	registry.MustRegister(
		m.submissions, m.submissionDuration, m.lockWait, m.persistRetries, m.degraded,
		m.requestsTotal, m.requestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler devuelve el http.Handler para /metrics.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Registerer expone el registry para métricas adicionales.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}

func (m *Metrics) ObserveSubmission(kind, outcome string, elapsed time.Duration) {
	m.submissions.WithLabelValues(kind, outcome).Inc()
	m.submissionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLockWait(elapsed time.Duration) {
	m.lockWait.Observe(elapsed.Seconds())
}

// PersistRetry se conecta al OnRetry de los adaptadores de persistencia.
func (m *Metrics) PersistRetry(collection, op string) {
	m.persistRetries.WithLabelValues(collection, op).Inc()
}

// SetCollectionDegraded publica el estado de carga de una colección.
func (m *Metrics) SetCollectionDegraded(collection string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1
	}
	m.degraded.WithLabelValues(collection).Set(v)
}

// FiberMiddleware mide cada petición por patrón de ruta (no por URL, para acotar cardinalidad).
func (m *Metrics) FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := "unknown"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		m.requestsTotal.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}
