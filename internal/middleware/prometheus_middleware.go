package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMiddleware считает HTTP-запросы API мира.
//
//	mw := middleware.NewPrometheusMiddleware("voxel_api", reg, "/api/world")
//	r.Use(mw.Handler())
//	mw.RegisterMetricsEndpoint(r)
//
// Метрики:
//   - http_request_duration_seconds{method,path,status}
//   - http_requests_inflight
//   - http_request_errors_total{method,path,status} для 4xx/5xx
//   - world_mutations_total{path} для успешных изменяющих запросов под worldPrefix
type PrometheusMiddleware struct {
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
	mutations   *prometheus.CounterVec

	worldPrefix string
	gatherer    prometheus.Gatherer
}

// NewPrometheusMiddleware создаёт middleware и регистрирует метрики в reg.
// reg == nil означает дефолтный регистр.
func NewPrometheusMiddleware(service string, reg *prometheus.Registry, worldPrefix string) *PrometheusMiddleware {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	pm := &PrometheusMiddleware{
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "path", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "http_requests_inflight",
			Help:      "Запросы в обработке.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "http_request_errors_total",
			Help:      "Запросы, завершившиеся ошибкой (4xx/5xx).",
		}, []string{"method", "path", "status"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "world_mutations_total",
			Help:      "Успешные изменяющие запросы к миру через API.",
		}, []string{"path"}),
		worldPrefix: worldPrefix,
		gatherer:    gatherer,
	}

	registerer.MustRegister(pm.reqDuration, pm.reqInflight, pm.reqErrors, pm.mutations)
	return pm
}

// Handler возвращает gin.HandlerFunc для router.Use()
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		pm.reqInflight.Inc()
		c.Next()
		pm.reqInflight.Dec()

		code := c.Writer.Status()
		status := strconv.Itoa(code)
		path := c.FullPath()
		if path == "" {
			// не-матченные маршруты в одну метку, чтобы не раздувать кардинальность
			path = "unmatched"
		}
		method := c.Request.Method

		pm.reqDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if code >= http.StatusBadRequest {
			pm.reqErrors.WithLabelValues(method, path, status).Inc()
			return
		}
		if method != http.MethodGet && method != http.MethodHead &&
			pm.worldPrefix != "" && strings.HasPrefix(path, pm.worldPrefix) {
			pm.mutations.WithLabelValues(path).Inc()
		}
	}
}

// RegisterMetricsEndpoint добавляет GET /metrics в указанный router
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(pm.gatherer, promhttp.HandlerOpts{})))
}
