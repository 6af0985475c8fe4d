package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(reg *prometheus.Registry) (*gin.Engine, *PrometheusMiddleware) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger("/metrics").Handler())
	pm := NewPrometheusMiddleware("test", reg, "/api/world")
	r.Use(pm.Handler())
	pm.RegisterMetricsEndpoint(r)
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/fail", func(c *gin.Context) { c.String(http.StatusBadRequest, "no") })
	r.GET("/api/world/stats", func(c *gin.Context) { c.String(http.StatusOK, "{}") })
	r.PUT("/api/world/blocks", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/api/world/regenerate", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	return r, pm
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, pm := newRouter(reg)

	for _, path := range []string{"/ok", "/ok", "/fail", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "/fail", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.reqInflight))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_request_duration_seconds"))
}

func TestWorldMutationsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, pm := newRouter(reg)

	requests := []struct{ method, path string }{
		{http.MethodGet, "/api/world/stats"},
		{http.MethodPut, "/api/world/blocks"},
		{http.MethodPut, "/api/world/blocks"},
		{http.MethodPost, "/api/world/regenerate"},
	}
	for _, req := range requests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(req.method, req.path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.mutations.WithLabelValues("/api/world/blocks")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.mutations.WithLabelValues("/api/world/regenerate")), "неудачные запросы не считаются изменениями")
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.mutations.WithLabelValues("/api/world/stats")), "чтения не считаются изменениями")
}

func TestTraceIDStoredInContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())
	var fromCtx string
	r.GET("/traced", func(c *gin.Context) {
		fromCtx = c.GetString(TraceIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traced", nil))
	require.NotEmpty(t, fromCtx)
	assert.Equal(t, fromCtx, w.Header().Get(TraceIDHeader))
}
