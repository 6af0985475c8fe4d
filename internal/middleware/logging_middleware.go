package middleware

import (
	"net/http"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDKey ключ trace-ID в gin.Context и заголовок ответа
const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-Id"
)

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
// Изменяющие мир запросы пишутся на INFO, чтения на DEBUG,
// опрашиваемые пути (health, metrics) на TRACE.
type RequestLogger struct {
	log   *logging.Logger
	quiet map[string]struct{}
}

// NewRequestLogger создаёт логгер запросов; quiet перечисляет пути, которые опрашивают постоянно
func NewRequestLogger(quiet ...string) *RequestLogger {
	rl := &RequestLogger{log: logging.GetServerLogger(), quiet: make(map[string]struct{}, len(quiet))}
	for _, p := range quiet {
		rl.quiet[p] = struct{}{}
	}
	return rl
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := requestTraceID(c)
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		start := time.Now()
		c.Next()

		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		switch {
		case status >= http.StatusInternalServerError:
			rl.log.Warn("[HTTP] %s %s %d %s trace=%s errors=%v", method, path, status, elapsed, traceID, c.Errors.ByType(gin.ErrorTypeAny))
		case rl.isQuiet(path):
			rl.log.Trace("[HTTP] %s %s %d %s", method, path, status, elapsed)
		case method == http.MethodGet || method == http.MethodHead:
			rl.log.Debug("[HTTP] %s %s %d %s ip=%s trace=%s", method, path, status, elapsed, c.ClientIP(), traceID)
		default:
			rl.log.Info("🧱 [HTTP] %s %s %d %s ip=%s trace=%s", method, path, status, elapsed, c.ClientIP(), traceID)
		}
	}
}

func (rl *RequestLogger) isQuiet(path string) bool {
	_, ok := rl.quiet[path]
	return ok
}

// requestTraceID берёт trace-ID из спана otelgin, иначе генерирует свой
func requestTraceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
