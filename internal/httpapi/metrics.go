package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpRequestDuration metric.Float64Histogram
	httpRequestTotal    metric.Int64Counter
	httpRequestActive   metric.Int64UpDownCounter
	metricsOnce         sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("mcp-pdf-overlay")

		var err error
		httpRequestDuration, err = meter.Float64Histogram(
			"pdf_overlay.http.request.duration.seconds",
			metric.WithDescription("Duration of HTTP requests"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
		)
		if err != nil {
			panic(err)
		}

		httpRequestTotal, err = meter.Int64Counter(
			"pdf_overlay.http.requests.total",
			metric.WithDescription("Total number of HTTP requests"),
		)
		if err != nil {
			panic(err)
		}

		httpRequestActive, err = meter.Int64UpDownCounter(
			"pdf_overlay.http.requests.active",
			metric.WithDescription("Number of HTTP requests currently being processed"),
		)
		if err != nil {
			panic(err)
		}
	})
}

// MetricsMiddleware records request duration, totals and in-flight requests
func MetricsMiddleware() func(http.Handler) http.Handler {
	initMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := normalizeEndpoint(r.URL.Path)
			inFlight := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.endpoint", endpoint),
			)

			httpRequestActive.Add(r.Context(), 1, inFlight)
			defer httpRequestActive.Add(r.Context(), -1, inFlight)

			wrapped := &statusCodeResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.endpoint", endpoint),
				attribute.Int("http.status_code", wrapped.statusCode),
			)
			httpRequestDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
			httpRequestTotal.Add(r.Context(), 1, attrs)
		})
	}
}

// statusCodeResponseWriter remembers the status and keeps streaming
// (Flush) and hijacking available to the wrapped handler
type statusCodeResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCodeResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCodeResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusCodeResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
}

func (w *statusCodeResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// normalizeEndpoint keeps metric cardinality bounded: MCP session paths
// collapse onto their prefix
func normalizeEndpoint(path string) string {
	if path == "" || path == "/" {
		return "root"
	}
	if strings.HasPrefix(path, "/mcp/") {
		return "/mcp"
	}
	return path
}
