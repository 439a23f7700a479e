package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DiagnosticsServer exposes health, readiness, and Prometheus metrics
// endpoints over HTTP for operational monitoring of a run, independent of
// the run's primary OTLP telemetry pipeline (which may be disabled
// entirely for a plain CLI invocation).
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer starts an HTTP server at addr with /healthz, /readyz,
// and /metrics endpoints. Go runtime scheduler metrics and RED (rate,
// error, duration) metrics for the diagnostics server's own requests are
// registered against the Prometheus-backed meter PrometheusHandler builds,
// so they scrape even when --otlp-endpoint is unset. Every request is
// traced and logged via HTTPMiddleware using tracer and logger.
func NewDiagnosticsServer(addr string, tracer trace.Tracer, logger *slog.Logger) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler())

	metricsHandler, meter, err := PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	if _, err := NewSchedulerMetrics(meter); err != nil {
		return nil, fmt.Errorf("register scheduler metrics: %w", err)
	}

	redMetrics, err := NewREDMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("register diagnostics red metrics: %w", err)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	handler := HTTPMiddleware(tracer, logger, withREDMetrics(redMetrics, mux))

	srv := &http.Server{Handler: handler}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener}, nil
}

// withREDMetrics records rate/error/duration metrics for every request the
// diagnostics server handles, keyed by request path.
func withREDMetrics(rm *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		done := rm.TrackInflight(hr.Context(), hr.URL.Path)
		defer done()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: rw}

		next.ServeHTTP(sw, hr)

		status := "ok"
		if sw.statusCode >= httpStatusServerError {
			status = statusError
		}

		rm.RecordRequest(hr.Context(), hr.URL.Path, status, time.Since(start))
	})
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
