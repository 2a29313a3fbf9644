// Package telemetry exposes the loop's OpenTelemetry metrics to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hupe1980/toolagent/logging"
)

// Prometheus bundles a meter provider and the handler that serves its
// metrics in the Prometheus text format.
type Prometheus struct {
	Provider *sdkmetric.MeterProvider
	Handler  http.Handler
}

// NewPrometheus creates a meter provider backed by a private registry.
func NewPrometheus() (*Prometheus, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	return &Prometheus{
		Provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Serve exposes /metrics on addr until the returned stop function is called.
func (p *Prometheus) Serve(addr string, logger logging.Logger) (stop func(context.Context) error, err error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics.serve.failed", "addr", addr, "error", err.Error())
		}
	}()
	logger.Info("metrics.serve.start", "addr", ln.Addr().String())

	return func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		return errors.Join(err, p.Provider.Shutdown(ctx))
	}, nil
}
