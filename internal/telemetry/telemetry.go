// Package telemetry exports sync and HTTP metrics in Prometheus format
// through the OpenTelemetry SDK.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported as service.name on every series.
const DefaultServiceName = "pharmadir"

// Provider owns the meter provider and the registry backing /metrics.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	handler http.Handler
}

// New builds a meter provider whose readings are served by Handler.
func New(ctx context.Context, serviceName, serviceVersion string) (*Provider, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: create resource")
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: create prometheus exporter")
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	return &Provider{
		mp:      mp,
		handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// MeterProvider returns the provider instruments are created from.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.mp
}

// Handler serves the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Shutdown flushes and releases the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return eris.Wrap(p.mp.Shutdown(ctx), "telemetry: shutdown")
}
