// Package telemetry builds the OpenTelemetry meter provider used by the
// transfer desks. When disabled it hands out a no-op provider so callers never
// branch on configuration.
package telemetry

import (
	"context"
	"fmt"

	"mybank/config"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// Provider owns the meter provider and its exporter.
type Provider struct {
	meterProvider metric.MeterProvider
	shutdown      func(context.Context) error
}

// New creates a Provider. With telemetry disabled the returned provider is a
// no-op and Shutdown does nothing. Otherwise metrics are pushed over OTLP/gRPC
// to cfg.Endpoint every cfg.ExportInterval and the provider is installed as the
// global one.
func New(ctx context.Context, cfg config.TelemetryConfig, version string, log zerolog.Logger) (*Provider, error) {
	if !cfg.Enabled {
		log.Warn().Msg("telemetry disabled, metrics are not exported")
		return &Provider{
			meterProvider: noop.NewMeterProvider(),
			shutdown:      func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.ExportInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource(cfg.ServiceName, version)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
	)
	otel.SetMeterProvider(mp)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Dur("interval", cfg.ExportInterval).
		Msg("telemetry enabled")

	return &Provider{
		meterProvider: mp,
		shutdown:      mp.Shutdown,
	}, nil
}

func newResource(serviceName, version string) *sdkresource.Resource {
	return sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		semconv.TelemetrySDKLanguageGo,
	)
}

// MeterProvider returns the provider instruments should be created from.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Shutdown flushes pending metrics and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
