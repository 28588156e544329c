package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/contentbuddy/contentbuddy/internal/export"
)

const meterName = "github.com/contentbuddy/contentbuddy/internal/api"

type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(exports *export.Service) (*instruments, error) {
	meter := otel.Meter(meterName)
	requests, err := meter.Int64Counter("contentbuddy.generate.requests",
		metric.WithDescription("Vendor generation calls by kind and outcome."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("contentbuddy.generate.duration_ms",
		metric.WithDescription("Vendor generation latency."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	if exports != nil {
		_, err = meter.Int64ObservableGauge("contentbuddy.export.jobs_active",
			metric.WithDescription("Export jobs submitted and not yet finished."),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(exports.ActiveJobs()))
				return nil
			}))
		if err != nil {
			return nil, err
		}
	}
	return &instruments{requests: requests, duration: duration}, nil
}

func (m *instruments) record(ctx context.Context, kind, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}
