package scan

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/keypointsim/recorder/internal/scan"

type metrics struct {
	ticks     metric.Int64Counter
	captures  metric.Int64Counter
	skips     metric.Int64Counter
	advances  metric.Int64Counter
	recenters metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	if out.ticks, err = m.Int64Counter("scan.ticks",
		metric.WithDescription("Controller ticks processed")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if out.captures, err = m.Int64Counter("scan.captures",
		metric.WithDescription("Frames recorded and capture requests issued")); err != nil {
		return nil, fmt.Errorf("creating captures counter: %w", err)
	}
	if out.skips, err = m.Int64Counter("scan.skips",
		metric.WithDescription("Eligible ticks that did not produce a frame")); err != nil {
		return nil, fmt.Errorf("creating skips counter: %w", err)
	}
	if out.advances, err = m.Int64Counter("scan.scene.advances",
		metric.WithDescription("Scenes completed")); err != nil {
		return nil, fmt.Errorf("creating advances counter: %w", err)
	}
	if out.recenters, err = m.Int64Counter("scan.recenters",
		metric.WithDescription("Passes ended by recentering the camera")); err != nil {
		return nil, fmt.Errorf("creating recenters counter: %w", err)
	}
	return out, nil
}

func (m *metrics) skip(ctx context.Context, reason string) {
	m.skips.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
