package flow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hupe1980/toolagent/flow"

// loopMetrics holds the OpenTelemetry instruments recorded by the loop. A nil
// *loopMetrics records nothing.
type loopMetrics struct {
	modelCalls   metric.Int64Counter
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter
	toolDuration metric.Float64Histogram
}

func newLoopMetrics(mp metric.MeterProvider) (*loopMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	modelCalls, err := meter.Int64Counter(
		"toolagent.loop.model_calls",
		metric.WithDescription("Number of model submissions made by the loop"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model call counter: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"toolagent.loop.tool_calls",
		metric.WithDescription("Number of tool invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"toolagent.loop.tool_errors",
		metric.WithDescription("Number of tool invocations that produced an error result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool error counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"toolagent.tool.duration",
		metric.WithDescription("Tool execution latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	return &loopMetrics{
		modelCalls:   modelCalls,
		toolCalls:    toolCalls,
		toolErrors:   toolErrors,
		toolDuration: toolDuration,
	}, nil
}

func (m *loopMetrics) recordModelCall(ctx context.Context, provider, model string, err error) {
	if m == nil {
		return
	}
	m.modelCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model.provider", provider),
		attribute.String("model.name", model),
		attribute.Bool("error", err != nil),
	))
}

func (m *loopMetrics) recordTool(ctx context.Context, name string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool.name", name))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, float64(dur.Microseconds())/1000.0, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("error.code", errorCode(err)),
		))
	}
}
