package telemetry

import (
	"context"
	"time"

	"github.com/draftea/saga-engine/shared/saga"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SagaMetrics records orchestrator execution metrics through the OpenTelemetry
// meter. It satisfies saga.MetricsRecorder, so it is passed to the
// orchestrator as an explicit capability rather than reached through globals.
type SagaMetrics struct {
	sagasTotal    metric.Int64Counter
	sagaDuration  metric.Float64Histogram
	stepsTotal    metric.Int64Counter
	stepDuration  metric.Float64Histogram
	compensations metric.Int64Counter
}

// NewSagaMetrics registers the saga instruments on the given meter
func NewSagaMetrics(meter metric.Meter) (*SagaMetrics, error) {
	sagasTotal, err := meter.Int64Counter("saga_runs_total",
		metric.WithDescription("Total saga runs by terminal status"))
	if err != nil {
		return nil, err
	}

	sagaDuration, err := meter.Float64Histogram("saga_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of saga runs"))
	if err != nil {
		return nil, err
	}

	stepsTotal, err := meter.Int64Counter("saga_steps_total",
		metric.WithDescription("Total forward step executions"))
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram("saga_step_duration_seconds",
		metric.WithDescription("Duration of forward step executions, retries included"))
	if err != nil {
		return nil, err
	}

	compensations, err := meter.Int64Counter("saga_compensations_total",
		metric.WithDescription("Total compensation executions"))
	if err != nil {
		return nil, err
	}

	return &SagaMetrics{
		sagasTotal:    sagasTotal,
		sagaDuration:  sagaDuration,
		stepsTotal:    stepsTotal,
		stepDuration:  stepDuration,
		compensations: compensations,
	}, nil
}

// SagaFinished records one saga reaching a terminal status
func (m *SagaMetrics) SagaFinished(ctx context.Context, sagaType string, status saga.Status, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("saga_type", sagaType),
		attribute.String("status", string(status)),
	)
	m.sagasTotal.Add(ctx, 1, attrs)
	m.sagaDuration.Record(ctx, duration.Seconds(), attrs)
}

// StepExecuted records one forward step execution, retries included
func (m *SagaMetrics) StepExecuted(ctx context.Context, sagaType, step string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("saga_type", sagaType),
		attribute.String("step", step),
		attribute.Bool("success", success),
	)
	m.stepsTotal.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, duration.Seconds(), attrs)
}

// CompensationExecuted records one compensation execution
func (m *SagaMetrics) CompensationExecuted(ctx context.Context, sagaType, step string, success bool) {
	m.compensations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("saga_type", sagaType),
		attribute.String("step", step),
		attribute.Bool("success", success),
	))
}
