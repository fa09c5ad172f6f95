package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

const tracerName = "github.com/ahrav/go-reelscout/pipeline"

var _ StageObserver = (*OTelStageObserver)(nil)

// OTelStageObserver opens a span per stage, records latency and outcome
// metrics, and logs the stage result.
type OTelStageObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
	logger  zerolog.Logger
}

// NewOTelStageObserver creates an observer. A nil tracer uses the global
// provider; a nil metrics collector disables metrics.
func NewOTelStageObserver(tracer trace.Tracer, metrics ports.MetricsCollector, logger zerolog.Logger) *OTelStageObserver {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &OTelStageObserver{tracer: tracer, metrics: metrics, logger: logger}
}

// Start implements StageObserver.
func (o *OTelStageObserver) Start(
	ctx context.Context,
	stage string,
	state domain.State,
) (context.Context, func(time.Duration, error)) {
	attrs := []attribute.KeyValue{attribute.String("pipeline.stage", stage)}
	logger := o.logger.With().Str("stage", stage).Logger()
	if rc, ok := state.RunContext(); ok {
		attrs = append(attrs, attribute.String("pipeline.run_id", rc.RunID))
		logger = logger.With().Str("run_id", rc.RunID).Logger()
	}

	ctx, span := o.tracer.Start(ctx, "pipeline."+stage, trace.WithAttributes(attrs...))

	return ctx, func(elapsed time.Duration, err error) {
		defer span.End()

		status := "success"
		if err != nil {
			status = "error"
			var pe *PanicError
			if errors.As(err, &pe) {
				status = "panic"
				span.AddEvent("stage.panic", trace.WithAttributes(
					attribute.String("panic.value", errString(pe.Value)),
				))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Dur("elapsed", elapsed).Msg("stage failed")
		} else {
			span.SetStatus(codes.Ok, "")
			logger.Debug().Dur("elapsed", elapsed).Msg("stage completed")
		}

		if o.metrics != nil {
			labels := map[string]string{"stage": stage, "status": status}
			o.metrics.RecordLatency(MetricStageLatency, elapsed, labels)
			o.metrics.RecordCounter(MetricStageTotal, 1, labels)
		}
	}
}

func errString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
