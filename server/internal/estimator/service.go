package estimator

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/metage/metage/pkg/metabolic"
	"github.com/metage/metage/server/internal/metrics"
)

// Transport labels.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportGRPC = "grpc"
)

// Estimator computes metabolic age estimates for one transport. The HTTP,
// WebSocket and gRPC front ends depend on this rather than on *Service.
type Estimator interface {
	Estimate(ctx context.Context, transport string, in metabolic.Input) (metabolic.Result, error)
}

var _ Estimator = (*Service)(nil)

const tracerName = "github.com/metage/metage/server/internal/estimator"

// Service wraps metabolic.Estimate with logging, metrics and tracing.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New constructs a Service. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
	}
}

// Estimate computes the metabolic age for in. The returned error wraps
// metabolic.ErrInvalidInput when validation fails; there are no other errors.
func (s *Service) Estimate(ctx context.Context, transport string, in metabolic.Input) (metabolic.Result, error) {
	ctx, span := s.tracer.Start(ctx, "estimator.Estimate",
		trace.WithAttributes(
			attribute.String("metage.transport", transport),
			attribute.String("metage.activity", string(in.Activity)),
		))
	defer span.End()

	res, err := metabolic.Estimate(in)
	if err != nil {
		if errors.Is(err, metabolic.ErrInvalidInput) {
			s.metrics.ObserveEstimate(transport, metrics.OutcomeInvalidInput, "", 0)
			s.logger.InfoContext(ctx, "estimate rejected",
				"transport", transport,
				"reason", err.Error(),
			)
		}
		span.SetStatus(codes.Error, err.Error())
		return metabolic.Result{}, err
	}

	s.metrics.ObserveEstimate(transport, metrics.OutcomeOK, activityLabel(in.Activity), res.AgeDelta)
	span.SetAttributes(
		attribute.Int("metage.score", res.Score),
		attribute.Int("metage.age_delta", res.AgeDelta),
	)
	s.logger.DebugContext(ctx, "estimate computed",
		"transport", transport,
		"activity", in.Activity,
		"score", res.Score,
		"age_delta", res.AgeDelta,
		"metabolic_age", res.MetabolicAge,
	)
	return res, nil
}

// activityLabel bounds metric label cardinality: free-form activity strings
// collapse to "unknown".
func activityLabel(a metabolic.Activity) string {
	if a.Known() {
		return string(a)
	}
	return "unknown"
}
