package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/metage/metage/pkg/estimatorv1"
	"github.com/metage/metage/pkg/metabolic"
	"github.com/metage/metage/pkg/types"
	"github.com/metage/metage/server/internal/estimator"
)

// Server implements estimatorv1.EstimatorServer on top of the estimator
// service.
type Server struct {
	svc    estimator.Estimator
	logger *slog.Logger
}

// New creates a Server backed by svc. logger may be nil.
func New(svc estimator.Estimator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// Estimate is the unary RPC handler called by metage CLI instances.
// Authentication is enforced by the gRPC server interceptor before this is
// called. Invalid input maps to InvalidArgument with the user-facing message.
func (s *Server) Estimate(ctx context.Context, req *types.EstimateRequest) (*estimatorv1.EstimateReply, error) {
	res, err := s.svc.Estimate(ctx, estimator.TransportGRPC, req.Form().Input())
	if err != nil {
		if errors.Is(err, metabolic.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, metabolic.InvalidInputMessage)
		}
		s.logger.ErrorContext(ctx, "rpc: estimate failed", "err", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	reply := types.NewEstimateResponse(res)
	return &reply, nil
}
