package estimatorv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/metage/metage/pkg/types"
)

const (
	ServiceName    = "metage.v1.Estimator"
	EstimateMethod = "/" + ServiceName + "/Estimate"
)

// EstimateReply is the response message of Estimate. It has the same shape
// as the HTTP response body.
type EstimateReply = types.EstimateResponse

// EstimatorServer is the server API for the metage.v1.Estimator service.
type EstimatorServer interface {
	Estimate(ctx context.Context, req *types.EstimateRequest) (*EstimateReply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EstimatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Estimate", Handler: estimateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "metage/v1/estimator",
}

func estimateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(types.EstimateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EstimatorServer).Estimate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EstimateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EstimatorServer).Estimate(ctx, req.(*types.EstimateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Register attaches srv to s under metage.v1.Estimator.
func Register(s grpc.ServiceRegistrar, srv EstimatorServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Invoke calls metage.v1.Estimator/Estimate on cc using the JSON codec.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, req *types.EstimateRequest, opts ...grpc.CallOption) (*EstimateReply, error) {
	out := new(EstimateReply)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := cc.Invoke(ctx, EstimateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
