// Package rpc implements the metage.v1.Estimator gRPC service declared in
// package estimatorv1.
//
// Server.Estimate converts the request to engine input, runs it through the
// estimator service with transport "grpc", and maps invalid input to
// codes.InvalidArgument. Authentication is enforced upstream by the gRPC
// server interceptor (see package auth).
package rpc
