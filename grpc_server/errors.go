package grpcserver

import (
	"context"
	"errors"

	"acronym-restful/auth"
	"acronym-restful/services"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// toStatus maps service errors onto gRPC codes. Internal errors are logged
// and reported without detail.
func toStatus(err error, logger *zap.Logger) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case auth.IsAuthError(err):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, services.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// unary builds a grpc.MethodHandler for a hand-written service descriptor.
func unary[S any, Req, Resp proto.Message](fullMethod string, newReq func() Req, call func(S, context.Context, Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newUInt64() *wrapperspb.UInt64Value { return new(wrapperspb.UInt64Value) }
func newListValue() *structpb.ListValue { return new(structpb.ListValue) }
