package grpcserver

import (
	"context"
	"errors"

	reg "acronym-restful/registry"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	RegistryServiceName    = "acronyms.RegistryService"
	RegistryDiscoverMethod = "/" + RegistryServiceName + "/Discover"
	RegistryListMethod     = "/" + RegistryServiceName + "/List"
)

// RegistryServiceServer lets clients find peers without talking to Consul.
type RegistryServiceServer interface {
	// Discover answers the "host:port" of each healthy instance of a service.
	Discover(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error)
	// List answers service name to tags.
	List(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

var RegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: RegistryServiceName,
	HandlerType: (*RegistryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Discover", Handler: unary(RegistryDiscoverMethod, newString, RegistryServiceServer.Discover)},
		{MethodName: "List", Handler: unary(RegistryListMethod, newEmpty, RegistryServiceServer.List)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "acronyms/registry.proto",
}

type registryServiceServer struct {
	registry reg.ServiceRegistry
	logger   *zap.Logger
}

func NewRegistryServiceServer(r reg.ServiceRegistry, logger *zap.Logger) RegistryServiceServer {
	return &registryServiceServer{registry: r, logger: logger}
}

func (s *registryServiceServer) Discover(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "service name required")
	}

	addrs, err := s.registry.Discover(ctx, req.GetValue(), "")
	if errors.Is(err, reg.ErrNoInstances) {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	if err != nil {
		s.logger.Warn("Service discovery failed", zap.String("service_name", req.GetValue()), zap.Error(err))
		return nil, status.Errorf(codes.Unavailable, "error discovering service '%s'", req.GetValue())
	}

	values := make([]any, len(addrs))
	for i, addr := range addrs {
		values[i] = addr
	}
	return structpb.NewList(values)
}

func (s *registryServiceServer) List(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	services, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Warn("Listing services failed", zap.Error(err))
		return nil, status.Error(codes.Unavailable, "error listing services")
	}
	out := make(map[string]any, len(services))
	for name, tags := range services {
		values := make([]any, len(tags))
		for i, tag := range tags {
			values[i] = tag
		}
		out[name] = values
	}
	return structpb.NewStruct(out)
}
