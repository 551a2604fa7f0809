package grpcserver

import (
	"acronym-restful/auth"
	"acronym-restful/interceptors"
	"acronym-restful/registry"
	"acronym-restful/services"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Deps are the collaborators of the gRPC server. Registry is optional.
type Deps struct {
	Users         services.UserService
	Acronyms      services.AcronymService
	Authenticator *auth.Authenticator
	Registry      registry.ServiceRegistry
}

// PublicMethods skip authentication. Everything else needs a bearer token
// or session cookie in the metadata.
var PublicMethods = []string{
	AuthLoginMethod,
	UserGetMethod,
	UserListMethod,
	UserAcronymsMethod,
	AcronymSearchMethod,
	AcronymCategoriesMethod,
	RegistryDiscoverMethod,
	RegistryListMethod,
	healthpb.Health_Check_FullMethodName,
}

// NewServer builds the gRPC server with every service registered. The
// returned health server starts out SERVING; flip it on shutdown.
func NewServer(deps Deps, logger *zap.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	logger = logger.Named("grpc")
	opts = append(opts, grpc.ChainUnaryInterceptor(
		interceptors.RecoveryInterceptor(logger),
		interceptors.ZapLoggingInterceptor(logger),
		interceptors.AuthInterceptor(deps.Authenticator, logger, PublicMethods...),
	))
	s := grpc.NewServer(opts...)

	s.RegisterService(&AuthServiceDesc, NewAuthServiceServer(deps.Users, logger))
	s.RegisterService(&UserServiceDesc, NewUserServiceServer(deps.Users, logger))
	s.RegisterService(&AcronymServiceDesc, NewAcronymServiceServer(deps.Acronyms, logger))
	if deps.Registry != nil {
		s.RegisterService(&RegistryServiceDesc, NewRegistryServiceServer(deps.Registry, logger))
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	return s, healthServer
}
