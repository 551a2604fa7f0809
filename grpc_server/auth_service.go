package grpcserver

import (
	"context"

	"acronym-restful/auth"
	"acronym-restful/services"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AuthServiceName  = "acronyms.AuthService"
	AuthLoginMethod  = "/" + AuthServiceName + "/Login"
	AuthWhoAmIMethod = "/" + AuthServiceName + "/WhoAmI"
)

// AuthServiceServer exchanges credentials for bearer tokens.
type AuthServiceServer interface {
	// Login takes {username, password} and answers {token, user_id}.
	Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// WhoAmI answers the caller as a public user.
	WhoAmI(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unary(AuthLoginMethod, newStruct, AuthServiceServer.Login)},
		{MethodName: "WhoAmI", Handler: unary(AuthWhoAmIMethod, newEmpty, AuthServiceServer.WhoAmI)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "acronyms/auth.proto",
}

type authServiceServer struct {
	userService services.UserService
	logger      *zap.Logger
}

func NewAuthServiceServer(userService services.UserService, logger *zap.Logger) AuthServiceServer {
	return &authServiceServer{userService: userService, logger: logger}
}

func (s *authServiceServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := req.GetFields()["username"].GetStringValue()
	password := req.GetFields()["password"].GetStringValue()
	if username == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "username and password are required")
	}

	token, err := s.userService.Login(ctx, username, password)
	if err != nil {
		return nil, toStatus(err, s.logger)
	}
	return structpb.NewStruct(map[string]any{
		"token":   token.Value,
		"user_id": token.UserID.String(),
	})
}

func (s *authServiceServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return publicUserStruct(identity.User)
}
