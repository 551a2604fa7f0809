package grpcserver

import (
	"context"

	"acronym-restful/models"
	"acronym-restful/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	UserServiceName    = "acronyms.UserService"
	UserGetMethod      = "/" + UserServiceName + "/GetUser"
	UserListMethod     = "/" + UserServiceName + "/ListUsers"
	UserAcronymsMethod = "/" + UserServiceName + "/UserAcronyms"
)

// UserServiceServer exposes the public user directory.
type UserServiceServer interface {
	GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ListUsers(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	UserAcronyms(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error)
}

var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: UserServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: unary(UserGetMethod, newString, UserServiceServer.GetUser)},
		{MethodName: "ListUsers", Handler: unary(UserListMethod, newEmpty, UserServiceServer.ListUsers)},
		{MethodName: "UserAcronyms", Handler: unary(UserAcronymsMethod, newString, UserServiceServer.UserAcronyms)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "acronyms/user.proto",
}

// userServiceServer reuses the existing service logic.
type userServiceServer struct {
	userService services.UserService
	logger      *zap.Logger
}

func NewUserServiceServer(us services.UserService, logger *zap.Logger) UserServiceServer {
	return &userServiceServer{userService: us, logger: logger}
}

// publicUserStruct never carries the password hash.
func publicUserStruct(u *models.User) (*structpb.Struct, error) {
	return structpb.NewStruct(publicUserMap(u))
}

func publicUserMap(u *models.User) map[string]any {
	public := u.Public()
	m := map[string]any{
		"id":       public.ID.String(),
		"name":     public.Name,
		"username": public.Username,
	}
	if public.TwitterURL != nil {
		m["twitterURL"] = *public.TwitterURL
	}
	return m
}

func parseUserID(req *wrapperspb.StringValue) (uuid.UUID, error) {
	id, err := uuid.Parse(req.GetValue())
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid user id")
	}
	return id, nil
}

func (s *userServiceServer) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseUserID(req)
	if err != nil {
		return nil, err
	}
	user, err := s.userService.GetUser(ctx, id)
	if err != nil {
		return nil, toStatus(err, s.logger)
	}
	return publicUserStruct(user)
}

func (s *userServiceServer) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	users, err := s.userService.ListUsers(ctx)
	if err != nil {
		return nil, toStatus(err, s.logger)
	}
	values := make([]any, len(users))
	for i := range users {
		values[i] = publicUserMap(&users[i])
	}
	return structpb.NewList(values)
}

func (s *userServiceServer) UserAcronyms(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	id, err := parseUserID(req)
	if err != nil {
		return nil, err
	}
	acronyms, err := s.userService.UserAcronyms(ctx, id)
	if err != nil {
		return nil, toStatus(err, s.logger)
	}
	return acronymList(acronyms)
}
