package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the acronym services over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithBearer attaches a bearer token to outgoing calls made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// Login returns the issued token and the id of its owner.
func (c *Client) Login(ctx context.Context, username, password string, opts ...grpc.CallOption) (token, userID string, err error) {
	req, err := structpb.NewStruct(map[string]any{"username": username, "password": password})
	if err != nil {
		return "", "", err
	}
	out := newStruct()
	if err := c.cc.Invoke(ctx, AuthLoginMethod, req, out, opts...); err != nil {
		return "", "", err
	}
	return out.GetFields()["token"].GetStringValue(), out.GetFields()["user_id"].GetStringValue(), nil
}

func (c *Client) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := newStruct()
	if err := c.cc.Invoke(ctx, AuthWhoAmIMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := newStruct()
	if err := c.cc.Invoke(ctx, UserGetMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return c.list(ctx, UserListMethod, &emptypb.Empty{}, opts)
}

func (c *Client) UserAcronyms(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return c.list(ctx, UserAcronymsMethod, wrapperspb.String(id), opts)
}

func (c *Client) Search(ctx context.Context, term string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return c.list(ctx, AcronymSearchMethod, wrapperspb.String(term), opts)
}

func (c *Client) Categories(ctx context.Context, acronymID uint, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return c.list(ctx, AcronymCategoriesMethod, wrapperspb.UInt64(uint64(acronymID)), opts)
}

func (c *Client) Discover(ctx context.Context, service string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return c.list(ctx, RegistryDiscoverMethod, wrapperspb.String(service), opts)
}

func (c *Client) list(ctx context.Context, method string, req any, opts []grpc.CallOption) (*structpb.ListValue, error) {
	out := newListValue()
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
