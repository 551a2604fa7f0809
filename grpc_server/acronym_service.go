package grpcserver

import (
	"context"

	"acronym-restful/models"
	"acronym-restful/services"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	AcronymServiceName      = "acronyms.AcronymService"
	AcronymSearchMethod     = "/" + AcronymServiceName + "/Search"
	AcronymCategoriesMethod = "/" + AcronymServiceName + "/Categories"
)

// AcronymServiceServer is the read side of acronyms over gRPC.
type AcronymServiceServer interface {
	// Search answers the acronyms whose short or long form equals the term.
	Search(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error)
	// Categories answers the category names of one acronym.
	Categories(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.ListValue, error)
}

var AcronymServiceDesc = grpc.ServiceDesc{
	ServiceName: AcronymServiceName,
	HandlerType: (*AcronymServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: unary(AcronymSearchMethod, newString, AcronymServiceServer.Search)},
		{MethodName: "Categories", Handler: unary(AcronymCategoriesMethod, newUInt64, AcronymServiceServer.Categories)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "acronyms/acronym.proto",
}

type acronymServiceServer struct {
	acronymService services.AcronymService
	logger         *zap.Logger
}

func NewAcronymServiceServer(as services.AcronymService, logger *zap.Logger) AcronymServiceServer {
	return &acronymServiceServer{acronymService: as, logger: logger}
}

func acronymList(acronyms []models.Acronym) (*structpb.ListValue, error) {
	values := make([]any, len(acronyms))
	for i, a := range acronyms {
		values[i] = map[string]any{
			"id":     a.ID,
			"short":  a.Short,
			"long":   a.Long,
			"userID": a.UserID.String(),
		}
	}
	return structpb.NewList(values)
}

func (s *acronymServiceServer) Search(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	acronyms, err := s.acronymService.Search(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, s.logger)
	}
	return acronymList(acronyms)
}

func (s *acronymServiceServer) Categories(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.ListValue, error) {
	categories, err := s.acronymService.Categories(ctx, uint(req.GetValue()))
	if err != nil {
		return nil, toStatus(err, s.logger)
	}
	names := models.CategoryNames(categories)
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = name
	}
	return structpb.NewList(values)
}
