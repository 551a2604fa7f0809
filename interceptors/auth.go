package interceptors

import (
	"context"
	"net/http"

	"acronym-restful/auth"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HeaderFromMetadata copies the credential-bearing metadata keys into an
// http.Header so that gRPC calls go through the same Authenticator as HTTP.
func HeaderFromMetadata(md metadata.MD) http.Header {
	h := http.Header{}
	for _, v := range md.Get("authorization") {
		h.Add("Authorization", v)
	}
	for _, v := range md.Get("cookie") {
		h.Add("Cookie", v)
	}
	return h
}

// AuthFunc resolves the caller from incoming metadata and stores the
// identity in the context. Failures never say which credential was wrong.
func AuthFunc(authenticator *auth.Authenticator, logger *zap.Logger) grpcauth.AuthFunc {
	return func(ctx context.Context) (context.Context, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		creds := authenticator.Credentials(HeaderFromMetadata(md))
		identity, err := authenticator.RequireIdentity(ctx, creds)
		if err != nil {
			if auth.IsAuthError(err) {
				return nil, status.Error(codes.Unauthenticated, "unauthenticated")
			}
			logger.Error("Identity resolution failed", zap.Error(err))
			return nil, status.Error(codes.Internal, "internal error")
		}
		return auth.WithIdentity(ctx, identity), nil
	}
}

// AuthInterceptor authenticates every unary call except publicMethods,
// which are full method names such as "/acronyms.AuthService/Login".
func AuthInterceptor(authenticator *auth.Authenticator, logger *zap.Logger, publicMethods ...string) grpc.UnaryServerInterceptor {
	public := make(map[string]bool, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = true
	}
	return selector.UnaryServerInterceptor(
		grpcauth.UnaryServerInterceptor(AuthFunc(authenticator, logger.Named("grpc_auth"))),
		selector.MatchFunc(func(_ context.Context, callMeta interceptors.CallMeta) bool {
			return !public[callMeta.FullMethod()]
		}),
	)
}
