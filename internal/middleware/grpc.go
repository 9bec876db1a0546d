package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
)

// UnaryAuthInterceptor requires a bearer token in the "authorization" metadata
// for the listed methods. Other methods pass through untouched.
func UnaryAuthInterceptor(verifier TokenVerifier, log *logger.Logger, protected ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]struct{}, len(protected))
	for _, m := range protected {
		guarded[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := guarded[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		claims, err := authorize(verifier, header)
		if err != nil {
			log.Debug().Str("method", info.FullMethod).Str("code", string(err.Code)).Msg("Call rejected")
			return nil, status.Error(codes.Unauthenticated, err.Message)
		}

		return handler(WithClaims(ctx, claims), req)
	}
}
