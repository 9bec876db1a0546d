package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/middleware"
)

// NewGRPCServer builds the gRPC server with the identity, health and reflection
// services registered. GetUser requires a bearer token in the call metadata.
func NewGRPCServer(h *GRPCHandler, verifier middleware.TokenVerifier, log *logger.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(middleware.UnaryAuthInterceptor(verifier, log, GetUserMethod)),
	)

	RegisterIdentityServiceServer(srv, h)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(IdentityServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	reflection.Register(srv)

	return srv, healthSrv
}
