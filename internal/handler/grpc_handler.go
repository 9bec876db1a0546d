package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/middleware"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/service"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

const (
	IdentityServiceName = "identity.v1.IdentityService"

	ValidateTokenMethod = "/" + IdentityServiceName + "/ValidateToken"
	GetUserMethod       = "/" + IdentityServiceName + "/GetUser"
)

// IdentityServiceServer is the service-to-service identity API. Messages are
// well-known protobuf types so no generated code is needed.
type IdentityServiceServer interface {
	ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateToken", Handler: validateTokenHandler},
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: identityProtoFile,
}

// RegisterIdentityServiceServer registers srv on s
func RegisterIdentityServiceServer(s grpc.ServiceRegistrar, srv IdentityServiceServer) {
	s.RegisterService(&identityServiceDesc, srv)
}

func validateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServiceServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServiceServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServiceServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetUserMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServiceServer).GetUser(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCHandler implements the gRPC Identity Service
type GRPCHandler struct {
	auth  *service.AuthService
	users *service.UserService
	log   *logger.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(auth *service.AuthService, users *service.UserService, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{auth: auth, users: users, log: log}
}

// ValidateToken reports whether a session token is valid. An invalid token is
// a normal answer, not an RPC error.
func (h *GRPCHandler) ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	claims, err := h.auth.ValidateToken(req.GetValue())
	if err != nil {
		return structpb.NewStruct(map[string]any{
			"valid": false,
			"error": errors.As(err).Message,
		})
	}

	return structpb.NewStruct(map[string]any{
		"valid":      true,
		"user_id":    claims.UserID(),
		"email":      claims.Email,
		"role":       claims.Role,
		"company_id": claims.CompanyID,
		"expires_at": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}

// GetUser returns an identity summary. The caller's bearer token is checked by
// the auth interceptor.
func (h *GRPCHandler) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Invalid or expired token")
	}

	details, err := h.users.GetUser(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if !canViewUser(claims, details.User) {
		return nil, status.Error(codes.PermissionDenied, "You do not have permission to access this resource")
	}

	return userToStruct(details.User)
}

func userToStruct(u *repository.User) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"name":        u.Name,
		"role":        string(u.Role),
		"is_verified": u.IsVerified,
		"created_at":  u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.CompanyID != nil {
		fields["company_id"] = *u.CompanyID
	}
	if u.LastLoginAt != nil {
		fields["last_login_at"] = u.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(fields)
}

var grpcCodeByApp = map[errors.Code]codes.Code{
	errors.ErrCodeNotFound:                 codes.NotFound,
	errors.ErrCodeValidation:               codes.InvalidArgument,
	errors.ErrCodeUnauthorized:             codes.Unauthenticated,
	errors.ErrCodeMissingOrMalformedHeader: codes.Unauthenticated,
	errors.ErrCodeForbidden:                codes.PermissionDenied,
}

// toStatus converts an application error to a gRPC status with its safe message
func toStatus(err error) error {
	appErr := errors.As(err)
	code, ok := grpcCodeByApp[appErr.Code]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, appErr.Message)
}
