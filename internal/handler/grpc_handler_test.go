package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
)

func dialGRPC(t *testing.T, s *testServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(NewGRPCHandler(s.auth, s.users, logger.Nop()), s.jwt, logger.Nop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCValidateToken(t *testing.T) {
	s := newTestServer(t)
	token := s.onboard(t, "ada@example.com")
	conn := dialGRPC(t, s)

	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(t.Context(), ValidateTokenMethod, wrapperspb.String(token), out))
	fields := out.AsMap()
	assert.Equal(t, true, fields["valid"])
	assert.Equal(t, "ada@example.com", fields["email"])
	assert.Equal(t, "MANAGER", fields["role"])
	assert.NotEmpty(t, fields["user_id"])
	assert.NotEmpty(t, fields["expires_at"])

	out = new(structpb.Struct)
	require.NoError(t, conn.Invoke(t.Context(), ValidateTokenMethod, wrapperspb.String("garbage"), out))
	fields = out.AsMap()
	assert.Equal(t, false, fields["valid"])
	assert.Equal(t, "Invalid or expired token", fields["error"])
}

func TestGRPCGetUser(t *testing.T) {
	s := newTestServer(t)
	token := s.onboard(t, "ada@example.com")
	conn := dialGRPC(t, s)

	ada, err := s.store.GetByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)

	t.Run("requires token", func(t *testing.T) {
		err := conn.Invoke(t.Context(), GetUserMethod, wrapperspb.String(ada.ID), new(structpb.Struct))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("returns self", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(t.Context(), "authorization", "Bearer "+token)
		out := new(structpb.Struct)
		require.NoError(t, conn.Invoke(ctx, GetUserMethod, wrapperspb.String(ada.ID), out))
		assert.Equal(t, ada.ID, out.AsMap()["id"])
		assert.Equal(t, true, out.AsMap()["is_verified"])
		assert.NotContains(t, out.AsMap(), "password_hash")
	})

	t.Run("unknown user", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(t.Context(), "authorization", "Bearer "+token)
		err := conn.Invoke(ctx, GetUserMethod, wrapperspb.String("missing"), new(structpb.Struct))
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestGRPCHealth(t *testing.T) {
	s := newTestServer(t)
	conn := dialGRPC(t, s)

	resp, err := healthpb.NewHealthClient(conn).Check(t.Context(), &healthpb.HealthCheckRequest{Service: IdentityServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestCanViewUser(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "ada@example.com")
	ada, err := s.store.GetByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)

	claims, err := s.jwt.Verify(mustIssue(t, s, "someone", "MANAGER", ""))
	require.NoError(t, err)
	assert.False(t, canViewUser(claims, ada), "manager without company")

	claims, err = s.jwt.Verify(mustIssue(t, s, "someone", "MANAGER", *ada.CompanyID))
	require.NoError(t, err)
	assert.True(t, canViewUser(claims, ada), "manager of same company")

	claims, err = s.jwt.Verify(mustIssue(t, s, "someone", "USER", *ada.CompanyID))
	require.NoError(t, err)
	assert.False(t, canViewUser(claims, ada), "plain user")
}

func TestIdentityDescriptorRegistered(t *testing.T) {
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(protoreflect.FullName(IdentityServiceName))
	require.NoError(t, err)

	svc, ok := d.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	require.Equal(t, 2, svc.Methods().Len())
	for _, m := range identityServiceDesc.Methods {
		md := svc.Methods().ByName(protoreflect.Name(m.MethodName))
		require.NotNil(t, md, m.MethodName)
		assert.Equal(t, protoreflect.FullName("google.protobuf.StringValue"), md.Input().FullName())
		assert.Equal(t, protoreflect.FullName("google.protobuf.Struct"), md.Output().FullName())
	}
}

func TestGRPCReflectionDescribesIdentityService(t *testing.T) {
	s := newTestServer(t)
	conn := dialGRPC(t, s)

	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(t.Context())
	require.NoError(t, err)

	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: IdentityServiceName},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)

	files := resp.GetFileDescriptorResponse().GetFileDescriptorProto()
	require.NotEmpty(t, files, "reflection error: %v", resp.GetErrorResponse())

	var fdp descriptorpb.FileDescriptorProto
	require.NoError(t, proto.Unmarshal(files[0], &fdp))
	assert.Equal(t, identityProtoFile, fdp.GetName())
	require.Len(t, fdp.GetService(), 1)
	assert.Len(t, fdp.GetService()[0].GetMethod(), 2)
	require.NoError(t, stream.CloseSend())
}
