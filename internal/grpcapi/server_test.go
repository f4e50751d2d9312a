package grpcapi_test

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
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/service"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/memory"
	"github.com/BrandonDHaskell/gatepass/internal/grpcapi"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	t.Helper()

	deps := service.Dependencies{
		Tokens:   memory.NewTokenStore(),
		Scans:    memory.NewScanLogStore(),
		Settings: service.Settings{Issuer: "GatePass", DefaultExpiryMinutes: 60, DefaultMaxScans: 2},
	}
	srv, _ := grpcapi.NewServer(grpcapi.Dependencies{
		Tokens:   service.NewTokenService(deps),
		Verifier: service.NewVerifyService(deps),
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGateService_IssueVerifyStatus(t *testing.T) {
	c := grpcapi.NewClient(newTestConn(t))
	ctx := context.Background()

	issued, err := c.Issue(ctx, mustStruct(t, map[string]any{
		"max_scans": 1,
		"metadata":  map[string]any{"full_name": "Ada"},
	}))
	require.NoError(t, err)
	id := issued.Fields["token_id"].GetStringValue()
	payload := issued.Fields["payload"].GetStringValue()
	require.NotEmpty(t, id)
	assert.Equal(t, "GatePass|"+id, payload)

	out, err := c.Verify(ctx, mustStruct(t, map[string]any{"payload": payload, "gate_id": "g1"}))
	require.NoError(t, err)
	assert.True(t, out.Fields["ok"].GetBoolValue())
	assert.Equal(t, "passive", out.Fields["status"].GetStringValue())
	assert.Equal(t, "Ada", out.Fields["hint"].GetStringValue())

	out, err = c.Verify(ctx, mustStruct(t, map[string]any{"payload": payload}))
	require.NoError(t, err)
	assert.False(t, out.Fields["ok"].GetBoolValue())
	assert.Equal(t, "passive", out.Fields["reason"].GetStringValue())

	st, err := c.GetStatus(ctx, mustStruct(t, map[string]any{"token_id": id}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.Fields["scan_count"].GetNumberValue())
}

func TestGateService_Deactivate(t *testing.T) {
	c := grpcapi.NewClient(newTestConn(t))
	ctx := context.Background()

	issued, err := c.Issue(ctx, mustStruct(t, map[string]any{"max_scans": 3}))
	require.NoError(t, err)
	id := issued.Fields["token_id"].GetStringValue()

	st, err := c.Deactivate(ctx, mustStruct(t, map[string]any{"token_id": id}))
	require.NoError(t, err)
	assert.Equal(t, "passive", st.Fields["status"].GetStringValue())
}

func TestGateService_ErrorCodes(t *testing.T) {
	c := grpcapi.NewClient(newTestConn(t))
	ctx := context.Background()

	_, err := c.Issue(ctx, mustStruct(t, map[string]any{"max_scans": 0}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.GetStatus(ctx, mustStruct(t, map[string]any{"token_id": "missing"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.Deactivate(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthService(t *testing.T) {
	hc := healthpb.NewHealthClient(newTestConn(t))

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcapi.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
