package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/service"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type Dependencies struct {
	Logger   *slog.Logger
	Tokens   *service.TokenService
	Verifier *service.VerifyService
}

type Service struct {
	logger   *slog.Logger
	tokens   *service.TokenService
	verifier *service.VerifyService
}

var _ GateServiceServer = (*Service)(nil)

// NewServer returns a grpc.Server with the GateService and the standard
// health service registered.
func NewServer(d Dependencies) (*grpc.Server, *health.Server) {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(d.Logger)))

	srv.RegisterService(&GateServiceDesc, &Service{
		logger:   d.Logger,
		tokens:   d.Tokens,
		verifier: d.Verifier,
	})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"dur", time.Since(start),
		)
		return resp, err
	}
}

func (s *Service) Issue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := issueRequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.tokens.Issue(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(resp)
}

// Verify returns OK for every decision; only a storage fault is an error.
func (s *Service) Verify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	d, err := s.verifier.Verify(ctx, types.VerifyRequest{
		Payload: f["payload"].GetStringValue(),
		GateID:  f["gate_id"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(d.Response())
}

func (s *Service) GetStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.tokens.Status(ctx, in.GetFields()["token_id"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(resp)
}

func (s *Service) Deactivate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.tokens.Deactivate(ctx, in.GetFields()["token_id"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(resp)
}

// issueRequestFromStruct decodes the Struct through its JSON form so the
// field rules match the HTTP API.
func issueRequestFromStruct(in *structpb.Struct) (types.IssueRequest, error) {
	var req types.IssueRequest
	if in == nil {
		return req, nil
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return req, err
	}
	err = json.Unmarshal(data, &req)
	return req, err
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidExpiry),
		errors.Is(err, service.ErrInvalidMaxScans),
		errors.Is(err, service.ErrInvalidMetadata),
		errors.Is(err, service.ErrInvalidTokenID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrTokenNotFound):
		return status.Error(codes.NotFound, "token not found")
	case errors.Is(err, service.ErrStorage):
		return status.Error(codes.Unavailable, "token store unavailable")
	default:
		return status.Error(codes.Internal, "unexpected server error")
	}
}
