package server

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/triage-ai/palisade-rasp/internal/auth"
	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// RaspServer implements rasp.v1.DetectionService.
type RaspServer struct {
	checker *Checker
	auth    auth.Authenticator
	logger  *zap.Logger
}

// NewRaspServer creates a new RaspServer with the given dependencies.
func NewRaspServer(checker *Checker, authenticator auth.Authenticator, logger *zap.Logger) *RaspServer {
	return &RaspServer{
		checker: checker,
		auth:    authenticator,
		logger:  logger,
	}
}

// Check implements the DetectionService.Check RPC.
func (s *RaspServer) Check(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	app, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var req CheckRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid check request: %v", err)
	}

	result, err := s.checker.Check(app, &req, SourceGRPC)
	if errors.Is(err, ErrUnknownHook) {
		return nil, status.Errorf(codes.InvalidArgument, "unknown hook %q", req.Hook)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "check failed: %v", err)
	}

	out, err := encodeStruct(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

// ExportConfig implements the DetectionService.ExportConfig RPC.
func (s *RaspServer) ExportConfig(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	app, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	exported, err := s.checker.ExportConfig(app)
	if errors.Is(err, ErrNotExporting) {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "export config: %v", err)
	}

	out := &structpb.Struct{}
	if err := protojson.Unmarshal(exported, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode config: %v", err)
	}
	return out, nil
}

func (s *RaspServer) authenticate(ctx context.Context) (*auth.AppContext, error) {
	creds, err := auth.FromMetadata(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "auth failed: %v", err)
	}
	app, err := s.auth.Authenticate(ctx, creds)
	if err != nil {
		s.logger.Debug("auth failed", zap.String("app_id", creds.AppID), zap.Error(err))
		return nil, status.Errorf(authCode(err), "auth failed: %v", err)
	}
	return app, nil
}

// authCode maps auth errors to gRPC codes.
func authCode(err error) codes.Code {
	switch {
	case errors.Is(err, auth.ErrAuthUnavailable):
		return codes.Unavailable
	case errors.Is(err, engine.ErrUnknownApp):
		return codes.PermissionDenied
	default:
		return codes.Unauthenticated
	}
}

// decodeStruct converts a protobuf Struct into a Go value via its JSON form.
func decodeStruct(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// encodeStruct converts a Go value into a protobuf Struct via its JSON form.
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
