package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/progression-engine/internal/api"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region server-struct

// Server adapts an api.Engine to ProgressionServer.
type Server struct {
	engine api.Engine
	logger *slog.Logger
}

// NewServer returns a Server over engine.
func NewServer(engine api.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// NewGRPCServer builds a grpc.Server with srv registered and request
// logging installed.
func NewGRPCServer(srv ProgressionServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryLogger(logger)))
	s := grpc.NewServer(opts...)
	RegisterProgressionServer(s, srv)
	return s
}

// #endregion server-struct

// #region handlers

// AwardXP commits one award.
func (s *Server) AwardXP(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.AwardRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode award: %v", err)
	}
	res, err := s.engine.Award(ctx, req.ToEngine())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(api.FromAward(res))
}

// GetState returns a user's snapshot.
func (s *Server) GetState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := userRequest(in)
	if err != nil {
		return nil, err
	}
	snap, err := s.engine.State(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(api.FromSnapshot(snap))
}

// ListLedger returns a user's recent ledger entries.
func (s *Server) ListLedger(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := userRequest(in)
	if err != nil {
		return nil, err
	}
	entries, err := s.engine.Ledger(ctx, req.UserID, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(api.FromEntries(req.UserID, entries))
}

// Reconcile reports ledger drift for a user.
func (s *Server) Reconcile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := userRequest(in)
	if err != nil {
		return nil, err
	}
	rec, err := s.engine.Reconcile(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(api.FromReconciliation(rec))
}

func userRequest(in *structpb.Struct) (api.UserRequest, error) {
	var req api.UserRequest
	if err := fromStruct(in, &req); err != nil {
		return req, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return req, status.Error(codes.InvalidArgument, "user_id is required")
	}
	return req, nil
}

// #endregion handlers

// #region errors

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, state.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, orchestrator.ErrTransient):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion errors

// #region interceptor

// UnaryLogger logs each call's method, code and latency.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelDebug
		if code != codes.OK && code != codes.InvalidArgument && code != codes.NotFound {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "rpc", "method", info.FullMethod, "code", code.String(),
			"elapsed", time.Since(start))
		return resp, err
	}
}

// #endregion interceptor

// #region struct-codec

// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	return json.Unmarshal(b, v)
}

// #endregion struct-codec
