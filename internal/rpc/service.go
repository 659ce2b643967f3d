// Package rpc exposes the engine over gRPC.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated stubs; field names match the JSON used by the HTTP API.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region names

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "progression.v1.Progression"

const (
	methodAwardXP    = "/" + ServiceName + "/AwardXP"
	methodGetState   = "/" + ServiceName + "/GetState"
	methodListLedger = "/" + ServiceName + "/ListLedger"
	methodReconcile  = "/" + ServiceName + "/Reconcile"
)

// #endregion names

// #region server-interface

// ProgressionServer is implemented by Server.
type ProgressionServer interface {
	AwardXP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListLedger(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterProgressionServer attaches srv to s.
func RegisterProgressionServer(s grpc.ServiceRegistrar, srv ProgressionServer) {
	s.RegisterService(&serviceDesc, srv)
}

// #endregion server-interface

// #region desc

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProgressionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AwardXP", Handler: unaryHandler(methodAwardXP, ProgressionServer.AwardXP)},
		{MethodName: "GetState", Handler: unaryHandler(methodGetState, ProgressionServer.GetState)},
		{MethodName: "ListLedger", Handler: unaryHandler(methodListLedger, ProgressionServer.ListLedger)},
		{MethodName: "Reconcile", Handler: unaryHandler(methodReconcile, ProgressionServer.Reconcile)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "progression/v1/progression.proto",
}

type unaryMethod func(ProgressionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts m to grpc's method handler signature.
func unaryHandler(fullMethod string, m unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(ProgressionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(ProgressionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion desc
