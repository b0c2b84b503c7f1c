package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully-qualified gRPC names of the detection service.
const (
	DetectionServiceName   = "rasp.v1.DetectionService"
	checkFullMethod        = "/" + DetectionServiceName + "/Check"
	exportConfigFullMethod = "/" + DetectionServiceName + "/ExportConfig"
)

// DetectionServiceServer is the server API for rasp.v1.DetectionService.
//
// Check takes {"hook", "params", "context"} and returns a CheckResult.
// ExportConfig returns {"algorithm.config": {...}} in export mode.
type DetectionServiceServer interface {
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportConfig(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// DetectionServiceDesc describes rasp.v1.DetectionService. Messages are
// well-known protobuf types, so no generated code is needed.
var DetectionServiceDesc = grpc.ServiceDesc{
	ServiceName: DetectionServiceName,
	HandlerType: (*DetectionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: checkHandler},
		{MethodName: "ExportConfig", Handler: exportConfigHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rasp/v1/detection.proto",
}

// RegisterDetectionServiceServer registers srv on s.
func RegisterDetectionServiceServer(s grpc.ServiceRegistrar, srv DetectionServiceServer) {
	s.RegisterService(&DetectionServiceDesc, srv)
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectionServiceServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DetectionServiceServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func exportConfigHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectionServiceServer).ExportConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: exportConfigFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DetectionServiceServer).ExportConfig(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// DetectionServiceClient is the client API for rasp.v1.DetectionService.
type DetectionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDetectionServiceClient creates a client on an existing connection.
func NewDetectionServiceClient(cc grpc.ClientConnInterface) *DetectionServiceClient {
	return &DetectionServiceClient{cc: cc}
}

func (c *DetectionServiceClient) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, checkFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DetectionServiceClient) ExportConfig(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, exportConfigFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
