package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// PipelineServiceName is the fully qualified gRPC service name.
const PipelineServiceName = "resumetex.v1.PipelineService"

// Full method names of the pipeline service.
const (
	MethodSubmitGeneration = "/" + PipelineServiceName + "/SubmitGeneration"
	MethodGetTask          = "/" + PipelineServiceName + "/GetTask"
	MethodSanitizeLatex    = "/" + PipelineServiceName + "/SanitizeLatex"
	MethodHealthCheck      = "/" + PipelineServiceName + "/HealthCheck"
)

// PipelineServiceServer is the server API of the pipeline service. Messages
// are google.protobuf.Struct values whose fields mirror the JSON API.
type PipelineServiceServer interface {
	SubmitGeneration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SanitizeLatex(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(PipelineServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PipelineServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PipelineServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PipelineServiceDesc describes the pipeline service for grpc.RegisterService.
var PipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: PipelineServiceName,
	HandlerType: (*PipelineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitGeneration",
			Handler:    unaryHandler(MethodSubmitGeneration, PipelineServiceServer.SubmitGeneration),
		},
		{
			MethodName: "GetTask",
			Handler:    unaryHandler(MethodGetTask, PipelineServiceServer.GetTask),
		},
		{
			MethodName: "SanitizeLatex",
			Handler:    unaryHandler(MethodSanitizeLatex, PipelineServiceServer.SanitizeLatex),
		},
		{
			MethodName: "HealthCheck",
			Handler:    unaryHandler(MethodHealthCheck, PipelineServiceServer.HealthCheck),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "resumetex/v1/pipeline.proto",
}

// RegisterPipelineServiceServer registers srv on s.
func RegisterPipelineServiceServer(s grpc.ServiceRegistrar, srv PipelineServiceServer) {
	s.RegisterService(&PipelineServiceDesc, srv)
}
