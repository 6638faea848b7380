package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "emovec.v1.EmotionService"

// DetectMethod is the full method name of Detect.
const DetectMethod = "/" + ServiceName + "/Detect"

// EmotionServiceServer is the server API for the emotion service. Payloads
// are google.protobuf.Struct messages:
//
//	request:  {"samples": [float...], "sample_rate": int}
//	response: {"dominant": string, "scores": [float...],
//	           "labels": [{"label": string, "score": float}...],
//	           "samples": int, "sample_rate": int}
type EmotionServiceServer interface {
	Detect(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterEmotionServiceServer registers srv on s.
func RegisterEmotionServiceServer(s grpc.ServiceRegistrar, srv EmotionServiceServer) {
	s.RegisterService(&EmotionServiceDesc, srv)
}

// EmotionServiceDesc is the grpc.ServiceDesc for the emotion service.
var EmotionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EmotionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Detect",
			Handler:    detectHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "emovec/v1/emotion.proto",
}

func detectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmotionServiceServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DetectMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EmotionServiceServer).Detect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
