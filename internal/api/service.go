package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	queryServiceName  = "eventmarket.v1.QueryService"
	executeFullMethod = "/" + queryServiceName + "/Execute"
	batchFullMethod   = "/" + queryServiceName + "/Batch"
)

// QueryServiceServer is the gRPC face of the dispatcher. Messages travel as
// JSON through the registered json codec.
type QueryServiceServer interface {
	Execute(context.Context, *Request) (*Response, error)
	Batch(context.Context, *BatchRequest) (*Response, error)
}

// QueryService adapts a Dispatcher to QueryServiceServer.
type QueryService struct {
	dispatcher *Dispatcher
}

func NewQueryService(d *Dispatcher) *QueryService {
	return &QueryService{dispatcher: d}
}

func (s *QueryService) Execute(ctx context.Context, req *Request) (*Response, error) {
	data, err := s.dispatcher.Execute(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	return &Response{Data: data}, nil
}

func (s *QueryService) Batch(ctx context.Context, req *BatchRequest) (*Response, error) {
	data, err := s.dispatcher.ExecuteBatch(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	return &Response{Data: data}, nil
}

func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&queryServiceDesc, srv)
}

var queryServiceDesc = grpc.ServiceDesc{
	ServiceName: queryServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
		{MethodName: "Batch", Handler: batchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventmarket/v1/query",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueryServiceServer).Execute(ctx, req.(*Request))
	}
	return interceptor(ctx, in, info, handler)
}

func batchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).Batch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: batchFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueryServiceServer).Batch(ctx, req.(*BatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// QueryServiceClient calls a remote QueryService.
type QueryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewQueryServiceClient(cc grpc.ClientConnInterface) *QueryServiceClient {
	return &QueryServiceClient{cc: cc}
}

func (c *QueryServiceClient) Execute(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, executeFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QueryServiceClient) Batch(ctx context.Context, in *BatchRequest, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, batchFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
