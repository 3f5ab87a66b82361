package codec

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "siteplan.v1.Environment"

const (
	methodOpen  = "/" + ServiceName + "/Open"
	methodReset = "/" + ServiceName + "/Reset"
	methodStep  = "/" + ServiceName + "/Step"
	methodClose = "/" + ServiceName + "/Close"
)

// #region server-api
// EnvironmentServer is the server API for the environment service.
type EnvironmentServer interface {
	Open(context.Context, *OpenRequest) (*OpenResponse, error)
	Reset(context.Context, *ResetRequest) (*ResetResponse, error)
	Step(context.Context, *StepRequest) (*StepResponse, error)
	Close(context.Context, *CloseRequest) (*CloseResponse, error)
}

// RegisterEnvironmentServer registers srv on s.
func RegisterEnvironmentServer(s grpc.ServiceRegistrar, srv EnvironmentServer) {
	s.RegisterService(&environmentServiceDesc, srv)
}

var environmentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Open", Handler: unaryHandler(methodOpen, EnvironmentServer.Open)},
		{MethodName: "Reset", Handler: unaryHandler(methodReset, EnvironmentServer.Reset)},
		{MethodName: "Step", Handler: unaryHandler(methodStep, EnvironmentServer.Step)},
		{MethodName: "Close", Handler: unaryHandler(methodClose, EnvironmentServer.Close)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "siteplan/v1/environment",
}

// unaryHandler adapts one EnvironmentServer method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(EnvironmentServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EnvironmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EnvironmentServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion server-api

// #region client-api
// EnvironmentClient is the client API for the environment service.
type EnvironmentClient interface {
	Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenResponse, error)
	Reset(ctx context.Context, in *ResetRequest, opts ...grpc.CallOption) (*ResetResponse, error)
	Step(ctx context.Context, in *StepRequest, opts ...grpc.CallOption) (*StepResponse, error)
	Close(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*CloseResponse, error)
}

type environmentClient struct {
	cc grpc.ClientConnInterface
}

// NewEnvironmentClient returns a client that speaks the JSON content-subtype
// on every call.
func NewEnvironmentClient(cc grpc.ClientConnInterface) EnvironmentClient {
	return &environmentClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *environmentClient) Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c.cc, methodOpen, in, opts)
}

func (c *environmentClient) Reset(ctx context.Context, in *ResetRequest, opts ...grpc.CallOption) (*ResetResponse, error) {
	return invoke[ResetResponse](ctx, c.cc, methodReset, in, opts)
}

func (c *environmentClient) Step(ctx context.Context, in *StepRequest, opts ...grpc.CallOption) (*StepResponse, error) {
	return invoke[StepResponse](ctx, c.cc, methodStep, in, opts)
}

func (c *environmentClient) Close(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*CloseResponse, error) {
	return invoke[CloseResponse](ctx, c.cc, methodClose, in, opts)
}

// #endregion client-api
