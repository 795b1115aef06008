package syncrpc

import (
	"context"
	"encoding/json"

	"github.com/donets/jtrack/internal/protocol"
	"google.golang.org/grpc"
)

const ServiceName = "jtrack.sync.v1.SyncService"

const (
	PingFullMethod          = "/" + ServiceName + "/Ping"
	PullFullMethod          = "/" + ServiceName + "/Pull"
	PushFullMethod          = "/" + ServiceName + "/Push"
	AttachmentURLFullMethod = "/" + ServiceName + "/AttachmentURL"
)

// Empty is the request of Ping.
type Empty struct{}

// SyncServiceServer is implemented by the server transport. Requests
// arrive as raw JSON and are decoded by the implementation.
type SyncServiceServer interface {
	Ping(ctx context.Context, in *Empty) (*protocol.PingResponse, error)
	Pull(ctx context.Context, in *json.RawMessage) (*protocol.PullResponse, error)
	Push(ctx context.Context, in *json.RawMessage) (*protocol.PushResponse, error)
	AttachmentURL(ctx context.Context, in *json.RawMessage) (*protocol.AttachmentURLResponse, error)
}

func unary[Req any, Resp any](fullMethod string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SyncServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the sync service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary(PingFullMethod, SyncServiceServer.Ping)},
		{MethodName: "Pull", Handler: unary(PullFullMethod, SyncServiceServer.Pull)},
		{MethodName: "Push", Handler: unary(PushFullMethod, SyncServiceServer.Push)},
		{MethodName: "AttachmentURL", Handler: unary(AttachmentURLFullMethod, SyncServiceServer.AttachmentURL)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jtrack/sync.json",
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// SyncServiceClient is the typed client of the sync service.
type SyncServiceClient interface {
	Ping(ctx context.Context, opts ...grpc.CallOption) (*protocol.PingResponse, error)
	Pull(ctx context.Context, in *protocol.PullRequest, opts ...grpc.CallOption) (*protocol.PullResponse, error)
	Push(ctx context.Context, in *protocol.PushRequest, opts ...grpc.CallOption) (*protocol.PushResponse, error)
	AttachmentURL(ctx context.Context, in *protocol.AttachmentURLRequest, opts ...grpc.CallOption) (*protocol.AttachmentURLResponse, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*protocol.PingResponse, error) {
	return invoke[protocol.PingResponse](ctx, c.cc, PingFullMethod, &Empty{}, opts)
}

func (c *syncServiceClient) Pull(ctx context.Context, in *protocol.PullRequest, opts ...grpc.CallOption) (*protocol.PullResponse, error) {
	return invoke[protocol.PullResponse](ctx, c.cc, PullFullMethod, in, opts)
}

func (c *syncServiceClient) Push(ctx context.Context, in *protocol.PushRequest, opts ...grpc.CallOption) (*protocol.PushResponse, error) {
	return invoke[protocol.PushResponse](ctx, c.cc, PushFullMethod, in, opts)
}

func (c *syncServiceClient) AttachmentURL(ctx context.Context, in *protocol.AttachmentURLRequest, opts ...grpc.CallOption) (*protocol.AttachmentURLResponse, error) {
	return invoke[protocol.AttachmentURLResponse](ctx, c.cc, AttachmentURLFullMethod, in, opts)
}
