package bridge

import (
	"context"

	"google.golang.org/grpc"
)

// serviceDesc is the bridge service descriptor, written by hand in place of
// protoc-generated code. The JSON codec in codec.go does the marshalling, so
// plain structs work as request and reply types.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*bridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Command", Handler: commandHandler},
		{MethodName: "GetSnapshot", Handler: snapshotHandler},
		{MethodName: "ListThemes", Handler: listThemesHandler},
		{MethodName: "GetStatus", Handler: statusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "taskdeck/v1/bridge.json",
}

// bridgeServer is the server interface the descriptor binds to.
type bridgeServer interface {
	Command(context.Context, *CommandRequest) (*CommandReply, error)
	GetSnapshot(context.Context, *SnapshotRequest) (*Snapshot, error)
	ListThemes(context.Context, *ThemeListRequest) (*ThemeList, error)
	GetStatus(context.Context, *StatusRequest) (*DaemonStatus, error)
	Subscribe(*SubscribeRequest, grpc.ServerStream) error
}

func commandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bridgeServer).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Command"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(bridgeServer).Command(ctx, req.(*CommandRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bridgeServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetSnapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(bridgeServer).GetSnapshot(ctx, req.(*SnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listThemesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ThemeListRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bridgeServer).ListThemes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListThemes"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(bridgeServer).ListThemes(ctx, req.(*ThemeListRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bridgeServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(bridgeServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(bridgeServer).Subscribe(in, stream)
}
