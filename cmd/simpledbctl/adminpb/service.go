// Package adminpb declares the StorageAdmin gRPC service used by
// simpledbctl's "serve" subcommand to expose checkpoint and stats to a
// remote operator.
//
// There is no storage_admin.proto + protoc-gen-go pipeline behind this
// file: the ServiceDesc and handler wiring below follow the exact shape
// protoc-gen-go-grpc emits, written by hand, and the request/response
// payloads reuse protobuf's own well-known wrapper types
// (emptypb/wrapperspb/structpb) instead of custom generated messages.
package adminpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// StorageAdminServer is implemented by the admin service's backing
// engine (see cmd/simpledbctl's adminServer).
type StorageAdminServer interface {
	// Checkpoint triggers an immediate checkpoint attempt and reports
	// its outcome as a human-readable status string.
	Checkpoint(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	// Stats reports point-in-time engine statistics as a protobuf
	// Struct (active_transactions, available_buffers, open_sessions).
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterStorageAdminServer wires impl into s under the service
// descriptor below.
func RegisterStorageAdminServer(s grpc.ServiceRegistrar, impl StorageAdminServer) {
	s.RegisterService(&storageAdminServiceDesc, impl)
}

var storageAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: "simpledb.admin.StorageAdmin",
	HandlerType: (*StorageAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Checkpoint", Handler: checkpointHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simpledb/admin/storage_admin.proto",
}

func checkpointHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageAdminServer).Checkpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/simpledb.admin.StorageAdmin/Checkpoint"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageAdminServer).Checkpoint(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageAdminServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/simpledb.admin.StorageAdmin/Stats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageAdminServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// NewStorageAdminClient returns a thin client over cc.
func NewStorageAdminClient(cc grpc.ClientConnInterface) StorageAdminClient {
	return &storageAdminClient{cc}
}

// StorageAdminClient is the client-side counterpart of StorageAdminServer.
type StorageAdminClient interface {
	Checkpoint(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type storageAdminClient struct {
	cc grpc.ClientConnInterface
}

func (c *storageAdminClient) Checkpoint(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/simpledb.admin.StorageAdmin/Checkpoint", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageAdminClient) Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/simpledb.admin.StorageAdmin/Stats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
