package storageHandler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "drive.v1.Storage"

// StorageServer is the server API of drive.v1.Storage. Requests and
// responses are google.protobuf.Struct; file content travels as
// google.protobuf.BytesValue chunks.
type StorageServer interface {
	RegisterAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetQuota(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeToken(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateFolder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenameFolder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveFolder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteFolder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Browse(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenameFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CopyFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteFile(context.Context, *structpb.Struct) (*structpb.Struct, error)

	Share(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Unshare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGrants(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SharedWithMe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CanAccess(context.Context, *structpb.Struct) (*structpb.Struct, error)

	Upload(grpc.ServerStream) error
	Download(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(StorageServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorageServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(StorageServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func uploadStream(srv interface{}, stream grpc.ServerStream) error {
	return srv.(StorageServer).Upload(stream)
}

func downloadStream(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StorageServer).Download(in, stream)
}

var Storage_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RegisterAccount", StorageServer.RegisterAccount),
		unary("GetAccount", StorageServer.GetAccount),
		unary("UpdateProfile", StorageServer.UpdateProfile),
		unary("GetUsage", StorageServer.GetUsage),
		unary("SetQuota", StorageServer.SetQuota),
		unary("RevokeToken", StorageServer.RevokeToken),
		unary("CreateFolder", StorageServer.CreateFolder),
		unary("RenameFolder", StorageServer.RenameFolder),
		unary("MoveFolder", StorageServer.MoveFolder),
		unary("DeleteFolder", StorageServer.DeleteFolder),
		unary("Browse", StorageServer.Browse),
		unary("GetFile", StorageServer.GetFile),
		unary("RenameFile", StorageServer.RenameFile),
		unary("MoveFile", StorageServer.MoveFile),
		unary("CopyFile", StorageServer.CopyFile),
		unary("DeleteFile", StorageServer.DeleteFile),
		unary("Share", StorageServer.Share),
		unary("Unshare", StorageServer.Unshare),
		unary("ListGrants", StorageServer.ListGrants),
		unary("SharedWithMe", StorageServer.SharedWithMe),
		unary("CanAccess", StorageServer.CanAccess),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Upload", Handler: uploadStream, ClientStreams: true},
		{StreamName: "Download", Handler: downloadStream, ServerStreams: true},
	},
	Metadata: "drive/v1/storage.proto",
}

func RegisterStorageServer(s grpc.ServiceRegistrar, srv StorageServer) {
	s.RegisterService(&Storage_ServiceDesc, srv)
}

// FullMethod returns the gRPC method path of name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
