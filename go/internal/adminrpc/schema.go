package adminrpc

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified name of the admin service.
	ServiceName = "quizhub.admin.v1.RoomAdminService"

	ListRoomsProcedure = "/quizhub.admin.v1.RoomAdminService/ListRooms"
	CloseRoomProcedure = "/quizhub.admin.v1.RoomAdminService/CloseRoom"

	schemaFile = "quizhub/admin/v1/admin.proto"
)

var (
	schemaOnce sync.Once
	schema     protoreflect.ServiceDescriptor
	schemaErr  error
)

// Schema returns the descriptor of RoomAdminService, registering its file in
// protoregistry.GlobalFiles on first use so that reflection can serve it.
// Requests and responses are well-known types, so no generated code is needed.
func Schema() (protoreflect.ServiceDescriptor, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = buildSchema()
	})
	return schema, schemaErr
}

func buildSchema() (protoreflect.ServiceDescriptor, error) {
	if d, err := protoregistry.GlobalFiles.FindDescriptorByName(ServiceName); err == nil {
		if sd, ok := d.(protoreflect.ServiceDescriptor); ok {
			return sd, nil
		}
	}

	empty := string((&emptypb.Empty{}).ProtoReflect().Descriptor().FullName())
	strct := string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(schemaFile),
		Package: proto.String("quizhub.admin.v1"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			emptypb.File_google_protobuf_empty_proto.Path(),
			structpb.File_google_protobuf_struct_proto.Path(),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("RoomAdminService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{
					Name:       proto.String("ListRooms"),
					InputType:  proto.String("." + empty),
					OutputType: proto.String("." + strct),
				},
				{
					Name:       proto.String("CloseRoom"),
					InputType:  proto.String("." + strct),
					OutputType: proto.String("." + empty),
				},
			},
		}},
	}

	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("build admin schema: %w", err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		return nil, fmt.Errorf("register admin schema: %w", err)
	}
	return fd.Services().ByName("RoomAdminService"), nil
}
