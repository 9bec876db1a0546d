package handler

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const identityProtoFile = "identity/v1/identity.proto"

// The identity service is served without generated code, so its file descriptor
// is built here and registered for server reflection.
func init() {
	if err := registerIdentityDescriptor(protoregistry.GlobalFiles); err != nil {
		panic(err)
	}
}

func identityFileDescriptor() *descriptorpb.FileDescriptorProto {
	method := func(name string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(".google.protobuf.StringValue"),
			OutputType: proto.String(".google.protobuf.Struct"),
		}
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(identityProtoFile),
		Package: proto.String("identity.v1"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			"google/protobuf/wrappers.proto",
			"google/protobuf/struct.proto",
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("IdentityService"),
			Method: []*descriptorpb.MethodDescriptorProto{method("ValidateToken"), method("GetUser")},
		}},
	}
}

func registerIdentityDescriptor(files *protoregistry.Files) error {
	if _, err := files.FindFileByPath(identityProtoFile); err == nil {
		return nil
	}

	fd, err := protodesc.NewFile(identityFileDescriptor(), files)
	if err != nil {
		return fmt.Errorf("build %s: %w", identityProtoFile, err)
	}
	return files.RegisterFile(fd)
}
