package provider

import (
	"context"
	"sort"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Registry lists the files of a protoregistry.Files. With
// protoregistry.GlobalFiles this is every schema compiled into the running
// binary: each generated package registers its file descriptor on init.
type Registry struct {
	files *protoregistry.Files
}

// NewRegistry creates a provider over files. A nil files uses
// protoregistry.GlobalFiles.
func NewRegistry(files *protoregistry.Files) *Registry {
	if files == nil {
		files = protoregistry.GlobalFiles
	}
	return &Registry{files: files}
}

// Files returns the registered files sorted by path.
func (r *Registry) Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
	var fds []protoreflect.FileDescriptor
	r.files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		fds = append(fds, fd)
		return ctx.Err() == nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toProtos(fds), nil
}

func toProtos(fds []protoreflect.FileDescriptor) []*descriptorpb.FileDescriptorProto {
	sort.Slice(fds, func(i, j int) bool { return fds[i].Path() < fds[j].Path() })
	out := make([]*descriptorpb.FileDescriptorProto, len(fds))
	for i, fd := range fds {
		out[i] = protodesc.ToFileDescriptorProto(fd)
	}
	return out
}
