package provider

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Protoset reads binary FileDescriptorSet files, as written by
// `protoc --descriptor_set_out` or `buf build -o`.
type Protoset struct {
	paths []string
}

// NewProtoset creates a provider over the given descriptor set files.
func NewProtoset(paths ...string) (*Protoset, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	cp := make([]string, len(paths))
	copy(cp, paths)
	return &Protoset{paths: cp}, nil
}

// Files returns the files of every set in order. The files are returned as
// stored; nothing is linked or resolved.
func (p *Protoset) Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
	var out []*descriptorpb.FileDescriptorProto
	for _, path := range p.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := readProtoset(path)
		if err != nil {
			return nil, err
		}
		out = append(out, set.GetFile()...)
	}
	return out, nil
}

func readProtoset(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor set %q: %w", path, err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode descriptor set %q: %w", path, err)
	}
	return &set, nil
}
