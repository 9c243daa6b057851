package provider

import (
	"context"
	"fmt"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Compiler compiles .proto sources and provides the resulting descriptors.
// Only the named files are returned; their imports are resolved but not
// listed.
type Compiler struct {
	importPaths []string
	files       []string
}

// NewCompiler creates a provider compiling files, which are resolved relative
// to importPaths. The well-known google/protobuf imports are always
// available.
func NewCompiler(importPaths []string, files ...string) (*Compiler, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return &Compiler{
		importPaths: append([]string(nil), importPaths...),
		files:       append([]string(nil), files...),
	}, nil
}

func (c *Compiler) Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: c.importPaths,
		}),
	}
	compiled, err := compiler.Compile(ctx, c.files...)
	if err != nil {
		return nil, fmt.Errorf("compile proto sources: %w", err)
	}
	out := make([]*descriptorpb.FileDescriptorProto, len(compiled))
	for i, f := range compiled {
		out[i] = protodesc.ToFileDescriptorProto(f)
	}
	return out, nil
}
