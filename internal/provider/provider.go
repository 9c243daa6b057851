// Package provider supplies file descriptors to render. Each implementation
// knows one way of finding schemas: descriptor set files, .proto sources, the
// descriptors linked into the running process, or a live gRPC server.
package provider

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

var (
	// ErrNoFiles indicates a provider was constructed without any inputs.
	ErrNoFiles = errors.New("provider: no input files")
)

// Provider yields file descriptors. The returned slice belongs to the
// caller; the descriptors themselves may be shared and must not be modified.
// Implementations should be safe for concurrent use.
type Provider interface {
	Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error)
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error)

func (f Func) Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
	return f(ctx)
}

// InMemory is a Provider backed by a fixed list of descriptors.
type InMemory struct {
	files []*descriptorpb.FileDescriptorProto
}

// NewInMemory creates a provider that returns fds in order.
func NewInMemory(fds ...*descriptorpb.FileDescriptorProto) *InMemory {
	cp := make([]*descriptorpb.FileDescriptorProto, len(fds))
	copy(cp, fds)
	return &InMemory{files: cp}
}

func (m *InMemory) Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
	out := make([]*descriptorpb.FileDescriptorProto, len(m.files))
	copy(out, m.files)
	return out, nil
}

// FilterPackages keeps the files whose package is one of prefixes or is
// nested below one ("acme" keeps "acme" and "acme.v1" but not "acmex").
// With no prefixes every file is kept.
func FilterPackages(p Provider, prefixes ...string) Provider {
	if len(prefixes) == 0 {
		return p
	}
	return Func(func(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
		fds, err := p.Files(ctx)
		if err != nil {
			return nil, err
		}
		out := fds[:0:0]
		for _, fd := range fds {
			if fd != nil && matchesPackage(fd.GetPackage(), prefixes) {
				out = append(out, fd)
			}
		}
		return out, nil
	})
}

func matchesPackage(pkg string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pkg == prefix || strings.HasPrefix(pkg, prefix+".") {
			return true
		}
	}
	return false
}

// Concat merges providers in order. When two providers return files with
// the same name, the first one wins.
func Concat(ps ...Provider) Provider {
	return Func(func(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
		seen := make(map[string]bool)
		var out []*descriptorpb.FileDescriptorProto
		for _, p := range ps {
			fds, err := p.Files(ctx)
			if err != nil {
				return nil, err
			}
			for _, fd := range fds {
				if fd == nil {
					continue
				}
				if name := fd.GetName(); name != "" {
					if seen[name] {
						continue
					}
					seen[name] = true
				}
				out = append(out, fd)
			}
		}
		return out, nil
	})
}
