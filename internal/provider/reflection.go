package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jhump/protoreflect/v2/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ReflectionOptions configures a Reflection provider.
//
// Defaults:
// - Timeout:     10s for the whole listing
// - DialOptions: insecure credentials
type ReflectionOptions struct {
	Timeout     time.Duration
	DialOptions []grpc.DialOption
}

// ReflectionOption mutates ReflectionOptions.
type ReflectionOption func(*ReflectionOptions)

func defaultReflectionOptions() *ReflectionOptions {
	return &ReflectionOptions{Timeout: 10 * time.Second}
}

func WithTimeout(d time.Duration) ReflectionOption {
	return func(o *ReflectionOptions) { o.Timeout = d }
}

func WithDialOptions(opts ...grpc.DialOption) ReflectionOption {
	return func(o *ReflectionOptions) { o.DialOptions = opts }
}

// Reflection asks a running gRPC server for its schemas through the server
// reflection service. Every advertised service contributes its file and the
// files it imports, transitively.
type Reflection struct {
	target string
	opts   *ReflectionOptions
}

// NewReflection creates a provider for the server at target (host:port or
// any gRPC target string).
func NewReflection(target string, opts ...ReflectionOption) *Reflection {
	o := defaultReflectionOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}
	return &Reflection{target: target, opts: o}
}

// Files returns the collected files sorted by path.
func (r *Reflection) Files(ctx context.Context) ([]*descriptorpb.FileDescriptorProto, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.NewClient(r.target, r.opts.DialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.target, err)
	}
	defer func() { _ = cc.Close() }()

	client := grpcreflect.NewClientAuto(ctx, cc)
	defer client.Reset()

	services, err := client.ListServices()
	if err != nil {
		return nil, fmt.Errorf("list services of %s: %w", r.target, err)
	}

	files := make(map[string]protoreflect.FileDescriptor)
	for _, svc := range services {
		fd, err := client.FileContainingSymbol(svc)
		if err != nil {
			if grpcreflect.IsElementNotFoundError(err) {
				// advertised but not described by the server
				continue
			}
			return nil, fmt.Errorf("resolve service %s: %w", svc, err)
		}
		collectFiles(fd, files)
	}

	fds := make([]protoreflect.FileDescriptor, 0, len(files))
	for _, fd := range files {
		fds = append(fds, fd)
	}
	return toProtos(fds), nil
}

func collectFiles(fd protoreflect.FileDescriptor, into map[string]protoreflect.FileDescriptor) {
	if _, ok := into[fd.Path()]; ok {
		return
	}
	into[fd.Path()] = fd
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		collectFiles(imports.Get(i).FileDescriptor, into)
	}
}
