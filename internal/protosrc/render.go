// Package protosrc turns protobuf file descriptors back into .proto source
// text.
//
// The descriptor carries no comments, options or original formatting, so the
// output is a canonical rendering: header (syntax, imports, package), then
// top-level declarations grouped by kind, one blank line between
// declarations. Oneofs with a single member are written as plain optional
// fields, which is how proto3 explicit-presence fields are represented in
// descriptors.
package protosrc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/protodump/internal/srcwriter"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	syntaxProto3   = "proto3"
	syntaxEditions = "editions"
)

// Renderer renders file descriptors. It holds configuration only, so one
// Renderer may be shared by concurrent goroutines.
type Renderer struct {
	opts *Options
}

// New creates a Renderer. Indentation settings are validated here so that a
// misconfigured Renderer never starts rendering.
func New(opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if err := srcwriter.Validate(o.IndentChar, o.IndentWidth); err != nil {
		return nil, err
	}
	return &Renderer{opts: o}, nil
}

// Render is a convenience wrapper around New and Renderer.Render.
func Render(fd *descriptorpb.FileDescriptorProto, opts ...Option) (string, error) {
	r, err := New(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(fd)
}

// Render returns the source text of fd. On error no text is returned.
func (r *Renderer) Render(fd *descriptorpb.FileDescriptorProto) (string, error) {
	w, err := srcwriter.New(r.opts.writerOptions()...)
	if err != nil {
		return "", err
	}
	fr := &fileRenderer{
		opts:   r.opts,
		w:      w,
		syntax: fd.GetSyntax(),
	}
	if err := fr.renderFile(fd); err != nil {
		return "", fmt.Errorf("render %s: %w", fileLabel(fd), err)
	}
	text, err := w.Seal()
	if err != nil {
		return "", fmt.Errorf("render %s: %w", fileLabel(fd), err)
	}
	return text, nil
}

// RenderDescriptor renders a linked file descriptor, such as one taken from
// a protoregistry.Files or produced by a compiler.
func (r *Renderer) RenderDescriptor(fd protoreflect.FileDescriptor) (string, error) {
	return r.Render(protodesc.ToFileDescriptorProto(fd))
}

func fileLabel(fd *descriptorpb.FileDescriptorProto) string {
	if name := fd.GetName(); name != "" {
		return strconv.Quote(name)
	}
	return "file"
}

type fileRenderer struct {
	opts   *Options
	w      *srcwriter.Writer
	syntax string
}

func (r *fileRenderer) renderFile(fd *descriptorpb.FileDescriptorProto) error {
	r.renderSyntax(fd)
	r.renderImports(fd)
	if fd.Package != nil {
		r.w.Linef("package %s;", fd.GetPackage())
		r.w.BlankLine()
	}
	return r.renderDeclarations(fd)
}

func (r *fileRenderer) renderSyntax(fd *descriptorpb.FileDescriptorProto) {
	if fd.Syntax == nil {
		return
	}
	if fd.GetSyntax() == syntaxEditions && fd.Edition != nil {
		r.w.Linef("edition = %q;", editionName(fd.GetEdition()))
	} else {
		r.w.Linef("syntax = %q;", fd.GetSyntax())
	}
	r.w.BlankLine()
}

func editionName(e descriptorpb.Edition) string {
	return strings.TrimPrefix(e.String(), "EDITION_")
}

func (r *fileRenderer) renderImports(fd *descriptorpb.FileDescriptorProto) {
	public := indexSet(fd.GetPublicDependency())
	weak := indexSet(fd.GetWeakDependency())

	emitted := 0
	for i, dep := range fd.GetDependency() {
		if strings.TrimSpace(dep) == "" {
			continue
		}
		path := r.normalizeImport(dep)
		switch {
		case public[int32(i)]:
			r.w.Linef("import public %q;", path)
		case weak[int32(i)]:
			r.w.Linef("import weak %q;", path)
		default:
			r.w.Linef("import %q;", path)
		}
		emitted++
	}
	if emitted > 0 {
		r.w.BlankLine()
	}
}

func indexSet(idx []int32) map[int32]bool {
	if len(idx) == 0 {
		return nil
	}
	m := make(map[int32]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}

func (r *fileRenderer) normalizeImport(path string) string {
	for _, prefix := range r.opts.ImportPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// renderDeclarations writes every top-level declaration group. Separators
// depend only on what was actually emitted, so nil entries never produce
// stray blank lines.
func (r *fileRenderer) renderDeclarations(fd *descriptorpb.FileDescriptorProto) error {
	scope := fd.GetPackage()
	s := &separator{w: r.w}

	services := func() error {
		for _, svc := range fd.GetService() {
			if svc == nil {
				continue
			}
			s.next()
			r.renderService(svc)
		}
		return nil
	}
	enums := func() error {
		for _, en := range fd.GetEnumType() {
			if en == nil {
				continue
			}
			s.next()
			r.renderEnum(en)
		}
		return nil
	}
	messages := func() error {
		for _, msg := range fd.GetMessageType() {
			if msg == nil {
				continue
			}
			s.next()
			if err := r.renderMessage(scope, msg); err != nil {
				return err
			}
		}
		return nil
	}

	groups := []func() error{services, enums, messages}
	if r.opts.Order == MessagesFirst {
		groups = []func() error{messages, enums, services}
	}
	for _, g := range groups {
		if err := g(); err != nil {
			return err
		}
	}
	return nil
}

// separator writes one blank line before every element except the first.
type separator struct {
	w       *srcwriter.Writer
	started bool
}

func (s *separator) next() {
	if s.started {
		s.w.BlankLine()
	}
	s.started = true
}

func (r *fileRenderer) renderService(svc *descriptorpb.ServiceDescriptorProto) {
	r.w.Linef("service %s {", svc.GetName())
	r.w.Indent()
	r.w.CloseBlock()
}

func (r *fileRenderer) renderEnum(en *descriptorpb.EnumDescriptorProto) {
	r.w.Linef("enum %s {", en.GetName())
	r.w.Indent()
	for _, v := range en.GetValue() {
		if v == nil {
			continue
		}
		r.w.Linef("%s = %d;", v.GetName(), v.GetNumber())
	}
	r.w.CloseBlock()
}

func joinScope(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}
