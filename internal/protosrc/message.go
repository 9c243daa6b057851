package protosrc

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"
)

// fieldShape is the closed set of ways a field can appear in a message body.
type fieldShape interface {
	isFieldShape()
}

// plainField is a field outside any oneof.
type plainField struct {
	field *descriptorpb.FieldDescriptorProto
}

// flattenedOptional is the only member of a oneof. It is written as a plain
// field with an explicit optional label.
type flattenedOptional struct {
	field *descriptorpb.FieldDescriptorProto
}

// oneofGroup is a oneof with two or more members, in declaration order.
type oneofGroup struct {
	name    string
	members []*descriptorpb.FieldDescriptorProto
}

func (plainField) isFieldShape()        {}
func (flattenedOptional) isFieldShape() {}
func (oneofGroup) isFieldShape()        {}

func (r *fileRenderer) renderMessage(scope string, msg *descriptorpb.DescriptorProto) error {
	scope = joinScope(scope, msg.GetName())

	shapes, err := classifyFields(scope, msg)
	if err != nil {
		return err
	}

	r.w.Linef("message %s {", msg.GetName())
	r.w.Indent()

	for _, shape := range shapes {
		if err := r.renderShape(scope, shape); err != nil {
			return err
		}
	}

	if hasNonNil(msg.GetNestedType()) {
		r.w.BlankLine()
		s := &separator{w: r.w}
		for _, nested := range msg.GetNestedType() {
			if nested == nil {
				continue
			}
			s.next()
			if err := r.renderMessage(scope, nested); err != nil {
				return err
			}
		}
	}

	if hasNonNil(msg.GetEnumType()) {
		r.w.BlankLine()
		s := &separator{w: r.w}
		for _, en := range msg.GetEnumType() {
			if en == nil {
				continue
			}
			s.next()
			r.renderEnum(en)
		}
	}

	r.w.CloseBlock()
	return nil
}

func hasNonNil[T any](items []*T) bool {
	for _, it := range items {
		if it != nil {
			return true
		}
	}
	return false
}

// classifyFields walks fields in declaration order. A oneof is emitted once,
// at the position of its first member, and carries all of its members even
// when they are scattered through the field list.
func classifyFields(scope string, msg *descriptorpb.DescriptorProto) ([]fieldShape, error) {
	oneofs := msg.GetOneofDecl()
	members := make([][]*descriptorpb.FieldDescriptorProto, len(oneofs))
	for _, f := range msg.GetField() {
		if f == nil || f.OneofIndex == nil {
			continue
		}
		idx := int(f.GetOneofIndex())
		if idx < 0 || idx >= len(oneofs) || oneofs[idx] == nil {
			return nil, fmt.Errorf("%w: field %s references oneof index %d, message declares %d",
				ErrMalformedDescriptor, joinScope(scope, f.GetName()), idx, len(oneofs))
		}
		members[idx] = append(members[idx], f)
	}

	shapes := make([]fieldShape, 0, len(msg.GetField()))
	seen := make([]bool, len(oneofs))
	for _, f := range msg.GetField() {
		if f == nil {
			continue
		}
		if f.OneofIndex == nil {
			shapes = append(shapes, plainField{field: f})
			continue
		}
		idx := int(f.GetOneofIndex())
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if len(members[idx]) == 1 {
			shapes = append(shapes, flattenedOptional{field: f})
		} else {
			shapes = append(shapes, oneofGroup{name: oneofs[idx].GetName(), members: members[idx]})
		}
	}
	return shapes, nil
}

func (r *fileRenderer) renderShape(scope string, shape fieldShape) error {
	switch s := shape.(type) {
	case plainField:
		return r.renderField(scope, s.field, r.label(s.field))
	case flattenedOptional:
		return r.renderField(scope, s.field, "optional")
	case oneofGroup:
		r.w.Linef("oneof %s {", s.name)
		r.w.Indent()
		for _, f := range s.members {
			if err := r.renderField(scope, f, ""); err != nil {
				return err
			}
		}
		r.w.CloseBlock()
		return nil
	default:
		panic(fmt.Sprintf("protosrc: unhandled field shape %T", shape))
	}
}

func (r *fileRenderer) renderField(scope string, f *descriptorpb.FieldDescriptorProto, label string) error {
	typ, err := r.typeName(scope, f)
	if err != nil {
		return err
	}
	if label != "" {
		r.w.Linef("%s %s %s = %d;", label, typ, f.GetName(), f.GetNumber())
	} else {
		r.w.Linef("%s %s = %d;", typ, f.GetName(), f.GetNumber())
	}
	return nil
}

// label returns the keyword for a field outside any oneof. An absent label
// renders nothing. An explicit optional label is dropped in dialects where
// optional is already the default.
func (r *fileRenderer) label(f *descriptorpb.FieldDescriptorProto) string {
	if f.Label == nil {
		return ""
	}
	switch f.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		return "required"
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		return "repeated"
	case descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL:
		if r.syntax == syntaxProto3 || r.syntax == syntaxEditions {
			return ""
		}
		return "optional"
	default:
		return ""
	}
}
