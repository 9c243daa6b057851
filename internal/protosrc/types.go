package protosrc

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

var scalarNames = map[descriptorpb.FieldDescriptorProto_Type]string{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   "double",
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    "float",
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    "int32",
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    "int64",
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   "uint32",
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   "uint64",
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   "sint32",
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   "sint64",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  "fixed32",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  "fixed64",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: "sfixed32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: "sfixed64",
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     "bool",
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   "string",
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    "bytes",
}

// typeName resolves the type token of a field.
//
// A field whose type is unset but which names a type is an unresolved
// reference, as emitted by parsers before linking; it renders like a message
// or enum reference.
func (r *fileRenderer) typeName(scope string, f *descriptorpb.FieldDescriptorProto) (string, error) {
	if f.Type == nil {
		if f.GetTypeName() == "" {
			return "", fmt.Errorf("%w: field %s has neither a type nor a type name",
				ErrMalformedDescriptor, joinScope(scope, f.GetName()))
		}
		return r.reference(f.GetTypeName()), nil
	}

	switch t := f.GetType(); t {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if f.GetTypeName() == "" {
			return "", fmt.Errorf("%w: %s field %s has no type name",
				ErrMalformedDescriptor, kindWord(t), joinScope(scope, f.GetName()))
		}
		return r.reference(f.GetTypeName()), nil
	default:
		name, ok := scalarNames[t]
		if !ok {
			return "", fmt.Errorf("%w: field %s has type %s",
				ErrUnsupportedType, joinScope(scope, f.GetName()), t)
		}
		return name, nil
	}
}

func kindWord(t descriptorpb.FieldDescriptorProto_Type) string {
	if t == descriptorpb.FieldDescriptorProto_TYPE_ENUM {
		return "enum"
	}
	return "message"
}

func (r *fileRenderer) reference(typeName string) string {
	if r.opts.TypeNames == QualifiedTypeNames {
		return typeName
	}
	return LastSegment(typeName)
}

// LastSegment returns the part of a dotted name after the final dot.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
