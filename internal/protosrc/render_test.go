package protosrc_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/protodump/internal/protosrc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
)

func field(name string, number int32, typ fieldType) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   typ.Enum(),
	}
}

func ref(name string, number int32, typ fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}

func labeled(f *descriptorpb.FieldDescriptorProto, l descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto {
	f.Label = l.Enum()
	return f
}

func inOneof(f *descriptorpb.FieldDescriptorProto, idx int32) *descriptorpb.FieldDescriptorProto {
	f.OneofIndex = proto.Int32(idx)
	return f
}

func oneofs(names ...string) []*descriptorpb.OneofDescriptorProto {
	out := make([]*descriptorpb.OneofDescriptorProto, len(names))
	for i, n := range names {
		out[i] = &descriptorpb.OneofDescriptorProto{Name: proto.String(n)}
	}
	return out
}

func enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	en := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		en.Value = append(en.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return en
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func service(name string) *descriptorpb.ServiceDescriptorProto {
	return &descriptorpb.ServiceDescriptorProto{Name: proto.String(name)}
}

func mustRender(t *testing.T, fd *descriptorpb.FileDescriptorProto, opts ...protosrc.Option) string {
	t.Helper()
	out, err := protosrc.Render(fd, opts...)
	require.NoError(t, err)
	return out
}

func assertText(t *testing.T, want, got string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rendered text mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderPing(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("demo/ping.proto"),
		Syntax:  proto.String("proto3"),
		Package: proto.String("demo"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("Ping", field("id", 1, tInt32), field("name", 2, tString)),
		},
	}
	want := `syntax = "proto3";

package demo;

message Ping {
    int32 id = 1;
    string name = 2;
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestRenderOneofGroup(t *testing.T) {
	msg := message("Event",
		inOneof(field("text", 1, tString), 0),
		inOneof(field("code", 2, tInt32), 0),
	)
	msg.OneofDecl = oneofs("payload")
	fd := &descriptorpb.FileDescriptorProto{MessageType: []*descriptorpb.DescriptorProto{msg}}

	want := `message Event {
    oneof payload {
        string text = 1;
        int32 code = 2;
    }
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestRenderEnum(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		EnumType: []*descriptorpb.EnumDescriptorProto{enum("Color", "RED", "GREEN", "BLUE")},
	}
	want := `enum Color {
    RED = 0;
    GREEN = 1;
    BLUE = 2;
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestSingleMemberOneofIsFlattened(t *testing.T) {
	msg := message("Profile",
		field("id", 1, tInt32),
		inOneof(labeled(field("nickname", 2, tString), descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL), 0),
	)
	msg.Field[1].Proto3Optional = proto.Bool(true)
	msg.OneofDecl = oneofs("_nickname")
	fd := &descriptorpb.FileDescriptorProto{
		Syntax:      proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{msg},
	}

	got := mustRender(t, fd)
	assert.Contains(t, got, "    optional string nickname = 2;\n")
	assert.NotContains(t, got, "oneof")
}

func TestScatteredOneofMembersRenderAtFirstMember(t *testing.T) {
	msg := message("Mixed",
		inOneof(field("a", 1, tInt32), 0),
		field("plain", 2, tBool),
		inOneof(field("b", 3, tString), 0),
		inOneof(field("solo", 4, tInt32), 1),
	)
	msg.OneofDecl = oneofs("choice", "_solo")
	fd := &descriptorpb.FileDescriptorProto{MessageType: []*descriptorpb.DescriptorProto{msg}}

	want := `message Mixed {
    oneof choice {
        int32 a = 1;
        string b = 3;
    }
    bool plain = 2;
    optional int32 solo = 4;
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name   string
		syntax *string
		label  *descriptorpb.FieldDescriptorProto_Label
		want   string
	}{
		{name: "absent", label: nil, want: "    int32 v = 1;\n"},
		{name: "repeated", label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), want: "    repeated int32 v = 1;\n"},
		{name: "required", syntax: proto.String("proto2"), label: descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum(), want: "    required int32 v = 1;\n"},
		{name: "optional proto2", syntax: proto.String("proto2"), label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), want: "    optional int32 v = 1;\n"},
		{name: "optional no syntax", label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), want: "    optional int32 v = 1;\n"},
		{name: "optional proto3", syntax: proto.String("proto3"), label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), want: "    int32 v = 1;\n"},
		{name: "repeated proto3", syntax: proto.String("proto3"), label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), want: "    repeated int32 v = 1;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := field("v", 1, tInt32)
			f.Label = tt.label
			fd := &descriptorpb.FileDescriptorProto{
				Syntax:      tt.syntax,
				MessageType: []*descriptorpb.DescriptorProto{message("M", f)},
			}
			assert.Contains(t, mustRender(t, fd), "message M {\n"+tt.want+"}\n")
		})
	}
}

func TestTypeNames(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		MessageType: []*descriptorpb.DescriptorProto{message("Holder",
			ref("c", 1, tMessage, ".a.b.C"),
			ref("color", 2, tEnum, ".a.b.Color"),
			ref("bare", 3, tMessage, "Bare"),
		)},
	}

	short := mustRender(t, fd)
	assert.Contains(t, short, "    C c = 1;\n")
	assert.Contains(t, short, "    Color color = 2;\n")
	assert.Contains(t, short, "    Bare bare = 3;\n")

	qualified := mustRender(t, fd, protosrc.WithTypeNames(protosrc.QualifiedTypeNames))
	assert.Contains(t, qualified, "    .a.b.C c = 1;\n")
	assert.Contains(t, qualified, "    .a.b.Color color = 2;\n")
}

func TestUnresolvedReferenceWithoutType(t *testing.T) {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String("when"),
		Number:   proto.Int32(1),
		TypeName: proto.String("google.protobuf.Timestamp"),
	}
	fd := &descriptorpb.FileDescriptorProto{MessageType: []*descriptorpb.DescriptorProto{message("M", f)}}
	assert.Contains(t, mustRender(t, fd), "    Timestamp when = 1;\n")
}

func TestAllScalarTypes(t *testing.T) {
	kinds := []struct {
		typ  fieldType
		name string
	}{
		{descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, "double"},
		{descriptorpb.FieldDescriptorProto_TYPE_FLOAT, "float"},
		{descriptorpb.FieldDescriptorProto_TYPE_INT32, "int32"},
		{descriptorpb.FieldDescriptorProto_TYPE_INT64, "int64"},
		{descriptorpb.FieldDescriptorProto_TYPE_UINT32, "uint32"},
		{descriptorpb.FieldDescriptorProto_TYPE_UINT64, "uint64"},
		{descriptorpb.FieldDescriptorProto_TYPE_SINT32, "sint32"},
		{descriptorpb.FieldDescriptorProto_TYPE_SINT64, "sint64"},
		{descriptorpb.FieldDescriptorProto_TYPE_FIXED32, "fixed32"},
		{descriptorpb.FieldDescriptorProto_TYPE_FIXED64, "fixed64"},
		{descriptorpb.FieldDescriptorProto_TYPE_SFIXED32, "sfixed32"},
		{descriptorpb.FieldDescriptorProto_TYPE_SFIXED64, "sfixed64"},
		{descriptorpb.FieldDescriptorProto_TYPE_BOOL, "bool"},
		{descriptorpb.FieldDescriptorProto_TYPE_STRING, "string"},
		{descriptorpb.FieldDescriptorProto_TYPE_BYTES, "bytes"},
	}
	msg := message("Scalars")
	var want strings.Builder
	want.WriteString("message Scalars {\n")
	for i, k := range kinds {
		msg.Field = append(msg.Field, field("f_"+k.name, int32(i+1), k.typ))
		want.WriteString("    " + k.name + " f_" + k.name + " = " + itoa(i+1) + ";\n")
	}
	want.WriteString("}\n")

	fd := &descriptorpb.FileDescriptorProto{MessageType: []*descriptorpb.DescriptorProto{msg}}
	assertText(t, want.String(), mustRender(t, fd))
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestNestedDeclarations(t *testing.T) {
	inner := message("Inner", field("x", 1, tInt32))
	inner.NestedType = []*descriptorpb.DescriptorProto{message("Deep")}
	outer := message("Outer", ref("inner", 1, tMessage, ".pkg.Outer.Inner"))
	outer.NestedType = []*descriptorpb.DescriptorProto{inner, nil, message("Other")}
	outer.EnumType = []*descriptorpb.EnumDescriptorProto{enum("Kind", "KIND_UNSPECIFIED"), enum("Mode", "MODE_UNSPECIFIED")}

	fd := &descriptorpb.FileDescriptorProto{MessageType: []*descriptorpb.DescriptorProto{outer}}
	want := `message Outer {
    Inner inner = 1;

    message Inner {
        int32 x = 1;

        message Deep {
        }
    }

    message Other {
    }

    enum Kind {
        KIND_UNSPECIFIED = 0;
    }

    enum Mode {
        MODE_UNSPECIFIED = 0;
    }
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestHeader(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Syntax:           proto.String("proto3"),
		Package:          proto.String("acme.v1"),
		Dependency:       []string{"./local/dep.proto", "", "  ", "google/protobuf/any.proto", "shared/public.proto", "legacy/weak.proto"},
		PublicDependency: []int32{4},
		WeakDependency:   []int32{5},
		Service:          []*descriptorpb.ServiceDescriptorProto{service("Greeter")},
	}
	want := `syntax = "proto3";

import "local/dep.proto";
import "google/protobuf/any.proto";
import public "shared/public.proto";
import weak "legacy/weak.proto";

package acme.v1;

service Greeter {
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestBlankImportsOnlyAddNoSeparator(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Dependency: []string{"", " "},
		Package:    proto.String("p"),
	}
	assertText(t, "package p;\n\n", mustRender(t, fd))
}

func TestImportPrefixes(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{Dependency: []string{"gen/include/a.proto", "./b.proto"}}

	got := mustRender(t, fd, protosrc.WithImportPrefixes("gen/include/"))
	assertText(t, "import \"a.proto\";\nimport \"./b.proto\";\n\n", got)

	got = mustRender(t, fd, protosrc.WithImportPrefixes())
	assertText(t, "import \"gen/include/a.proto\";\nimport \"./b.proto\";\n\n", got)
}

func TestEditionsHeader(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Syntax:  proto.String("editions"),
		Edition: descriptorpb.Edition_EDITION_2023.Enum(),
		MessageType: []*descriptorpb.DescriptorProto{message("M",
			labeled(field("v", 1, tInt32), descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
		)},
	}
	want := `edition = "2023";

message M {
    int32 v = 1;
}
`
	assertText(t, want, mustRender(t, fd))
}

func TestDeclarationOrder(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		MessageType: []*descriptorpb.DescriptorProto{message("M")},
		EnumType:    []*descriptorpb.EnumDescriptorProto{enum("E")},
		Service:     []*descriptorpb.ServiceDescriptorProto{service("S")},
	}

	assertText(t, "service S {\n}\n\nenum E {\n}\n\nmessage M {\n}\n", mustRender(t, fd))
	assertText(t, "message M {\n}\n\nenum E {\n}\n\nservice S {\n}\n",
		mustRender(t, fd, protosrc.WithOrder(protosrc.MessagesFirst)))
}

func TestTopLevelBlocksAreSeparatedByOneBlankLine(t *testing.T) {
	for n := 0; n <= 6; n++ {
		fd := &descriptorpb.FileDescriptorProto{}
		for i := 0; i < n; i++ {
			name := "D" + itoa(i)
			switch i % 3 {
			case 0:
				fd.Service = append(fd.Service, service(name), nil)
			case 1:
				fd.EnumType = append(fd.EnumType, nil, enum(name))
			default:
				fd.MessageType = append(fd.MessageType, message(name))
			}
		}
		got := mustRender(t, fd)
		if n == 0 {
			assert.Empty(t, got)
			continue
		}
		blocks := strings.Split(got, "\n\n")
		assert.Len(t, blocks, n, "n=%d", n)
		assert.NotContains(t, got, "\n\n\n")
		assert.False(t, strings.HasSuffix(got, "\n\n"), "trailing blank line for n=%d", n)
		assert.False(t, strings.HasPrefix(got, "\n"), "leading blank line for n=%d", n)
	}
}

func TestCustomIndentation(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		EnumType: []*descriptorpb.EnumDescriptorProto{enum("E", "A")},
	}
	assertText(t, "enum E {\n\tA = 0;\n}\n", mustRender(t, fd, protosrc.WithIndent('\t', 1)))
}

func TestInvalidIndentation(t *testing.T) {
	_, err := protosrc.New(protosrc.WithIndent('*', 2))
	require.ErrorIs(t, err, protosrc.ErrInvalidConfiguration)

	_, err = protosrc.New(protosrc.WithIndent(' ', 0))
	require.ErrorIs(t, err, protosrc.ErrInvalidConfiguration)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  *descriptorpb.DescriptorProto
		want error
	}{
		{
			name: "message without type name",
			msg:  message("M", field("other", 1, tMessage)),
			want: protosrc.ErrMalformedDescriptor,
		},
		{
			name: "enum without type name",
			msg:  message("M", field("color", 1, tEnum)),
			want: protosrc.ErrMalformedDescriptor,
		},
		{
			name: "no type at all",
			msg:  message("M", &descriptorpb.FieldDescriptorProto{Name: proto.String("x"), Number: proto.Int32(1)}),
			want: protosrc.ErrMalformedDescriptor,
		},
		{
			name: "oneof index out of range",
			msg:  message("M", inOneof(field("x", 1, tInt32), 3)),
			want: protosrc.ErrMalformedDescriptor,
		},
		{
			name: "group",
			msg:  message("M", ref("g", 1, descriptorpb.FieldDescriptorProto_TYPE_GROUP, ".M.G")),
			want: protosrc.ErrUnsupportedType,
		},
		{
			name: "unknown type code",
			msg:  message("M", field("x", 1, fieldType(99))),
			want: protosrc.ErrUnsupportedType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd := &descriptorpb.FileDescriptorProto{
				Name:        proto.String("bad.proto"),
				Syntax:      proto.String("proto3"),
				MessageType: []*descriptorpb.DescriptorProto{message("Fine", field("ok", 1, tInt32)), tt.msg},
			}
			out, err := protosrc.Render(fd)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, out)
			assert.Contains(t, err.Error(), `"bad.proto"`)
		})
	}
}

func TestNestedErrorNamesElementPath(t *testing.T) {
	inner := message("Inner", field("broken", 1, tMessage))
	outer := message("Outer")
	outer.NestedType = []*descriptorpb.DescriptorProto{inner}
	fd := &descriptorpb.FileDescriptorProto{
		Package:     proto.String("demo"),
		MessageType: []*descriptorpb.DescriptorProto{outer},
	}
	_, err := protosrc.Render(fd)
	require.ErrorIs(t, err, protosrc.ErrMalformedDescriptor)
	assert.Contains(t, err.Error(), "demo.Outer.Inner.broken")
}

func TestRenderIsIdempotentAndConcurrent(t *testing.T) {
	msg := message("Event",
		inOneof(field("text", 1, tString), 0),
		inOneof(field("code", 2, tInt32), 0),
		labeled(ref("tags", 3, tEnum, ".demo.Tag"), descriptorpb.FieldDescriptorProto_LABEL_REPEATED),
	)
	msg.OneofDecl = oneofs("payload")
	fd := &descriptorpb.FileDescriptorProto{
		Syntax:      proto.String("proto3"),
		Package:     proto.String("demo"),
		EnumType:    []*descriptorpb.EnumDescriptorProto{enum("Tag", "TAG_UNSPECIFIED")},
		MessageType: []*descriptorpb.DescriptorProto{msg},
	}
	before := proto.Clone(fd)

	r, err := protosrc.New()
	require.NoError(t, err)
	first, err := r.Render(fd)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Render(fd)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, first, got)
	}
	assert.True(t, proto.Equal(before, fd), "renderer mutated its input")
}

func TestRenderDescriptor(t *testing.T) {
	r, err := protosrc.New(protosrc.WithTypeNames(protosrc.QualifiedTypeNames))
	require.NoError(t, err)

	out, err := r.RenderDescriptor(timestamppb.File_google_protobuf_timestamp_proto)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "syntax = \"proto3\";\n\npackage google.protobuf;\n\n"))
	assert.Contains(t, out, "message Timestamp {\n    int64 seconds = 1;\n    int32 nanos = 2;\n}\n")
}

func TestRenderRoundTripsThroughProtodesc(t *testing.T) {
	fdp := protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto)
	a, err := protosrc.Render(fdp)
	require.NoError(t, err)
	b, err := protosrc.Render(proto.Clone(fdp).(*descriptorpb.FileDescriptorProto))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "C", protosrc.LastSegment("a.b.C"))
	assert.Equal(t, "C", protosrc.LastSegment(".a.b.C"))
	assert.Equal(t, "C", protosrc.LastSegment("C"))
	assert.Equal(t, "", protosrc.LastSegment("a."))
}
