package protosrc

import (
	"errors"

	"github.com/hanpama/protodump/internal/srcwriter"
)

var (
	// ErrMalformedDescriptor indicates a reference field without a type name
	// or a oneof index that points at no declared oneof.
	ErrMalformedDescriptor = errors.New("protosrc: malformed descriptor")
	// ErrUnsupportedType indicates a field type outside the renderable set.
	ErrUnsupportedType = errors.New("protosrc: unsupported field type")
	// ErrInvalidConfiguration is returned by New for unusable indentation.
	ErrInvalidConfiguration = srcwriter.ErrInvalidConfiguration
)
