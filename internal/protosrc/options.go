package protosrc

import (
	"github.com/hanpama/protodump/internal/srcwriter"
)

// TypeNames selects how message and enum references are written.
type TypeNames int

const (
	// ShortTypeNames writes only the last segment of a type name ("C" for
	// ".a.b.C"). The package is declared once per file, which keeps most
	// references readable.
	ShortTypeNames TypeNames = iota
	// QualifiedTypeNames writes type names exactly as the descriptor holds
	// them.
	QualifiedTypeNames
)

// Order selects the order of top-level declaration groups.
type Order int

const (
	// ServicesFirst emits services, then enums, then messages.
	ServicesFirst Order = iota
	// MessagesFirst emits messages, then enums, then services.
	MessagesFirst
)

// DefaultImportPrefixes are the synthetic include markers removed from
// import paths unless overridden with WithImportPrefixes.
var DefaultImportPrefixes = []string{"./"}

// Options configures a Renderer.
//
// Defaults:
// - TypeNames:      ShortTypeNames
// - Order:          ServicesFirst
// - IndentChar:     ' '
// - IndentWidth:    4
// - ImportPrefixes: DefaultImportPrefixes
type Options struct {
	TypeNames      TypeNames
	Order          Order
	IndentChar     rune
	IndentWidth    int
	ImportPrefixes []string
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		TypeNames:      ShortTypeNames,
		Order:          ServicesFirst,
		IndentChar:     ' ',
		IndentWidth:    4,
		ImportPrefixes: DefaultImportPrefixes,
	}
}

func WithTypeNames(n TypeNames) Option { return func(o *Options) { o.TypeNames = n } }
func WithOrder(order Order) Option    { return func(o *Options) { o.Order = order } }

// WithIndent sets the indentation character and width per level.
func WithIndent(char rune, width int) Option {
	return func(o *Options) {
		o.IndentChar = char
		o.IndentWidth = width
	}
}

// WithImportPrefixes replaces the list of prefixes stripped from import
// paths. Passing no prefixes disables stripping.
func WithImportPrefixes(prefixes ...string) Option {
	return func(o *Options) { o.ImportPrefixes = prefixes }
}

func (o *Options) writerOptions() []srcwriter.Option {
	return []srcwriter.Option{srcwriter.WithIndent(o.IndentChar, o.IndentWidth)}
}
