// Package srcwriter accumulates indented source text one logical line at a
// time. It knows nothing about what is being written; callers drive the
// indentation level and block structure.
package srcwriter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidConfiguration reports a bad indentation setup: a
	// non-whitespace indentation character, a width below 1 or a negative
	// indentation level.
	ErrInvalidConfiguration = errors.New("srcwriter: invalid configuration")
	// ErrSealed is recorded when text is appended after Seal.
	ErrSealed = errors.New("srcwriter: write after seal")
)

const (
	openBrace  = "{"
	closeBrace = "}"
	newline    = "\n"
)

// Writer is a line-oriented text accumulator. Errors are sticky: the first
// one is kept and returned by Seal, later appends become no-ops.
//
// The zero value is not usable; create writers with New.
type Writer struct {
	opts   *Options
	sb     strings.Builder
	level  int
	sealed bool
	text   string
	err    error
}

// New creates a Writer. It fails with ErrInvalidConfiguration when the
// indentation options are unusable.
func New(opts ...Option) (*Writer, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Writer{opts: o}, nil
}

// IndentChar returns the character used for indentation.
func (w *Writer) IndentChar() rune { return w.opts.Char }

// IndentWidth returns the number of indentation characters per level.
func (w *Writer) IndentWidth() int { return w.opts.Width }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.sb.Len() }

// Level returns the current indentation level.
func (w *Writer) Level() int { return w.level }

// SetLevel sets the indentation level. Negative levels are rejected.
func (w *Writer) SetLevel(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: indentation level %d", ErrInvalidConfiguration, n)
	}
	w.level = n
	return nil
}

// Indent increments the indentation level without writing anything.
func (w *Writer) Indent() { w.level++ }

// Dedent decrements the indentation level without writing anything.
func (w *Writer) Dedent() {
	if err := w.SetLevel(w.level - 1); err != nil {
		w.fail(err)
	}
}

// Line writes text followed by a line terminator. Every physical line of
// text is prefixed with the current indentation.
func (w *Writer) Line(text string) {
	if !w.writable() {
		return
	}
	if w.level == 0 {
		w.sb.WriteString(text)
		w.sb.WriteString(newline)
		return
	}
	if !strings.Contains(text, newline) {
		w.pad()
		w.sb.WriteString(text)
		w.sb.WriteString(newline)
		return
	}
	for _, line := range strings.Split(text, newline) {
		w.pad()
		w.sb.WriteString(line)
		w.sb.WriteString(newline)
	}
}

// Linef formats according to format and writes the result with Line.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// BlankLine writes an unindented empty line.
func (w *Writer) BlankLine() {
	if !w.writable() {
		return
	}
	w.sb.WriteString(newline)
}

// BlankLines writes n unindented empty lines.
func (w *Writer) BlankLines(n int) {
	for i := 0; i < n; i++ {
		w.BlankLine()
	}
}

// OpenBlock writes an indented opening brace and increments the level.
func (w *Writer) OpenBlock() {
	w.Line(openBrace)
	w.Indent()
}

// CloseBlock decrements the level and writes a closing brace at the parent
// level.
func (w *Writer) CloseBlock() {
	if w.level == 0 {
		w.fail(fmt.Errorf("%w: close block at level 0", ErrInvalidConfiguration))
		return
	}
	w.Dedent()
	w.Line(closeBrace)
}

// CloseAllBlocks closes blocks until the level returns to 0.
func (w *Writer) CloseAllBlocks() {
	for w.level > 0 && w.err == nil {
		w.CloseBlock()
	}
}

// Seal finalizes the writer and returns the accumulated text together with
// the first error recorded while writing. After Seal the text can no longer
// change: further appends record ErrSealed and are dropped. Seal may be
// called repeatedly.
func (w *Writer) Seal() (string, error) {
	if !w.sealed {
		w.sealed = true
		w.text = w.sb.String()
	}
	return w.text, w.err
}

// Err returns the first error recorded so far.
func (w *Writer) Err() error { return w.err }

func (w *Writer) writable() bool {
	if w.sealed {
		w.fail(ErrSealed)
		return false
	}
	return w.err == nil
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) pad() {
	n := w.opts.Width * w.level
	for i := 0; i < n; i++ {
		w.sb.WriteRune(w.opts.Char)
	}
}

// isIndentChar reports whether r may be used for indentation.
func isIndentChar(r rune) bool {
	return unicode.IsSpace(r) && r != '\n' && r != '\r'
}
