package srcwriter

import "fmt"

// Options configures indentation.
//
// Defaults:
// - Char:  ' '
// - Width: 4
type Options struct {
	Char  rune
	Width int
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Char:  ' ',
		Width: 4,
	}
}

// WithIndent sets the indentation character and the number of characters per
// level.
func WithIndent(char rune, width int) Option {
	return func(o *Options) {
		o.Char = char
		o.Width = width
	}
}

func (o *Options) validate() error {
	if !isIndentChar(o.Char) {
		return fmt.Errorf("%w: indentation character %q is not whitespace", ErrInvalidConfiguration, o.Char)
	}
	if o.Width < 1 {
		return fmt.Errorf("%w: indentation width %d", ErrInvalidConfiguration, o.Width)
	}
	return nil
}

// Validate checks indentation settings without creating a Writer.
func Validate(char rune, width int) error {
	o := &Options{Char: char, Width: width}
	return o.validate()
}
