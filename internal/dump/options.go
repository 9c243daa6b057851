package dump

import (
	"io"
	"log"
	"runtime"

	"github.com/hanpama/protodump/internal/eventbus"
	"github.com/hanpama/protodump/internal/protosrc"
)

// Options configures a Dumper.
type Options struct {
	// Renderer turns descriptors into source text. Nil means a renderer
	// with default options.
	Renderer *protosrc.Renderer
	// Workers bounds how many files are rendered and written at once.
	Workers int
	// KeepGoing records per-file failures and continues with the remaining
	// files instead of aborting the run.
	KeepGoing bool
	Logger    *log.Logger
	Bus       *eventbus.Bus
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Workers: runtime.GOMAXPROCS(0),
		Logger:  log.New(io.Discard, "", 0),
	}
}

// WithRenderer sets the renderer used for every file.
func WithRenderer(r *protosrc.Renderer) Option { return func(o *Options) { o.Renderer = r } }

// WithWorkers sets the number of concurrent workers. Values below one are
// treated as one.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.Workers = n
	}
}

// WithKeepGoing toggles keep-going mode.
func WithKeepGoing(v bool) Option { return func(o *Options) { o.KeepGoing = v } }

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		o.Logger = l
	}
}

// WithBus publishes run and file events on b.
func WithBus(b *eventbus.Bus) Option { return func(o *Options) { o.Bus = b } }
