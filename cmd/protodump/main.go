package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/hanpama/protodump/internal/dump"
	"github.com/hanpama/protodump/internal/eventbus"
	"github.com/hanpama/protodump/internal/otel"
	"github.com/hanpama/protodump/internal/protosrc"
	"github.com/hanpama/protodump/internal/provider"
	"github.com/hanpama/protodump/internal/sink"
)

const rootUsage = `protodump: recover .proto sources from compiled descriptors

USAGE:
  protodump <command> [flags]

COMMANDS:
  dump             Render descriptors back into .proto files
  help             Show help for any command
`

const dumpUsage = `dump FLAGS:
  -source.protoset <file>             Read a serialized FileDescriptorSet. Repeatable
  -source.proto <file>                Compile a .proto file. Repeatable
  -source.import-path <dir>           Import path for -source.proto. Repeatable
  -source.reflect <host:port>         Fetch descriptors over gRPC server reflection
  -source.reflect-timeout <duration>  Reflection timeout, e.g. 10s (default: 10s)
  -source.registry                    Dump the descriptors linked into this binary
  -source.package <name>              Keep only this package and its sub-packages.
                                      Repeatable
  -out <dir|->                        Output directory, or - for stdout (required)
  -out.timestamp                      Write into a timestamped sub-directory
  -render.qualified-types             Keep fully qualified type names
  -render.messages-first              Emit messages before enums and services
  -render.indent N                    Indent width (default: 4)
  -render.tabs                        Indent with tabs
  -render.strip-import-prefix <p>     Strip prefix from import paths. Repeatable
                                      (default: ./)
  -workers N                          Concurrent files (default: GOMAXPROCS)
  -keep-going                         Skip files that fail and report them at the end
  -v                                  Log progress to stderr
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: protodump)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("protodump", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "dump":
		return cmdDump(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "dump":
		fmt.Print(dumpUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type sourceFlags struct {
	protosets     stringListFlag
	protos        stringListFlag
	importPaths   stringListFlag
	reflect       string
	reflectTimeout time.Duration
	registry      bool
	packages      stringListFlag
}

func (f *sourceFlags) provider() (provider.Provider, error) {
	var ps []provider.Provider
	if len(f.protosets) > 0 {
		p, err := provider.NewProtoset(f.protosets...)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	if len(f.protos) > 0 {
		paths := f.importPaths
		if len(paths) == 0 {
			paths = stringListFlag{"."}
		}
		p, err := provider.NewCompiler(paths, f.protos...)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	if f.reflect != "" {
		ps = append(ps, provider.NewReflection(f.reflect, provider.WithTimeout(f.reflectTimeout)))
	}
	if f.registry {
		ps = append(ps, provider.NewRegistry(nil))
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("at least one -source.* flag is required")
	}
	return provider.FilterPackages(provider.Concat(ps...), f.packages...), nil
}

type renderFlags struct {
	qualified     bool
	messagesFirst bool
	indent        int
	tabs          bool
	stripPrefixes stringListFlag
}

func (f *renderFlags) renderer() (*protosrc.Renderer, error) {
	var opts []protosrc.Option
	if f.qualified {
		opts = append(opts, protosrc.WithTypeNames(protosrc.QualifiedTypeNames))
	}
	if f.messagesFirst {
		opts = append(opts, protosrc.WithOrder(protosrc.MessagesFirst))
	}
	char := ' '
	if f.tabs {
		char = '\t'
	}
	opts = append(opts, protosrc.WithIndent(char, f.indent))
	if len(f.stripPrefixes) > 0 {
		opts = append(opts, protosrc.WithImportPrefixes(f.stripPrefixes...))
	}
	return protosrc.New(opts...)
}

func cmdDump(args []string) error {
	var src sourceFlags
	src.reflectTimeout = 10 * time.Second
	rf := renderFlags{indent: 4}
	out := ""
	timestamp := false
	workers := 0
	keepGoing := false
	verbose := false
	otelEndpoint := ""
	otelService := "protodump"

	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.Var(&src.protosets, "source.protoset", "Serialized FileDescriptorSet")
	fs.Var(&src.protos, "source.proto", ".proto file to compile")
	fs.Var(&src.importPaths, "source.import-path", "Import path for -source.proto")
	fs.StringVar(&src.reflect, "source.reflect", src.reflect, "gRPC reflection target")
	fs.DurationVar(&src.reflectTimeout, "source.reflect-timeout", src.reflectTimeout, "Reflection timeout")
	fs.BoolVar(&src.registry, "source.registry", src.registry, "Dump linked descriptors")
	fs.Var(&src.packages, "source.package", "Package filter")
	fs.StringVar(&out, "out", out, "Output directory or -")
	fs.BoolVar(&timestamp, "out.timestamp", timestamp, "Timestamped sub-directory")
	fs.BoolVar(&rf.qualified, "render.qualified-types", rf.qualified, "Keep qualified type names")
	fs.BoolVar(&rf.messagesFirst, "render.messages-first", rf.messagesFirst, "Messages before enums and services")
	fs.IntVar(&rf.indent, "render.indent", rf.indent, "Indent width")
	fs.BoolVar(&rf.tabs, "render.tabs", rf.tabs, "Indent with tabs")
	fs.Var(&rf.stripPrefixes, "render.strip-import-prefix", "Import prefix to strip")
	fs.IntVar(&workers, "workers", workers, "Concurrent files")
	fs.BoolVar(&keepGoing, "keep-going", keepGoing, "Skip failing files")
	fs.BoolVar(&verbose, "v", verbose, "Verbose logging")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, dumpUsage)
		return err
	}
	if out == "" {
		fmt.Fprint(os.Stderr, dumpUsage)
		return fmt.Errorf("-out is required")
	}

	p, err := src.provider()
	if err != nil {
		fmt.Fprint(os.Stderr, dumpUsage)
		return err
	}
	r, err := rf.renderer()
	if err != nil {
		return fmt.Errorf("render options: %w", err)
	}

	var s sink.Sink
	if out == "-" {
		s = sink.NewStream(os.Stdout)
	} else {
		var dopts []sink.DirOption
		if timestamp {
			dopts = append(dopts, sink.WithTimestamp(time.Now()))
		}
		s, err = sink.NewDir(out, dopts...)
		if err != nil {
			return err
		}
	}

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "protodump: ", log.LstdFlags)
	}

	bus := eventbus.New()
	shutdown, err := otel.Setup(bus, otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	dopts := []dump.Option{
		dump.WithRenderer(r),
		dump.WithKeepGoing(keepGoing),
		dump.WithLogger(logger),
		dump.WithBus(bus),
	}
	if workers > 0 {
		dopts = append(dopts, dump.WithWorkers(workers))
	}
	rep, err := dump.New(p, s, dopts...).Run(context.Background())
	if err != nil {
		return err
	}
	if err := rep.Err(); err != nil {
		return fmt.Errorf("%d of %d files failed: %w", len(rep.Failed), rep.Files, err)
	}
	return nil
}
