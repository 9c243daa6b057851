// Package dump renders every file a provider yields and hands the text to a
// sink.
package dump

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hanpama/protodump/internal/eventbus"
	"github.com/hanpama/protodump/internal/events"
	"github.com/hanpama/protodump/internal/protosrc"
	"github.com/hanpama/protodump/internal/provider"
	"github.com/hanpama/protodump/internal/runid"
	"github.com/hanpama/protodump/internal/sink"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Failure records a file that could not be rendered or written.
type Failure struct {
	Name string
	Err  error
}

// Report summarizes a run.
type Report struct {
	RunID string
	// Files is the number of descriptors loaded from the provider.
	Files int
	// Written lists output names in sorted order.
	Written []string
	// Failed lists failures in sorted name order. It is only populated in
	// keep-going mode.
	Failed   []Failure
	Duration time.Duration
}

// Err combines every recorded failure, or returns nil when there were none.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failed {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Name, f.Err))
	}
	return merr.ErrorOrNil()
}

// Dumper runs the load, render and write pipeline.
type Dumper struct {
	provider provider.Provider
	sink     sink.Sink
	opts     Options
}

// New creates a Dumper reading from p and writing to s.
func New(p provider.Provider, s sink.Sink, opts ...Option) *Dumper {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	if o.Renderer == nil {
		// default options always validate
		o.Renderer, _ = protosrc.New()
	}
	return &Dumper{provider: p, sink: s, opts: o}
}

type job struct {
	name string
	fd   *descriptorpb.FileDescriptorProto
}

// Run executes one dump. In abort mode the first failure cancels the
// remaining work and is returned. In keep-going mode Run returns nil once
// the files are loaded and failures are reported through the Report.
func (d *Dumper) Run(ctx context.Context) (*Report, error) {
	ctx, id := runid.NewContext(ctx)
	start := time.Now()
	rep := &Report{RunID: id}
	bus, logger := d.opts.Bus, d.opts.Logger

	eventbus.Publish(ctx, bus, events.DumpStart{RunID: id})
	err := d.run(ctx, rep)
	rep.Duration = time.Since(start)
	eventbus.Publish(ctx, bus, events.DumpFinish{
		RunID:    id,
		Files:    rep.Files,
		Written:  len(rep.Written),
		Failed:   len(rep.Failed),
		Err:      errors.Join(err, rep.Err()),
		Duration: rep.Duration,
	})
	if err != nil {
		logger.Printf("run %s failed: %v", id, err)
		return rep, err
	}
	logger.Printf("run %s: wrote %d of %d files in %s", id, len(rep.Written), rep.Files, rep.Duration)
	return rep, nil
}

func (d *Dumper) run(ctx context.Context, rep *Report) error {
	fds, err := d.provider.Files(ctx)
	if err != nil {
		return fmt.Errorf("dump: load descriptors: %w", err)
	}
	jobs := plan(fds)
	rep.Files = len(jobs)
	d.opts.Logger.Printf("run %s: loaded %d files", rep.RunID, len(jobs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := d.process(gctx, rep.RunID, j)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Written = append(rep.Written, j.name)
			case d.opts.KeepGoing:
				d.opts.Logger.Printf("skipping %s: %v", j.name, err)
				rep.Failed = append(rep.Failed, Failure{Name: j.name, Err: err})
			default:
				return fmt.Errorf("dump: %s: %w", j.name, err)
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		// a cancelled parent stops scheduling without any job failing
		err = ctx.Err()
	}
	sort.Strings(rep.Written)
	sort.Slice(rep.Failed, func(i, k int) bool { return rep.Failed[i].Name < rep.Failed[k].Name })
	return err
}

func (d *Dumper) process(ctx context.Context, id string, j job) error {
	bus := d.opts.Bus
	start := time.Now()
	eventbus.Publish(ctx, bus, events.FileStart{RunID: id, Name: j.name})
	text, err := d.opts.Renderer.Render(j.fd)
	if err == nil {
		err = d.sink.Write(ctx, j.name, text)
	}
	fin := events.FileFinish{RunID: id, Name: j.name, Err: err, Duration: time.Since(start)}
	if err == nil {
		fin.Bytes = len(text)
	}
	eventbus.Publish(ctx, bus, fin)
	return err
}

// plan drops absent descriptors and assigns every file its output name.
func plan(fds []*descriptorpb.FileDescriptorProto) []job {
	jobs := make([]job, 0, len(fds))
	for i, fd := range fds {
		if fd == nil {
			continue
		}
		jobs = append(jobs, job{name: OutputName(fd, i), fd: fd})
	}
	return jobs
}

// OutputName returns the name a file is written under: its own name, or
// "<package path>/unnamed_<index>.proto" when it has none.
func OutputName(fd *descriptorpb.FileDescriptorProto, index int) string {
	if name := fd.GetName(); name != "" {
		return name
	}
	base := fmt.Sprintf("unnamed_%d.proto", index)
	if pkg := fd.GetPackage(); pkg != "" {
		return strings.ReplaceAll(pkg, ".", "/") + "/" + base
	}
	return base
}
