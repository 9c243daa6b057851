package otel

import (
	"context"
	"sync"

	"github.com/hanpama/protodump/internal/eventbus"
	"github.com/hanpama/protodump/internal/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches span subscribers to bus.
// If endpoint is empty, no telemetry is configured.
func Setup(bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(bus, tp.Tracer("protodump"))
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach subscribes span handlers using tracer and returns a function that
// removes them.
func Attach(bus *eventbus.Bus, tracer trace.Tracer) (detach func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type subscriber struct {
	tracer    trace.Tracer
	runSpans  sync.Map // run id -> trace.Span
	fileSpans sync.Map // run id + "\x00" + name -> trace.Span
}

func fileKey(runID, name string) string { return runID + "\x00" + name }

func (s *subscriber) register(bus *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(ctx context.Context, e events.DumpStart) {
			_, span := s.tracer.Start(ctx, "protodump.run")
			span.SetAttributes(attribute.String("protodump.run_id", e.RunID))
			s.runSpans.Store(e.RunID, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.DumpFinish) {
			v, ok := s.runSpans.LoadAndDelete(e.RunID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				attribute.Int("protodump.files", e.Files),
				attribute.Int("protodump.written", e.Written),
				attribute.Int("protodump.failed", e.Failed),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.FileStart) {
			parent := ctx
			if v, ok := s.runSpans.Load(e.RunID); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "protodump.file")
			span.SetAttributes(attribute.String("protodump.file", e.Name))
			s.fileSpans.Store(fileKey(e.RunID, e.Name), span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.FileFinish) {
			v, ok := s.fileSpans.LoadAndDelete(fileKey(e.RunID, e.Name))
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("protodump.bytes", e.Bytes))
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
