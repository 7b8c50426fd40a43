// Copyright © 2025 The cinder authors

package profiler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/reader/token"
)

// ContextTracerKey looks up a parent tracer name from a context value.
const ContextTracerKey = "cinderParentTracer"

var _ eval.Profiler = (*OtelAnnotator)(nil)

// OtelAnnotator emits OpenTelemetry spans for function activations and
// backend compilations.  Activation spans nest following the call stack;
// compilation spans attach to the context current at submission.
type OtelAnnotator struct {
	base

	mu  sync.Mutex
	ctx context.Context
}

// NewOtelAnnotator returns an annotator appending spans under
// parentContext.  The context must be linked to an OpenTelemetry tracer
// provider for spans to be recorded.
func NewOtelAnnotator(parentContext context.Context, opts ...Option) *OtelAnnotator {
	if parentContext == nil {
		parentContext = context.Background()
	}
	p := &OtelAnnotator{ctx: parentContext}
	p.applyOptions(opts...)
	return p
}

func contextTracer(ctx context.Context) trace.Tracer {
	tracerName, ok := ctx.Value(ContextTracerKey).(string)
	if !ok {
		tracerName = "cinder"
	}
	return otel.GetTracerProvider().Tracer(tracerName)
}

// EnterCall opens a span for one function activation.  The returned
// function ends the span and restores the caller's context.
func (p *OtelAnnotator) EnterCall(name string, loc *token.Location) func() {
	if p.skipName(name) {
		return func() {}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	oldCtx := p.ctx
	ctx, span := contextTracer(p.ctx).Start(p.ctx, p.label(name))
	span.SetAttributes(codeAttributes(name, loc)...)
	p.ctx = ctx
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		span.End()
		p.ctx = oldCtx
	}
}

// CompileUnit records one backend compilation as a span covering its
// duration.
func (p *OtelAnnotator) CompileUnit(unit string, d time.Duration, err error) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	end := time.Now()
	_, span := contextTracer(ctx).Start(ctx, "compile "+unit,
		trace.WithTimestamp(end.Add(-d)))
	span.SetAttributes(
		attribute.String("cinder.unit", unit),
		attribute.Int64("cinder.compile_us", d.Microseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))
}

func codeAttributes(name string, loc *token.Location) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.CodeFunction(name),
	}
	if loc != nil && loc.Pos >= 0 {
		attrs = append(attrs,
			semconv.CodeFilepath(loc.File),
			semconv.CodeLineNumber(loc.Line),
			semconv.CodeColumn(loc.Col),
		)
	}
	return attrs
}
