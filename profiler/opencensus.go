// Copyright © 2025 The cinder authors

package profiler

import (
	"context"
	"sync"
	"time"

	octrace "go.opencensus.io/trace"

	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/reader/token"
)

var _ eval.Profiler = (*OpenCensusAnnotator)(nil)

// OpenCensusAnnotator emits OpenCensus spans for function activations and
// backend compilations.
type OpenCensusAnnotator struct {
	base

	mu  sync.Mutex
	ctx context.Context
}

// NewOpenCensusAnnotator returns an annotator appending spans under
// parentContext.
func NewOpenCensusAnnotator(parentContext context.Context, opts ...Option) *OpenCensusAnnotator {
	if parentContext == nil {
		parentContext = context.Background()
	}
	p := &OpenCensusAnnotator{ctx: parentContext}
	p.applyOptions(opts...)
	return p
}

// EnterCall opens a span for one function activation.
func (p *OpenCensusAnnotator) EnterCall(name string, loc *token.Location) func() {
	if p.skipName(name) {
		return func() {}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	oldCtx := p.ctx
	ctx, span := octrace.StartSpan(p.ctx, p.label(name))
	if loc != nil && loc.Pos >= 0 {
		span.AddAttributes(
			octrace.StringAttribute("file", loc.File),
			octrace.Int64Attribute("line", int64(loc.Line)),
		)
	}
	p.ctx = ctx
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		span.End()
		p.ctx = oldCtx
	}
}

// CompileUnit records one backend compilation as a span.
func (p *OpenCensusAnnotator) CompileUnit(unit string, d time.Duration, err error) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	_, span := octrace.StartSpan(ctx, "compile "+unit)
	span.AddAttributes(
		octrace.StringAttribute("unit", unit),
		octrace.Int64Attribute("compile_us", d.Microseconds()),
	)
	if err != nil {
		span.SetStatus(octrace.Status{
			Code:    octrace.StatusCodeInternal,
			Message: err.Error(),
		})
	}
	span.End()
}
