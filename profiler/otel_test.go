// Copyright © 2025 The cinder authors

package profiler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/profiler"
	"github.com/cinderlang/cinder/runtime"
)

func newExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.Cleanup(func() {
		assert.NoError(t, tp.Shutdown(context.Background()))
	})
	otel.SetTracerProvider(tp)
	return exporter
}

func evalAll(t *testing.T, s *eval.Session, src string) {
	t.Helper()
	out := s.EvalString(t.Name(), src)
	require.NotEqual(t, runtime.TagError, out.Tag, "eval error: %v", runtime.GoError(out))
}

func TestOtelAnnotator(t *testing.T) {
	exporter := newExporter(t)

	p := profiler.NewOtelAnnotator(context.Background())
	s, err := eval.New(eval.WithProfiler(p))
	require.NoError(t, err)

	evalAll(t, s, "(defn square [x] (* x x))")
	evalAll(t, s, "(square 5)")

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)

	var names []string
	for _, span := range spans {
		names = append(names, span.Name)
	}
	assert.Contains(t, names, "square")
	assert.Contains(t, names, "*")

	found := false
	for _, name := range names {
		if len(name) > 8 && name[:8] == "compile " {
			found = true
		}
	}
	assert.True(t, found, "expected a compilation span, got %v", names)
}

func TestOtelAnnotatorSkipAndLabel(t *testing.T) {
	exporter := newExporter(t)

	p := profiler.NewOtelAnnotator(context.Background(),
		profiler.WithSkipNames("*"),
		profiler.WithLabeler(func(name string) string {
			if name == "square" {
				return "user-square"
			}
			return ""
		}),
	)
	s, err := eval.New(eval.WithProfiler(p))
	require.NoError(t, err)

	evalAll(t, s, "(defn square [x] (* x x))")
	evalAll(t, s, "(square 5)")

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.Contains(t, names, "user-square")
	assert.NotContains(t, names, "*")
	assert.NotContains(t, names, "square")
}
