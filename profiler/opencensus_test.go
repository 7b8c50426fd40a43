// Copyright © 2025 The cinder authors

package profiler_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	octrace "go.opencensus.io/trace"

	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/profiler"
)

type ocCollector struct {
	mu    sync.Mutex
	names []string
}

func (c *ocCollector) ExportSpan(sd *octrace.SpanData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, sd.Name)
}

func TestOpenCensusAnnotator(t *testing.T) {
	collector := &ocCollector{}
	octrace.RegisterExporter(collector)
	defer octrace.UnregisterExporter(collector)
	octrace.ApplyConfig(octrace.Config{DefaultSampler: octrace.AlwaysSample()})

	p := profiler.NewOpenCensusAnnotator(context.Background())
	s, err := eval.New(eval.WithProfiler(p))
	require.NoError(t, err)

	evalAll(t, s, "(defn double [x] (+ x x))")
	evalAll(t, s, "(double 4)")

	collector.mu.Lock()
	defer collector.mu.Unlock()
	assert.Contains(t, collector.names, "double")
	assert.Contains(t, collector.names, "+")
}
