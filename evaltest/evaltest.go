// Copyright © 2025 The cinder authors

// Package evaltest runs table-driven language tests against isolated
// sessions.  Each sequence evaluates expressions in order against one
// session and checks the rendered result and printed output per step.
package evaltest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/reader"
	"github.com/cinderlang/cinder/runtime"
)

// TestSequence is a sequence of expressions evaluated sequentially by one
// session.
type TestSequence []struct {
	Expr   string // an expression
	Result string // the rendered evaluation result
	Output string // output printed to the session's stdout
}

// TestSuite is a set of named TestSequences.
type TestSuite []struct {
	Name string
	TestSequence
}

// RunTestSuite runs each TestSequence in tests on isolated sessions.
func RunTestSuite(t *testing.T, tests TestSuite, configs ...eval.Config) {
	for i, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var output bytes.Buffer
			logger := NewLogger(t)
			defer logger.Flush()
			cfgs := append([]eval.Config{
				eval.WithStdout(&output),
				eval.WithStderr(logger),
			}, configs...)
			s, err := eval.New(cfgs...)
			if err != nil {
				t.Fatalf("test %d %q: session: %v", i, test.Name, err)
			}
			for j, step := range test.TestSequence {
				output.Reset()
				forms, err := reader.ReadString("test", step.Expr)
				if err != nil {
					t.Errorf("test %d %q: expr %d: parse error: %v", i, test.Name, j, err)
					continue
				}
				if len(forms) != 1 {
					t.Errorf("test %d %q: expr %d: expected one expression, parsed %d", i, test.Name, j, len(forms))
					continue
				}
				result := s.Eval(forms[0]).String()
				if result != step.Result {
					t.Errorf("test %d %q: expr %d: expected result %s (got %s)", i, test.Name, j, step.Result, result)
				}
				if output.String() != step.Output {
					t.Errorf("test %d %q: expr %d: expected output %q (got %q)", i, test.Name, j, step.Output, output.String())
				}
			}
		})
	}
}

// RunBenchmark executes the expressions parsed from source against a fresh
// session per iteration.
func RunBenchmark(b *testing.B, source string) {
	b.StopTimer()
	exprs, err := reader.ReadString("benchmark", source)
	if err != nil {
		b.Fatalf("parse error: %v", err)
	}
	for i := 0; i < b.N; i++ {
		s, err := eval.New(eval.WithStdout(new(strings.Builder)))
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
		for j, expr := range exprs {
			out := s.Eval(expr)
			if out.Tag == runtime.TagError {
				b.Fatalf("expr %d: %v", j, runtime.GoError(out))
			}
		}
		b.StopTimer()
	}
}
