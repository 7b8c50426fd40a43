// Copyright © 2025 The cinder authors

// Package repl implements the interactive read-eval-print loop.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"

	"github.com/cinderlang/cinder/diagnostic"
	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/reader"
	"github.com/cinderlang/cinder/runtime"
)

type config struct {
	stdin  io.ReadCloser
	stderr io.WriteCloser
	color  diagnostic.ColorMode
}

func newConfig(opts ...Option) *config {
	cfg := &config{color: diagnostic.ColorAuto}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a REPL run.
type Option func(*config)

// WithStdin overrides the input to the REPL.
func WithStdin(stdin io.ReadCloser) Option {
	return func(c *config) {
		c.stdin = stdin
	}
}

// WithStderr overrides the output of the REPL.
func WithStderr(stderr io.WriteCloser) Option {
	return func(c *config) {
		c.stderr = stderr
	}
}

// WithColor controls diagnostic coloring.
func WithColor(mode diagnostic.ColorMode) Option {
	return func(c *config) {
		c.color = mode
	}
}

// Run starts a REPL on a fresh session.
func Run(prompt string, opts ...Option) {
	s, err := eval.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "session initialization failure: %v\n", err)
		os.Exit(1)
	}
	RunSession(s, prompt, opts...)
}

// RunSession runs a REPL against an existing session.  Input forms may span
// lines; the loop keeps reading until delimiters balance.
func RunSession(s *eval.Session, prompt string, opts ...Option) {
	cfg := newConfig(opts...)
	stderr := io.WriteCloser(os.Stderr)
	if cfg.stderr != nil {
		stderr = cfg.stderr
	}
	cont := strings.Repeat(" ", len(prompt))

	rlCfg := &readline.Config{
		Stdout:            stderr,
		Stderr:            stderr,
		Prompt:            prompt,
		HistoryFile:       historyPath(),
		HistorySearchFold: true,
		AutoComplete:      &symbolCompleter{session: s},
	}
	if cfg.stdin != nil {
		rlCfg.Stdin = cfg.stdin
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		panic(err)
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	// history buffers every submitted line so diagnostics can annotate
	// them; line N of the synthetic file is entry N of the history.
	var history []string
	renderer := &diagnostic.Renderer{
		Color: cfg.color,
		SourceReader: func(name string) ([]byte, error) {
			if name != replFile {
				return os.ReadFile(name)
			}
			return []byte(strings.Join(history, "\n")), nil
		},
	}

	for {
		text, ok := readForm(rl, prompt, cont, &history)
		if !ok {
			return
		}
		// Offset the reader so locations index into the history file.
		pad := strings.Repeat("\n", len(history)-strings.Count(text, "\n")-1)
		forms, err := reader.ReadString(replFile, pad+text)
		if err != nil {
			fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort error display
			continue
		}
		for _, form := range forms {
			val := s.Eval(form)
			if val.Tag == runtime.TagError {
				d := diagnostic.FromError((*runtime.ErrorVal)(val), runtime.DefaultLangNS)
				_ = renderer.Render(stderr, d)
				continue
			}
			fmt.Fprintln(stderr, val) //nolint:errcheck // best-effort REPL output
		}
	}
}

const replFile = "<repl>"

// readForm accumulates lines until every delimiter opened on the first
// line is closed.  It returns false on EOF.
func readForm(rl *readline.Instance, prompt, cont string, history *[]string) (string, bool) {
	var lines []string
	rl.SetPrompt(prompt)
	for {
		raw, err := rl.ReadSlice()
		if err == readline.ErrInterrupt {
			lines = nil
			rl.SetPrompt(prompt)
			continue
		}
		if err != nil {
			return "", false
		}
		line := string(raw)
		if len(lines) == 0 && strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		*history = append(*history, line)
		text := strings.Join(lines, "\n")
		if balancedDelimiters(text) {
			return text, true
		}
		rl.SetPrompt(cont)
	}
}

// balancedDelimiters reports whether every list, vector, and map opened in
// text is closed, ignoring delimiters inside strings and comments.  Excess
// closers also report balanced; the reader owns that error.
func balancedDelimiters(text string) bool {
	depth := 0
	inString := false
	inComment := false
	escaped := false
	for _, r := range text {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		default:
			switch r {
			case '"':
				inString = true
			case ';':
				inComment = true
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
				if depth < 0 {
					return true
				}
			}
		}
	}
	return depth == 0 && !inString
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cinder_history")
}
