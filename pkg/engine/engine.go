// Package engine evaluates Lisp volume descriptions. It wraps zygomys in
// a sandboxed environment and produces a spec.Document from user source
// code.
//
// A description is a tree of (volume ...) forms, optionally wrapped in
// (geometry ...) together with material definitions:
//
//	(geometry
//	  (volume "World" :material "G4_AIR" :shape (envelope :padding 10)
//	    (volume "Detector" :material "G4_Si" :shape (box 10 10 1)
//	      :position (vec3 0 0 5) :roles (list :catch-ingoing))))
package engine

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/calzone/pkg/spec"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each evaluation. Non-positive values keep
// DefaultEvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: DefaultEvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate takes Lisp source code and produces a volume description.
//
// Return semantics:
//   - On success: returns document + nil errors + nil error
//   - On parse/eval failure: returns nil document + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*spec.Document, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate with a caller supplied deadline or
// cancellation, on top of the engine timeout.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*spec.Document, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		doc, errs, err := e.evaluate(source)
		ch <- outcome{doc: doc, errs: errs, err: err}
	}()
	return e.await(ctx, ch, gen)
}

// LoadFile evaluates the Lisp file at path. Evaluation errors are joined
// into the returned error.
func (e *Engine) LoadFile(path string) (*spec.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	doc, evalErrs, err := e.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		msgs := make([]string, len(evalErrs))
		for i, ee := range evalErrs {
			msgs[i] = ee.Error()
		}
		return nil, fmt.Errorf("engine: %s: %s", path, strings.Join(msgs, "; "))
	}
	return doc, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*spec.Document, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return nil, []EvalError{{Message: "no volume defined"}}, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	st := newState()
	registerBuiltins(env, st)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	last, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	doc, err := st.document(last)
	if err != nil {
		return nil, []EvalError{{Message: err.Error()}}, nil
	}
	return doc, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
