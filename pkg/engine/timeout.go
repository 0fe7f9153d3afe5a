package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/calzone/pkg/spec"
)

// DefaultEvalTimeout bounds the evaluation of one description.
const DefaultEvalTimeout = 5 * time.Second

var (
	// ErrEvalTimeout reports a description that did not finish in time.
	ErrEvalTimeout = errors.New("evaluation timed out")
	// ErrSuperseded reports an evaluation overtaken by a later Evaluate
	// call on the same engine.
	ErrSuperseded = errors.New("evaluation superseded by a newer one")
)

// outcome is what an interpreter goroutine hands back to Evaluate.
type outcome struct {
	doc  *spec.Document
	errs []EvalError
	err  error
}

// await returns the outcome of evaluation gen. The interpreter goroutine
// is not interrupted when ctx ends or the timeout fires: it finishes into
// the buffered channel and its outcome is dropped.
func (e *Engine) await(ctx context.Context, ch <-chan outcome, gen uint64) (*spec.Document, []EvalError, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		if !e.latest(gen) {
			return nil, nil, ErrSuperseded
		}
		return o.doc, o.errs, o.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrEvalTimeout, e.timeout)
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (e *Engine) latest(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.generation
}
