package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// ErrStagePanicked wraps a panic recovered from a pipeline stage.
var ErrStagePanicked = errors.New("stage panicked")

// PanicError carries the recovered value and stack of a stage panic.
type PanicError struct {
	Stage string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.Stage, e.Value)
}

// Unwrap lets errors.Is match ErrStagePanicked.
func (e *PanicError) Unwrap() error { return ErrStagePanicked }

// StageObserver provides observability hooks around one stage execution.
// Start returns the context the stage runs under and a finish callback that
// receives the stage outcome.
type StageObserver interface {
	Start(ctx context.Context, stage string, state domain.State) (context.Context, func(elapsed time.Duration, err error))
}

// StageGuard wraps a unit so that its execution is observed and a panic
// inside it becomes a PanicError instead of unwinding the caller.
type StageGuard struct {
	next     ports.Unit
	observer StageObserver
}

var _ ports.Unit = (*StageGuard)(nil)

// NewStageGuard wraps next. observer may be nil.
func NewStageGuard(next ports.Unit, observer StageObserver) *StageGuard {
	if next == nil {
		panic("stage guard: next unit is required")
	}
	return &StageGuard{next: next, observer: observer}
}

// Name returns the wrapped unit's name.
func (g *StageGuard) Name() string { return g.next.Name() }

// Execute runs the wrapped unit.
func (g *StageGuard) Execute(ctx context.Context, state domain.State) (out domain.State, err error) {
	finish := func(time.Duration, error) {}
	if g.observer != nil {
		ctx, finish = g.observer.Start(ctx, g.next.Name(), state)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = state
			err = &PanicError{Stage: g.next.Name(), Value: r, Stack: debug.Stack()}
		}
		finish(time.Since(start), err)
	}()

	return g.next.Execute(ctx, state)
}

// Validate delegates to the wrapped unit.
func (g *StageGuard) Validate() error {
	if g.next == nil {
		return fmt.Errorf("stage guard: next unit is required")
	}
	return g.next.Validate()
}
