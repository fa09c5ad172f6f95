package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-reelscout/infrastructure/middleware"
	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// Pipeline runs units in strict order, each unit's output state becoming
// the next unit's input. Every unit is wrapped in a StageGuard so its
// execution is observed and a panic surfaces as an error.
type Pipeline struct {
	id       string
	observer middleware.StageObserver

	// units holds guarded units in execution order.
	units []ports.Unit
	names map[string]struct{}
	mu    sync.RWMutex
}

// NewPipeline creates an empty pipeline. observer may be nil.
func NewPipeline(id string, observer middleware.StageObserver) *Pipeline {
	return &Pipeline{
		id:       id,
		observer: observer,
		units:    make([]ports.Unit, 0, 8),
		names:    make(map[string]struct{}),
	}
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends unit to the end of the pipeline. It fails on a nil unit, on
// a unit whose Validate fails, and on a duplicate name.
func (p *Pipeline) Add(unit ports.Unit) error {
	if unit == nil {
		return fmt.Errorf("cannot add nil unit to pipeline %s", p.id)
	}
	if err := unit.Validate(); err != nil {
		return fmt.Errorf("pipeline %s: unit %s is invalid: %w", p.id, unit.Name(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	name := unit.Name()
	if _, exists := p.names[name]; exists {
		return fmt.Errorf("unit %s already exists in pipeline %s", name, p.id)
	}
	p.units = append(p.units, middleware.NewStageGuard(unit, p.observer))
	p.names[name] = struct{}{}
	return nil
}

// Stages returns unit names in execution order.
func (p *Pipeline) Stages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, len(p.units))
	for i, u := range p.units {
		out[i] = u.Name()
	}
	return out
}

// Execute runs every unit in order. It stops at the first error, or when
// ctx is done between units, and returns the last good state with it.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	units := make([]ports.Unit, len(p.units))
	copy(units, p.units)
	p.mu.RUnlock()

	current := state
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return current, fmt.Errorf("pipeline %s: cancelled before %s: %w", p.id, unit.Name(), err)
		}
		next, err := unit.Execute(ctx, current)
		if err != nil {
			return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, unit.Name(), err)
		}
		current = next
	}
	return current, nil
}
