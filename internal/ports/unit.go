// Package ports defines the contracts between the pipeline and the outside
// world: the stage interface, the LLM and video provider clients, the result
// cache, metrics, and configuration loading.
package ports

import (
	"context"

	"github.com/ahrav/go-reelscout/internal/domain"
)

// Unit is one stage of the search pipeline. It reads its inputs from the
// State, performs its work, and returns a new State with its output added.
// Units are stateless and safe for concurrent use by independent searches.
type Unit interface {
	// Name returns a stable identifier used in logs, metrics and spans.
	Name() string

	// Execute runs the stage. The input State is never modified.
	// Degradable stages swallow upstream faults and substitute defaults;
	// an error means the stage could not produce any usable output.
	//
	// Example:
	//
	//	next, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks that the unit is configured and has its dependencies.
	Validate() error
}
