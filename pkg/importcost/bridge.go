package importcost

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
)

// Engine computes the cost of every import in one source file.
type Engine interface {
	// Estimate returns one Import per import statement, in source order.
	Estimate(ctx context.Context, filePath, source string, lang importmodel.Language) ([]importmodel.Import, error)
	// Close releases parsers, caches and any other engine-held resources.
	Close() error
}

// EngineFactory constructs the engine for a run.
type EngineFactory func(ctx context.Context) (Engine, error)

// Invocation is the unit of work of a run.
type Invocation struct {
	FilePath string
	Source   string
}

// Outcome is the terminal result of an estimation: either Imports or Err.
type Outcome struct {
	Imports []importmodel.Import
	Err     error
}

// StartEstimation runs the engine in its own goroutine. The returned channel
// yields exactly one Outcome and is then closed. A panic in the engine is
// delivered as an Outcome wrapping ErrPanic.
func StartEstimation(ctx context.Context, engine Engine, inv Invocation, lang importmodel.Language) <-chan Outcome {
	out := make(chan Outcome, 1)

	go func() {
		defer close(out)

		out <- estimate(ctx, engine, inv, lang)
	}()

	return out
}

func estimate(ctx context.Context, engine Engine, inv Invocation, lang importmodel.Language) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = Outcome{Err: fmt.Errorf("%w in engine: %v", ErrPanic, rec)}
		}
	}()

	imports, err := engine.Estimate(ctx, inv.FilePath, inv.Source, lang)
	if err != nil {
		return Outcome{Err: err}
	}

	return Outcome{Imports: imports}
}
