// Package importcost reads one module from stdin, sizes its imports with an
// estimation engine and reports the result as a single JSON message.
package importcost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
)

const tracerName = "importcost"

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// state is a step of the run, reported in debug logs.
type state string

const (
	stateStart        state = "start"
	stateReadingInput state = "reading_input"
	stateEstimating   state = "estimating"
	stateDone         state = "done"
	stateFailed       state = "failed"
)

// Runner sequences a single run: argument, stdin, estimation, output.
type Runner struct {
	NewEngine EngineFactory
	Stdin     io.Reader
	Stdout    io.Writer
	Logger    *slog.Logger
}

// Run executes the run for args (the positional command-line arguments) and
// returns the process exit code. Exactly one message is written to Stdout
// unless writing itself fails.
func (r *Runner) Run(ctx context.Context, args []string) (code int) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "importcost.run")
	defer span.End()

	emitter := NewEmitter(r.Stdout)
	file := ""

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}

		r.logger().ErrorContext(ctx, "run panicked", "panic", rec, "stack", string(debug.Stack()))
		code = r.fail(ctx, span, emitter, fmt.Errorf("%w: %v", ErrPanic, rec), file)
	}()

	if len(args) > 0 {
		file = args[0]
	}

	err := r.execute(ctx, span, emitter, args)
	if err != nil {
		return r.fail(ctx, span, emitter, err, file)
	}

	return ExitOK
}

// execute returns an error only for failures that must end the process with
// ExitFailure. Engine-reported failures are emitted here and return nil.
func (r *Runner) execute(ctx context.Context, span trace.Span, emitter *Emitter, args []string) error {
	logger := r.logger()
	r.transition(ctx, stateStart)

	if len(args) == 0 || args[0] == "" {
		return ErrMissingFilePath
	}

	filePath := args[0]
	lang := Classify(filePath)

	span.SetAttributes(
		attribute.String("file", filePath),
		attribute.String("language", string(lang)),
	)

	r.transition(ctx, stateReadingInput)

	source, err := ReadInput(r.Stdin)
	if err != nil {
		return err
	}

	logger.DebugContext(ctx, "input read", "bytes", len(source), "language", lang)

	r.transition(ctx, stateEstimating)

	engine, err := r.NewEngine(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineInit, err)
	}

	defer r.closeEngine(ctx, engine)

	started := time.Now()
	outcomes := StartEstimation(ctx, engine, Invocation{FilePath: filePath, Source: source}, lang)

	var outcome Outcome

	select {
	case outcome = <-outcomes:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}

	if errors.Is(outcome.Err, ErrPanic) {
		return outcome.Err
	}

	if outcome.Err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, outcome.Err)
	}

	if outcome.Err != nil {
		logger.WarnContext(ctx, "estimation failed", "file", filePath, "error", outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
		r.transition(ctx, stateFailed)

		return emitter.Emit(ErrorMessage(outcome.Err, KindEstimation, filePath))
	}

	records := Normalize(outcome.Imports)

	logger.DebugContext(ctx, "estimation done",
		"imports", len(records), "unsized", countUnsized(outcome.Imports), "elapsed", time.Since(started))
	span.SetAttributes(attribute.Int("imports", len(records)))
	r.transition(ctx, stateDone)

	return emitter.Emit(DoneMessage(records))
}

// fail reports an escaping failure and returns ExitFailure. The error is
// emitted only when no message has been written yet.
func (r *Runner) fail(ctx context.Context, span trace.Span, emitter *Emitter, err error, file string) int {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.transition(ctx, stateFailed)

	if emitter.Emitted() {
		r.logger().ErrorContext(ctx, "run failed after output was written", "error", err)

		return ExitFailure
	}

	emitErr := emitter.Emit(ErrorMessage(err, kindOf(err), file))
	if emitErr != nil {
		r.logger().ErrorContext(ctx, "emit error message", "error", errors.Join(err, emitErr))
	}

	return ExitFailure
}

func (r *Runner) closeEngine(ctx context.Context, engine Engine) {
	err := engine.Close()
	if err != nil {
		r.logger().WarnContext(ctx, "close estimation engine", "error", err)
	}
}

func (r *Runner) transition(ctx context.Context, to state) {
	r.logger().DebugContext(ctx, "run state", "state", string(to))
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

func countUnsized(imports []importmodel.Import) int {
	n := 0

	for _, imp := range imports {
		if !imp.Size.Valid() {
			n++
		}
	}

	return n
}
