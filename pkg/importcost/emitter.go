package importcost

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Emitter writes at most one Message to its writer.
type Emitter struct {
	w       io.Writer
	mu      sync.Mutex
	emitted bool
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit serializes msg and writes it in a single Write call, without a
// trailing newline. Calling Emit a second time panics.
func (e *Emitter) Emit(msg Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.emitted {
		panic("importcost: message already emitted")
	}

	e.emitted = true

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrWriteOutput, err)
	}

	_, err = e.w.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	return nil
}

// Emitted reports whether Emit has been called.
func (e *Emitter) Emitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.emitted
}
