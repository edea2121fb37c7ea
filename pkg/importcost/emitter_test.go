package importcost_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importcost/pkg/importcost"
)

// countingWriter records every Write call.
type countingWriter struct {
	writes [][]byte
	err    error
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, append([]byte(nil), p...))
	if w.err != nil {
		return 0, w.err
	}

	return len(p), nil
}

func TestEmitter_SingleWrite(t *testing.T) {
	t.Parallel()

	w := &countingWriter{}
	emitter := importcost.NewEmitter(w)

	require.False(t, emitter.Emitted())
	require.NoError(t, emitter.Emit(importcost.DoneMessage(nil)))
	require.True(t, emitter.Emitted())

	require.Len(t, w.writes, 1)
	assert.Equal(t, `{"event":"done","data":[]}`, string(w.writes[0]))
	assert.False(t, bytes.HasSuffix(w.writes[0], []byte("\n")))
}

func TestEmitter_SecondEmitPanics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	emitter := importcost.NewEmitter(&buf)
	require.NoError(t, emitter.Emit(importcost.DoneMessage(nil)))

	assert.Panics(t, func() {
		_ = emitter.Emit(importcost.ErrorMessage(errors.New("late"), importcost.KindInternal, ""))
	})
	assert.Equal(t, `{"event":"done","data":[]}`, buf.String())
}

func TestEmitter_WriteError(t *testing.T) {
	t.Parallel()

	writeErr := errors.New("stdout closed")
	emitter := importcost.NewEmitter(&countingWriter{err: writeErr})

	err := emitter.Emit(importcost.DoneMessage(nil))
	require.ErrorIs(t, err, importcost.ErrWriteOutput)
	require.ErrorIs(t, err, writeErr)
	assert.True(t, emitter.Emitted())
}
