package importcost_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importcost/pkg/importcost"
	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
)

func TestStartEstimation_DeliversOneOutcome(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imports: []importmodel.Import{{Name: "react", Line: 2}}}
	inv := importcost.Invocation{FilePath: "app.tsx", Source: "import React from 'react'"}

	outcomes := importcost.StartEstimation(context.Background(), engine, inv, importmodel.LanguageTypeScript)

	outcome, ok := <-outcomes
	require.True(t, ok)
	require.NoError(t, outcome.Err)
	assert.Equal(t, engine.imports, outcome.Imports)

	_, ok = <-outcomes
	assert.False(t, ok, "channel must be closed after the outcome")

	assert.Equal(t, "app.tsx", engine.gotPath)
	assert.Equal(t, inv.Source, engine.gotSource)
	assert.Equal(t, importmodel.LanguageTypeScript, engine.gotLang)
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestStartEstimation_Error(t *testing.T) {
	t.Parallel()

	engineErr := errors.New("parse failure")
	engine := &fakeEngine{err: engineErr}

	outcome := <-importcost.StartEstimation(context.Background(), engine, importcost.Invocation{}, importmodel.LanguageJavaScript)

	require.ErrorIs(t, outcome.Err, engineErr)
	assert.Nil(t, outcome.Imports)
}

func TestStartEstimation_RecoversPanic(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{panicMsg: "index out of range"}

	outcome := <-importcost.StartEstimation(context.Background(), engine, importcost.Invocation{}, importmodel.LanguageJavaScript)

	require.ErrorIs(t, outcome.Err, importcost.ErrPanic)
	assert.Contains(t, outcome.Err.Error(), "index out of range")
}
