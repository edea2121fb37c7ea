package sizeengine_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
	"github.com/Sumatoshi-tech/importcost/pkg/sizecache"
	"github.com/Sumatoshi-tech/importcost/pkg/sizeengine"
)

const (
	tinyMain = "module.exports = require('./util');\n"
	tinyUtil = "// the answer\nmodule.exports = 42;\n"
	peerMain = "const tiny = require('tiny');\nmodule.exports = tiny + 1;\n"
)

// project lays out a source directory with a node_modules tree and returns
// the path of the (not yet written) module under estimation.
type project struct {
	root string
}

func newProject(t *testing.T) *project {
	t.Helper()

	p := &project{root: t.TempDir()}

	p.write(t, "node_modules/tiny/package.json", `{"name":"tiny","version":"1.0.0","main":"lib/main.js"}`)
	p.write(t, "node_modules/tiny/lib/main.js", tinyMain)
	p.write(t, "node_modules/tiny/lib/util.js", tinyUtil)

	p.write(t, "node_modules/with-peer/package.json",
		`{"name":"with-peer","version":"2.1.0","main":"index.js","peerDependencies":{"tiny":"^1.0.0"}}`)
	p.write(t, "node_modules/with-peer/index.js", peerMain)

	p.write(t, "node_modules/@scope/kit/package.json", `{"name":"@scope/kit","version":"0.3.0","module":"esm/index.mjs"}`)
	p.write(t, "node_modules/@scope/kit/esm/index.mjs", "export const kit = 1;\n")
	p.write(t, "node_modules/@scope/kit/button.js", "export const button = 2;\n")

	p.write(t, "node_modules/no-version/package.json", `{"name":"no-version","main":"index.js"}`)
	p.write(t, "node_modules/no-version/index.js", "module.exports = {};\n")

	return p
}

func (p *project) write(t *testing.T, rel, content string) {
	t.Helper()

	path := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func (p *project) file(name string) string {
	return filepath.Join(p.root, "src", name)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts sizeengine.Options) *sizeengine.Engine {
	t.Helper()

	opts.Logger = quietLogger()

	engine, err := sizeengine.New(context.Background(), opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = engine.Close() })

	return engine
}

func sizeOf(t *testing.T, imp importmodel.Import) int64 {
	t.Helper()

	size, ok := imp.Size.Get()
	require.True(t, ok, "import %s has no size", imp.Name)

	return size
}

func TestEstimate_SizesPackageGraph(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"const tiny = require('tiny');\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.Equal(t, "tiny", imports[0].Name)
	assert.Equal(t, 1, imports[0].Line)
	assert.Equal(t, int64(len(tinyMain)+len(tinyUtil)), sizeOf(t, imports[0]))

	gzip, ok := imports[0].Gzip.Get()
	require.True(t, ok)
	assert.Positive(t, gzip)
}

func TestEstimate_StripsComments(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{StripComments: true})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"import tiny from 'tiny';\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.Equal(t, int64(len(tinyMain)+len(tinyUtil)-len("// the answer")), sizeOf(t, imports[0]))
}

func TestEstimate_SkipsLocalAndBuiltinImports(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	source := `import fs from 'fs';
import path from 'node:path';
import local from './local';
import tiny from 'tiny';
`

	imports, err := engine.Estimate(context.Background(), p.file("app.js"), source, importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.Equal(t, "tiny", imports[0].Name)
	assert.Equal(t, 4, imports[0].Line)
}

func TestEstimate_ExcludesPeerDependencies(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"import peer from 'with-peer';\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.Equal(t, int64(len(peerMain)), sizeOf(t, imports[0]))
}

func TestEstimate_ScopedPackagesAndSubpaths(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	source := "import { kit } from '@scope/kit';\nimport { button } from '@scope/kit/button';\n"

	imports, err := engine.Estimate(context.Background(), p.file("app.ts"), source, importmodel.LanguageTypeScript)
	require.NoError(t, err)
	require.Len(t, imports, 2)

	assert.Equal(t, int64(len("export const kit = 1;\n")), sizeOf(t, imports[0]))
	assert.Equal(t, int64(len("export const button = 2;\n")), sizeOf(t, imports[1]))
}

func TestEstimate_UnresolvedPackageHasNoSize(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"import missing from 'not-installed';\nimport tiny from 'tiny';\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 2)

	assert.Equal(t, "not-installed", imports[0].Name)
	assert.False(t, imports[0].Size.Valid())
	assert.False(t, imports[0].Gzip.Valid())
	assert.True(t, imports[1].Size.Valid())
}

func TestEstimate_FileLimitLeavesItemUnsized(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{MaxFiles: 1})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"require('tiny');\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.False(t, imports[0].Size.Valid())
}

func TestEstimate_ByteLimitLeavesItemUnsized(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{MaxBundleBytes: 10})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"require('tiny');\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.False(t, imports[0].Size.Valid())
}

func TestEstimate_RepeatedImportsKeepSourceOrder(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{Workers: 2})

	source := "import a from 'tiny';\nimport b from 'with-peer';\nconst c = require('tiny');\n"

	imports, err := engine.Estimate(context.Background(), p.file("app.js"), source, importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 3)

	assert.Equal(t, []string{"tiny", "with-peer", "tiny"}, []string{imports[0].Name, imports[1].Name, imports[2].Name})
	assert.Equal(t, []int{1, 2, 3}, []int{imports[0].Line, imports[1].Line, imports[2].Line})
	assert.Equal(t, sizeOf(t, imports[0]), sizeOf(t, imports[2]))
}

func TestEstimate_SyntaxError(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	_, err := engine.Estimate(context.Background(), p.file("app.js"),
		"import tiny from 'tiny';\nconst = ;\n", importmodel.LanguageJavaScript)
	require.ErrorIs(t, err, sizeengine.ErrSyntax)
	assert.Contains(t, err.Error(), "at line 2")
}

func TestEstimate_FlowAnnotatedModule(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	source := `// @flow
import type { Node } from 'react';
import tiny from 'tiny';

export function label(count: number): string {
  return String(count);
}
`

	imports, err := engine.Estimate(context.Background(), p.file("app.js"), source, importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.Equal(t, "tiny", imports[0].Name)
	assert.Equal(t, 3, imports[0].Line)
	assert.Equal(t, int64(len(tinyMain)+len(tinyUtil)), sizeOf(t, imports[0]))
}

func TestEstimate_BundlesAbsoluteRequires(t *testing.T) {
	t.Parallel()

	p := newProject(t)

	shared := filepath.Join(p.root, "vendor", "shared.js")
	sharedSource := "module.exports = 'shared';\n"
	entry := "module.exports = require('" + filepath.ToSlash(shared) + "');\n"

	p.write(t, "vendor/shared.js", sharedSource)
	p.write(t, "node_modules/abs-dep/package.json", `{"name":"abs-dep","version":"1.0.0","main":"index.js"}`)
	p.write(t, "node_modules/abs-dep/index.js", entry)

	engine := newEngine(t, sizeengine.Options{})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"),
		"import dep from 'abs-dep';\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, imports, 1)

	assert.Equal(t, int64(len(entry)+len(sharedSource)), sizeOf(t, imports[0]))
}

func TestEstimate_NoImports(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	imports, err := engine.Estimate(context.Background(), p.file("app.js"), "", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	assert.Empty(t, imports)
}

func TestEstimate_CancelledContext(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Estimate(ctx, p.file("app.js"), "require('tiny');\n", importmodel.LanguageJavaScript)
	require.Error(t, err)
}

func TestEstimate_UsesPersistedCache(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	cacheDir := t.TempDir()
	opts := sizeengine.Options{CacheEnabled: true, Cache: sizecache.Options{Directory: cacheDir}}

	first := newEngine(t, opts)

	imports, err := first.Estimate(context.Background(), p.file("app.js"), "require('tiny');\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)

	want := sizeOf(t, imports[0])

	require.NoError(t, first.Close())

	// Same version on disk, different content: the cached size wins.
	p.write(t, "node_modules/tiny/lib/util.js", strings.Repeat("x", 500))

	second := newEngine(t, opts)

	imports, err = second.Estimate(context.Background(), p.file("app.js"), "require('tiny');\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	assert.Equal(t, want, sizeOf(t, imports[0]))
}

func TestEstimate_InvalidVersionIsNotCached(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	cacheDir := t.TempDir()
	opts := sizeengine.Options{CacheEnabled: true, Cache: sizecache.Options{Directory: cacheDir}}

	engine := newEngine(t, opts)

	_, err := engine.Estimate(context.Background(), p.file("app.js"), "require('no-version');\n", importmodel.LanguageJavaScript)
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	_, err = os.Stat(filepath.Join(cacheDir, "sizes.json.lz4"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	_, err := engine.Estimate(context.Background(), p.file("app.js"), "require('tiny');\n", importmodel.LanguageJavaScript)
	assert.ErrorIs(t, err, sizeengine.ErrClosed)
}

func TestEngine_ConcurrentEstimates(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	engine := newEngine(t, sizeengine.Options{})

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			imports, err := engine.Estimate(context.Background(), p.file("app.js"),
				"import tiny from 'tiny';\n", importmodel.LanguageJavaScript)
			assert.NoError(t, err)
			assert.Len(t, imports, 1)
		}()
	}

	wg.Wait()
}

func TestNew_RejectsNegativeOptions(t *testing.T) {
	t.Parallel()

	_, err := sizeengine.New(context.Background(), sizeengine.Options{Workers: -1})
	assert.ErrorIs(t, err, sizeengine.ErrInvalidOptions)
}
