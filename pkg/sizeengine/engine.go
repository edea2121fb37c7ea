// Package sizeengine estimates the bundled and gzip-compressed size of every
// package a JavaScript or TypeScript module imports.
//
// Imports are found with tree-sitter. Each external package is resolved
// through node_modules, its module graph is concatenated and measured, and
// results are cached by package version.
package sizeengine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
	"github.com/Sumatoshi-tech/importcost/pkg/observability"
	"github.com/Sumatoshi-tech/importcost/pkg/safeconv"
	"github.com/Sumatoshi-tech/importcost/pkg/sizecache"
)

const tracerName = "importcost/sizeengine"

// Default limits.
const (
	DefaultWorkers        = 4
	DefaultMaxFiles       = 2000
	DefaultMaxBundleBytes = 50 * humanize.MByte
)

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	// Workers bounds how many packages are sized concurrently.
	Workers int
	// MaxFiles bounds the modules in one package bundle.
	MaxFiles int
	// MaxBundleBytes bounds the raw size of one package bundle.
	MaxBundleBytes int64
	// StripComments removes comments before measuring.
	StripComments bool

	// CacheEnabled turns on the size cache. Cache.Directory additionally
	// persists it between runs.
	CacheEnabled bool
	Cache        sizecache.Options

	Logger  *slog.Logger
	Metrics *observability.EstimationMetrics
}

// Engine sizes the imports of a module. It is safe for concurrent use.
type Engine struct {
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.EstimationMetrics
	parsers  *parserPool
	resolver *resolver
	cache    *sizecache.Cache

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New creates an Engine and loads the persisted size cache if configured.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Workers < 0 || opts.MaxFiles < 0 || opts.MaxBundleBytes < 0 {
		return nil, fmt.Errorf("%w: workers=%d max_files=%d max_bundle_bytes=%d",
			ErrInvalidOptions, opts.Workers, opts.MaxFiles, opts.MaxBundleBytes)
	}

	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}

	if opts.MaxFiles == 0 {
		opts.MaxFiles = DefaultMaxFiles
	}

	if opts.MaxBundleBytes == 0 {
		opts.MaxBundleBytes = DefaultMaxBundleBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("component", "sizeengine")

	e := &Engine{
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		metrics:  opts.Metrics,
		parsers:  newParserPool(),
		resolver: newResolver(),
	}

	if opts.CacheEnabled {
		cacheOpts := opts.Cache
		cacheOpts.Logger = logger

		e.cache = sizecache.Open(cacheOpts)
	}

	logger.DebugContext(ctx, "size engine ready",
		"workers", opts.Workers,
		"max_files", opts.MaxFiles,
		"max_bundle_size", humanize.Bytes(safeconv.MustInt64ToUint64(opts.MaxBundleBytes)),
		"cache", opts.CacheEnabled)

	return e, nil
}

// Estimate finds the imports of source and sizes each external package.
// Items whose size could not be computed carry absent sizes; only a
// syntax error or a cancelled context fails the whole call.
func (e *Engine) Estimate(
	ctx context.Context, filePath, source string, lang importmodel.Language,
) ([]importmodel.Import, error) {
	err := e.acquire()
	if err != nil {
		return nil, err
	}

	defer e.inflight.Done()

	started := time.Now()

	ctx, span := e.tracer.Start(ctx, "sizeengine.estimate", trace.WithAttributes(
		attribute.String("file", filePath),
		attribute.String("language", string(lang)),
	))
	defer span.End()

	imports, err := e.estimate(ctx, filePath, []byte(source), lang)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.RecordEstimation(ctx, observability.StatusError, 0, 0, time.Since(started))

		return nil, err
	}

	unsized := 0

	for _, imp := range imports {
		if !imp.Size.Valid() {
			unsized++
		}
	}

	span.SetAttributes(attribute.Int("imports", len(imports)))
	e.metrics.RecordEstimation(ctx, observability.StatusOK, len(imports)-unsized, unsized, time.Since(started))

	return imports, nil
}

func (e *Engine) estimate(
	ctx context.Context, filePath string, content []byte, lang importmodel.Language,
) ([]importmodel.Import, error) {
	tree, line, err := e.parsers.parseFirstClean(ctx, grammarsFor(lang, filePath), content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	defer tree.Close()

	root := tree.RootNode()

	if line > 0 {
		return nil, fmt.Errorf("%w at line %d", ErrSyntax, line)
	}

	var statements []statement

	for _, st := range extractStatements(root, content) {
		if isExternal(st.specifier) {
			statements = append(statements, st)
		}
	}

	baseDir, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		baseDir = filepath.Dir(filePath)
	}

	index := make(map[string]int)

	var specifiers []string

	for _, st := range statements {
		if _, ok := index[st.specifier]; ok {
			continue
		}

		index[st.specifier] = len(specifiers)
		specifiers = append(specifiers, st.specifier)
	}

	sizes := make([]*sizecache.Entry, len(specifiers))

	var g errgroup.Group

	g.SetLimit(e.opts.Workers)

	for idx, spec := range specifiers {
		g.Go(func() error {
			entry, sizeErr := e.sizePackage(ctx, baseDir, spec)
			if sizeErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				e.logger.DebugContext(ctx, "package not sized", "specifier", spec, "error", sizeErr)

				return nil
			}

			sizes[idx] = &entry

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}

	imports := make([]importmodel.Import, 0, len(statements))

	for _, st := range statements {
		imp := importmodel.Import{Name: st.specifier, Line: st.line}

		if entry := sizes[index[st.specifier]]; entry != nil {
			imp.Size = importmodel.Size(entry.Size)
			imp.Gzip = importmodel.Size(entry.Gzip)
		}

		imports = append(imports, imp)
	}

	e.logger.DebugContext(ctx, "imports extracted",
		"statements", len(statements), "specifiers", len(specifiers))

	return imports, nil
}

// sizePackage resolves specifier from baseDir and measures its bundle,
// consulting the size cache first.
func (e *Engine) sizePackage(ctx context.Context, baseDir, specifier string) (sizecache.Entry, error) {
	ctx, span := e.tracer.Start(ctx, "sizeengine.package", trace.WithAttributes(
		attribute.String("package.specifier", specifier),
	))
	defer span.End()

	name, subpath := splitSpecifier(specifier)

	m, err := e.resolver.findPackage(baseDir, name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return sizecache.Entry{}, err
	}

	span.SetAttributes(attribute.String("package.version", m.Version))

	key, cacheable := cacheKey(name, m, subpath)
	cacheable = cacheable && e.cache != nil

	if cacheable {
		entry, hit := e.cache.Get(key)
		e.metrics.RecordCacheLookup(ctx, hit)
		span.SetAttributes(attribute.Bool("cache.hit", hit))

		if hit {
			return entry, nil
		}
	}

	entryFile, err := e.resolver.entryFile(m, subpath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return sizecache.Entry{}, err
	}

	b := newBundler(e.parsers, e.resolver, bundleLimits{
		maxFiles:      e.opts.MaxFiles,
		maxBytes:      e.opts.MaxBundleBytes,
		stripComments: e.opts.StripComments,
	}, e.logger, m)

	err = b.add(ctx, entryFile)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return sizecache.Entry{}, fmt.Errorf("bundle %s: %w", specifier, err)
	}

	entry, err := b.measure()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return sizecache.Entry{}, err
	}

	e.logger.DebugContext(ctx, "package sized",
		"package", specifier,
		"version", m.Version,
		"files", len(b.seen),
		"size", humanize.Bytes(safeconv.MustInt64ToUint64(entry.Size)),
		"gzip", humanize.Bytes(safeconv.MustInt64ToUint64(entry.Gzip)))

	if cacheable {
		e.cache.Put(key, entry)
	}

	return entry, nil
}

// Close waits for running estimations, persists the size cache and drops
// parsers and caches. Calling Close again returns the first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		e.inflight.Wait()

		e.parsers.reset()
		e.resolver.reset()

		if e.cache != nil {
			stats := e.cache.Stats()
			e.logger.Debug("size cache stats", "hits", stats.Hits, "misses", stats.Misses, "entries", stats.Entries)

			e.closeErr = e.cache.Close()
		}
	})

	return e.closeErr
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.inflight.Add(1)

	return nil
}
