package sizeengine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
	"github.com/Sumatoshi-tech/importcost/pkg/sizecache"
)

const extJSON = ".json"

// bundleLimits bound a single package walk.
type bundleLimits struct {
	maxFiles      int
	maxBytes      int64
	stripComments bool
}

// bundler concatenates every module reachable from an entry file, the way a
// bundler would emit them, so the result can be measured.
type bundler struct {
	parsers  *parserPool
	resolver *resolver
	limits   bundleLimits
	logger   *slog.Logger

	// externals are package names left out of the bundle.
	externals map[string]struct{}
	seen      map[string]struct{}
	buf       bytes.Buffer
}

func newBundler(parsers *parserPool, res *resolver, limits bundleLimits, logger *slog.Logger, m *manifest) *bundler {
	externals := make(map[string]struct{}, len(m.PeerDependencies))
	for name := range m.PeerDependencies {
		externals[name] = struct{}{}
	}

	return &bundler{
		parsers:   parsers,
		resolver:  res,
		limits:    limits,
		logger:    logger,
		externals: externals,
		seen:      make(map[string]struct{}),
	}
}

// add appends file and, depth first, everything it imports.
func (b *bundler) add(ctx context.Context, file string) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	if _, ok := b.seen[file]; ok {
		return nil
	}

	b.seen[file] = struct{}{}

	if b.limits.maxFiles > 0 && len(b.seen) > b.limits.maxFiles {
		return fmt.Errorf("%w: more than %d files", ErrBundleTooLarge, b.limits.maxFiles)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	if strings.EqualFold(filepath.Ext(file), extJSON) {
		return b.write(content)
	}

	tree, _, err := b.parsers.parseFirstClean(ctx, grammarsFor(importmodel.LanguageJavaScript, file), content)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, file, err)
	}

	defer tree.Close()

	root := tree.RootNode()

	out := content
	if b.limits.stripComments {
		out = stripComments(root, content)
	}

	err = b.write(out)
	if err != nil {
		return err
	}

	dir := filepath.Dir(file)

	for _, st := range extractStatements(root, content) {
		dep, ok := b.resolveDependency(dir, st.specifier)
		if !ok {
			continue
		}

		err = b.add(ctx, dep)
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *bundler) write(content []byte) error {
	b.buf.Write(content)

	if b.limits.maxBytes > 0 && int64(b.buf.Len()) > b.limits.maxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrBundleTooLarge, b.limits.maxBytes)
	}

	return nil
}

// resolveDependency maps an import inside the bundle to a file. Builtins,
// externals and anything unresolvable are left out.
func (b *bundler) resolveDependency(fromDir, specifier string) (string, bool) {
	if strings.HasPrefix(specifier, ".") || filepath.IsAbs(specifier) {
		target := filepath.FromSlash(specifier)
		if !filepath.IsAbs(target) {
			target = filepath.Join(fromDir, target)
		}

		file, err := resolveFile(target)
		if err != nil {
			b.logger.Debug("unresolved relative import", "from", fromDir, "specifier", specifier)

			return "", false
		}

		return file, true
	}

	if !isExternal(specifier) {
		return "", false
	}

	name, subpath := splitSpecifier(specifier)
	if _, ok := b.externals[name]; ok {
		return "", false
	}

	m, err := b.resolver.findPackage(fromDir, name)
	if err != nil {
		b.logger.Debug("unresolved dependency", "from", fromDir, "package", name, "error", err)

		return "", false
	}

	file, err := b.resolver.entryFile(m, subpath)
	if err != nil {
		b.logger.Debug("dependency has no entry", "package", name, "error", err)

		return "", false
	}

	return file, true
}

// measure returns the raw and gzip-compressed size of the bundle.
func (b *bundler) measure() (sizecache.Entry, error) {
	var counter byteCounter

	zw, err := gzip.NewWriterLevel(&counter, gzip.BestCompression)
	if err != nil {
		return sizecache.Entry{}, fmt.Errorf("create gzip writer: %w", err)
	}

	_, err = zw.Write(b.buf.Bytes())
	if err != nil {
		return sizecache.Entry{}, fmt.Errorf("gzip bundle: %w", err)
	}

	err = zw.Close()
	if err != nil {
		return sizecache.Entry{}, fmt.Errorf("gzip bundle: %w", err)
	}

	return sizecache.Entry{Size: int64(b.buf.Len()), Gzip: counter.n}, nil
}

// byteCounter discards writes and counts them.
type byteCounter struct {
	n int64
}

func (c *byteCounter) Write(p []byte) (int, error) {
	c.n += int64(len(p))

	return len(p), nil
}
