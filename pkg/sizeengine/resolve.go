package sizeengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	gocache "github.com/patrickmn/go-cache"
)

const (
	nodeModulesDir = "node_modules"
	manifestFile   = "package.json"
	indexBase      = "index"
)

// resolveExtensions are tried in order after the bare path.
var resolveExtensions = []string{".js", ".mjs", ".cjs", ".json"}

// manifest is the subset of package.json the engine reads.
type manifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Main             string            `json:"main"`
	Module           string            `json:"module"`
	Browser          json.RawMessage   `json:"browser"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Dependencies     map[string]string `json:"dependencies"`

	dir string
}

// browserEntry returns the browser field when it is a plain path. The
// object form remaps individual files and is ignored.
func (m *manifest) browserEntry() string {
	if len(m.Browser) == 0 {
		return ""
	}

	var entry string

	err := json.Unmarshal(m.Browser, &entry)
	if err != nil {
		return ""
	}

	return entry
}

// manifestResult is cached for both found and missing manifests.
type manifestResult struct {
	m   *manifest
	err error
}

// resolver locates packages and their files under node_modules.
// Manifest lookups are cached by directory for the engine's lifetime.
type resolver struct {
	manifests *gocache.Cache
}

func newResolver() *resolver {
	return &resolver{manifests: gocache.New(gocache.NoExpiration, 0)}
}

// loadManifest reads dir/package.json.
func (r *resolver) loadManifest(dir string) (*manifest, error) {
	if cached, ok := r.manifests.Get(dir); ok {
		if res, castOK := cached.(manifestResult); castOK {
			return res.m, res.err
		}
	}

	m, err := readManifest(dir)
	r.manifests.SetDefault(dir, manifestResult{m: m, err: err})

	return m, err
}

func readManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}

	var m manifest

	err = json.Unmarshal(data, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, dir, err)
	}

	m.dir = dir

	return &m, nil
}

// findPackage walks up from fromDir looking for node_modules/<name>.
func (r *resolver) findPackage(fromDir, name string) (*manifest, error) {
	dir := fromDir

	for {
		m, err := r.loadManifest(filepath.Join(dir, nodeModulesDir, name))

		switch {
		case err == nil:
			return m, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
		}

		dir = parent
	}
}

// entryFile returns the file a specifier loads: the subpath inside the
// package when given, otherwise module, browser, main, then index.
func (r *resolver) entryFile(m *manifest, subpath string) (string, error) {
	if subpath != "" {
		return resolveFile(filepath.Join(m.dir, filepath.FromSlash(subpath)))
	}

	for _, candidate := range []string{m.Module, m.browserEntry(), m.Main, indexBase} {
		if candidate == "" {
			continue
		}

		file, err := resolveFile(filepath.Join(m.dir, filepath.FromSlash(candidate)))
		if err == nil {
			return file, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrEntryNotFound, m.dir)
}

func (r *resolver) reset() {
	r.manifests.Flush()
}

// resolveFile applies Node's file lookup: the path itself, the path with a
// known extension, then an index file inside it.
func resolveFile(path string) (string, error) {
	if isFile(path) {
		return path, nil
	}

	for _, ext := range resolveExtensions {
		if isFile(path + ext) {
			return path + ext, nil
		}
	}

	for _, ext := range resolveExtensions {
		candidate := filepath.Join(path, indexBase+ext)
		if isFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrEntryNotFound, path)
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

// cacheKey is "name@version[/subpath]" with the version normalized. A
// manifest without a valid semantic version is never cached.
func cacheKey(name string, m *manifest, subpath string) (string, bool) {
	ver, err := semver.NewVersion(m.Version)
	if err != nil {
		return "", false
	}

	key := name + "@" + ver.String()
	if subpath != "" {
		key += "/" + subpath
	}

	return key, true
}
