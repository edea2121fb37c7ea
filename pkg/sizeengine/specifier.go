package sizeengine

import "strings"

const nodeSchemePrefix = "node:"

// nodeBuiltins lists the Node.js core modules. Imports of these are never
// bundled and never reported.
var nodeBuiltins = map[string]struct{}{
	"assert": {}, "async_hooks": {}, "buffer": {}, "child_process": {}, "cluster": {},
	"console": {}, "constants": {}, "crypto": {}, "dgram": {}, "diagnostics_channel": {},
	"dns": {}, "domain": {}, "events": {}, "fs": {}, "http": {}, "http2": {}, "https": {},
	"inspector": {}, "module": {}, "net": {}, "os": {}, "path": {}, "perf_hooks": {},
	"process": {}, "punycode": {}, "querystring": {}, "readline": {}, "repl": {},
	"stream": {}, "string_decoder": {}, "sys": {}, "timers": {}, "tls": {}, "trace_events": {},
	"tty": {}, "url": {}, "util": {}, "v8": {}, "vm": {}, "wasi": {}, "worker_threads": {},
	"zlib": {},
}

// isExternal reports whether specifier names an installed package rather
// than a relative file, an absolute path or a Node.js builtin.
func isExternal(specifier string) bool {
	if specifier == "" {
		return false
	}

	switch specifier[0] {
	case '.', '/', '#':
		return false
	}

	if strings.HasPrefix(specifier, nodeSchemePrefix) {
		return false
	}

	_, builtin := nodeBuiltins[packageName(specifier)]

	return !builtin
}

// splitSpecifier splits a bare specifier into its package name and the
// path inside the package: "@scope/pkg/a/b" -> ("@scope/pkg", "a/b").
func splitSpecifier(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)

	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		name = parts[0] + "/" + parts[1]

		if len(parts) == 3 {
			subpath = parts[2]
		}

		return name, subpath
	}

	name, subpath, _ = strings.Cut(specifier, "/")

	return name, subpath
}

func packageName(specifier string) string {
	name, _ := splitSpecifier(specifier)

	return name
}
