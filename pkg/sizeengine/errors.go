package sizeengine

import "errors"

// Sentinel errors.
var (
	// ErrClosed is returned by Estimate after Close.
	ErrClosed = errors.New("size engine is closed")
	// ErrSyntax reports a source file tree-sitter could not parse cleanly.
	ErrSyntax = errors.New("syntax error")
	// ErrParse reports a parser failure unrelated to the source text.
	ErrParse = errors.New("parse source")
	// ErrInvalidOptions reports a negative worker count or limit.
	ErrInvalidOptions = errors.New("invalid engine options")
	// ErrPackageNotFound means no node_modules directory up the tree holds the package.
	ErrPackageNotFound = errors.New("package not found")
	// ErrEntryNotFound means the package has no resolvable entry file.
	ErrEntryNotFound = errors.New("entry file not found")
	// ErrInvalidManifest reports an unreadable package.json.
	ErrInvalidManifest = errors.New("invalid package manifest")
	// ErrBundleTooLarge means the bundle exceeded the file or byte limit.
	ErrBundleTooLarge = errors.New("bundle too large")
)
