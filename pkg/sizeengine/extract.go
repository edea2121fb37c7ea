package sizeengine

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/importcost/pkg/safeconv"
)

// Tree-sitter node types the extractor looks at.
const (
	nodeImportStatement     = "import_statement"
	nodeExportStatement     = "export_statement"
	nodeImportRequireClause = "import_require_clause"
	nodeCallExpression      = "call_expression"
	nodeIdentifier          = "identifier"
	nodeImport              = "import"
	nodeString              = "string"
	nodeArguments           = "arguments"
	nodeComment             = "comment"
	nodeError               = "ERROR"

	fieldSource    = "source"
	fieldFunction  = "function"
	fieldArguments = "arguments"

	keywordType    = "type"
	keywordTypeof  = "typeof"
	requireBuiltin = "require"
)

// statement is one import-like construct found in source.
type statement struct {
	specifier string
	line      int
}

// extractStatements walks the tree and returns every import, re-export,
// require call and dynamic import with a literal specifier, in source order.
// Type-only imports and exports are skipped.
func extractStatements(root sitter.Node, source []byte) []statement {
	var out []statement

	walkNamed(root, func(n sitter.Node) bool {
		switch n.Type() {
		case nodeImportStatement, nodeExportStatement:
			if isTypeOnly(n) {
				return false
			}

			if spec, ok := stringField(n, fieldSource, source); ok {
				out = append(out, statement{specifier: spec, line: endLine(n)})

				return false
			}

			if clause, ok := findNamedChild(n, nodeImportRequireClause); ok {
				if spec, ok := stringField(clause, fieldSource, source); ok {
					out = append(out, statement{specifier: spec, line: endLine(n)})
				}

				return false
			}
		case nodeCallExpression:
			if spec, ok := callSpecifier(n, source); ok {
				out = append(out, statement{specifier: spec, line: endLine(n)})
			}
		}

		return true
	})

	return out
}

// callSpecifier matches require("x") and import("x").
func callSpecifier(call sitter.Node, source []byte) (string, bool) {
	fn := call.ChildByFieldName(fieldFunction)
	if fn.IsNull() {
		return "", false
	}

	switch fn.Type() {
	case nodeIdentifier:
		if fn.Content(source) != requireBuiltin {
			return "", false
		}
	case nodeImport:
	default:
		return "", false
	}

	args := call.ChildByFieldName(fieldArguments)
	if args.IsNull() || args.Type() != nodeArguments || args.NamedChildCount() != 1 {
		return "", false
	}

	arg := args.NamedChild(0)
	if arg.Type() != nodeString {
		return "", false
	}

	return unquote(arg.Content(source))
}

// isTypeOnly reports whether an import/export statement carries the
// TypeScript "type" or "typeof" modifier.
func isTypeOnly(n sitter.Node) bool {
	for idx := range n.ChildCount() {
		child := n.Child(idx)
		if child.IsNamed() {
			continue
		}

		switch child.Type() {
		case keywordType, keywordTypeof:
			return true
		}
	}

	return false
}

func stringField(n sitter.Node, field string, source []byte) (string, bool) {
	str := n.ChildByFieldName(field)
	if str.IsNull() || str.Type() != nodeString {
		return "", false
	}

	return unquote(str.Content(source))
}

func findNamedChild(n sitter.Node, nodeType string) (sitter.Node, bool) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if child.Type() == nodeType {
			return child, true
		}
	}

	return n, false
}

// unquote strips the quotes of a JS string literal. Escapes are rare in
// module specifiers and are kept verbatim.
func unquote(literal string) (string, bool) {
	if len(literal) < 2 {
		return "", false
	}

	quote := literal[0]
	if (quote != '\'' && quote != '"') || literal[len(literal)-1] != quote {
		return "", false
	}

	return literal[1 : len(literal)-1], true
}

// walkNamed visits named nodes in pre-order. visit returns false to skip
// the node's children.
func walkNamed(n sitter.Node, visit func(sitter.Node) bool) {
	if n.IsNull() || !visit(n) {
		return
	}

	for idx := range n.NamedChildCount() {
		walkNamed(n.NamedChild(idx), visit)
	}
}

// endLine is the 1-based line the node ends on.
func endLine(n sitter.Node) int {
	return safeconv.Row(n.EndPoint().Row)
}

// firstErrorLine returns the 1-based line of the first syntax error in the
// tree, or 0 when the tree is clean.
func firstErrorLine(root sitter.Node) int {
	if !root.HasError() {
		return 0
	}

	line := 0

	var find func(n sitter.Node)
	find = func(n sitter.Node) {
		if line != 0 || n.IsNull() {
			return
		}

		if n.Type() == nodeError || n.IsMissing() {
			line = safeconv.Row(n.StartPoint().Row)

			return
		}

		if !n.HasError() {
			return
		}

		for idx := range n.ChildCount() {
			find(n.Child(idx))
		}
	}

	find(root)

	if line == 0 {
		line = safeconv.Row(root.StartPoint().Row)
	}

	return line
}

// stripComments returns source without its comment nodes.
func stripComments(root sitter.Node, source []byte) []byte {
	var ranges [][2]uint

	walkNamed(root, func(n sitter.Node) bool {
		if n.Type() == nodeComment {
			ranges = append(ranges, [2]uint{n.StartByte(), n.EndByte()})

			return false
		}

		return true
	})

	if len(ranges) == 0 {
		return source
	}

	var b strings.Builder

	b.Grow(len(source))

	prev := uint(0)
	for _, r := range ranges {
		if r[0] < prev {
			continue
		}

		b.Write(source[prev:r[0]])
		prev = r[1]
	}

	b.Write(source[prev:])

	return []byte(b.String())
}
