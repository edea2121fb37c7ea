package sizeengine

import (
	"path/filepath"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
)

// Grammar names.
const (
	grammarJavaScript = "javascript"
	grammarTypeScript = "typescript"
	grammarTSX        = "tsx"
)

// grammarFuncs maps grammar names to their tree-sitter GetLanguage functions.
var grammarFuncs = map[string]func() unsafe.Pointer{
	grammarJavaScript: javascript.GetLanguage,
	grammarTypeScript: typescript.GetLanguage,
	grammarTSX:        tsx.GetLanguage,
}

var grammarCache sync.Map

// getGrammar returns the tree-sitter Language for the given name, or nil if not supported.
func getGrammar(name string) *sitter.Language {
	if cached, ok := grammarCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := grammarFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	grammarCache.Store(name, lang)

	return lang
}

// grammarsFor lists the grammars to try for a source file, in order.
// TypeScript files with a .tsx extension need the tsx grammar for JSX.
// Plain JavaScript falls back to tsx, which accepts Flow type imports and
// annotations alongside JSX.
func grammarsFor(lang importmodel.Language, filePath string) []string {
	if lang != importmodel.LanguageTypeScript {
		return []string{grammarJavaScript, grammarTSX}
	}

	if filepath.Ext(filePath) == ".tsx" {
		return []string{grammarTSX}
	}

	return []string{grammarTypeScript}
}
