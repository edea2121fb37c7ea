package importcost

import (
	"path/filepath"
	"regexp"

	"github.com/Sumatoshi-tech/importcost/pkg/importmodel"
)

var typedExtension = regexp.MustCompile(`^\.tsx?$`)

// Classify picks the engine language from the extension of filePath.
// Only ".ts" and ".tsx" select TypeScript; matching is case-sensitive.
func Classify(filePath string) importmodel.Language {
	if typedExtension.MatchString(extension(filePath)) {
		return importmodel.LanguageTypeScript
	}

	return importmodel.LanguageJavaScript
}

// extension is filepath.Ext, except that a dotfile such as ".ts" has none.
func extension(filePath string) string {
	base := filepath.Base(filePath)

	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}

	return ext
}
