// Package importmodel defines the data model shared by the import cost runner
// and the size-estimation engine.
package importmodel

import (
	"encoding/json"
	"strconv"
)

// Language selects the grammar the engine parses a source file with.
type Language string

const (
	// LanguageJavaScript is the plain module language.
	LanguageJavaScript Language = "javascript"
	// LanguageTypeScript is the typed superset.
	LanguageTypeScript Language = "typescript"
)

// unknownSize is the wire value for a size that could not be computed.
const unknownSize = -1

// Bytes is an optional byte count. The zero value is absent.
type Bytes struct {
	value int64
	valid bool
}

// Size returns a present byte count.
func Size(n int64) Bytes {
	return Bytes{value: n, valid: true}
}

// Get returns the byte count and whether it is present.
func (b Bytes) Get() (int64, bool) {
	return b.value, b.valid
}

// Valid reports whether the byte count is present.
func (b Bytes) Valid() bool {
	return b.valid
}

// MarshalJSON encodes an absent count as -1.
func (b Bytes) MarshalJSON() ([]byte, error) {
	if !b.valid {
		return []byte(strconv.Itoa(unknownSize)), nil
	}

	return []byte(strconv.FormatInt(b.value, 10)), nil
}

// UnmarshalJSON decodes -1 and null as absent.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var raw *int64

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	if raw == nil || *raw == unknownSize {
		*b = Bytes{}

		return nil
	}

	*b = Size(*raw)

	return nil
}

// Import is one import or require statement found by the engine.
type Import struct {
	// Name is the module specifier as written in source.
	Name string
	// Line is the 1-based line of the statement.
	Line int
	Size Bytes
	Gzip Bytes
}
