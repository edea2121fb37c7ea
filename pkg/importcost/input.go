package importcost

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ReadInput reads r until EOF and returns its content as UTF-8 text.
// Invalid byte sequences are replaced with U+FFFD.
func ReadInput(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}
