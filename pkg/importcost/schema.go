package importcost

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed message.schema.json
var messageSchema []byte

// MessageSchema returns the JSON schema every emitted message satisfies.
func MessageSchema() []byte {
	return messageSchema
}

// ValidateMessage checks raw output against MessageSchema.
func ValidateMessage(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(messageSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate message: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(details, "; "))
}
