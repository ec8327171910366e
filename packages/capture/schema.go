package capture

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaError lists the violations found by ValidateSchema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// ValidateSchema checks the decoded response body against a JSON schema.
// It returns a *SchemaError when the body does not conform.
func ValidateSchema(resp *http.Response, schema []byte) error {
	body := resp.Body()
	if !json.Valid([]byte(body)) {
		return fmt.Errorf("response body is not JSON")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	documentLoader := gojsonschema.NewStringLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaError{Violations: violations}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
